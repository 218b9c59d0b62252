package render

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageShell is the full document. {{TITLE}}, {{LANG}} and {{BODY}} are
// replaced by Page. The script points the address bar at "/" so a reload
// opens a fresh page instead of re-posting a form.
const pageShell = `<!DOCTYPE html>
<html lang="{{LANG}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{TITLE}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; margin: 0; background: #faf7f2; color: #2b2118; }
#bread-widget { max-width: 720px; margin: 24px auto; padding: 16px; background: #fff; border-radius: 12px; box-shadow: 0 2px 12px rgba(0,0,0,.08); }
#chat-box { height: 360px; overflow-y: auto; padding: 8px; border: 1px solid #eadfce; border-radius: 8px; margin-bottom: 12px; }
.message { margin: 6px 0; padding: 8px 12px; border-radius: 10px; max-width: 80%; white-space: pre-wrap; }
.message.user { margin-left: auto; background: #d9822b; color: #fff; }
.message.bot { background: #f3ece2; }
.message.pending { opacity: .6; font-style: italic; }
#chat-form { display: flex; gap: 8px; }
#chat-form[hidden], #start-form[hidden] { display: none; }
#user-input { flex: 1; padding: 8px; border: 1px solid #eadfce; border-radius: 8px; }
button { padding: 8px 16px; border: 0; border-radius: 8px; background: #8b5a2b; color: #fff; cursor: pointer; }
button[disabled] { opacity: .5; cursor: default; }
#options { display: flex; flex-wrap: wrap; gap: 6px; margin-top: 8px; }
#recipe-container { margin-top: 16px; }
</style>
</head>
<body>
{{BODY}}
<script>
(function () {
  if (window.history && history.replaceState) { history.replaceState(null, '', '/'); }
  var newest = document.querySelector('#chat-box [data-newest]');
  if (newest) { newest.scrollIntoView({block: 'end'}); }
  var input = document.getElementById('user-input');
  if (input && !input.disabled && !input.closest('[hidden]')) { input.focus(); }
})();
</script>
</body>
</html>
`

// Page wraps body in the document shell.
func Page(title, lang string, body *html.Node) (string, error) {
	inner, err := HTML(body)
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"{{TITLE}}", html.EscapeString(title),
		"{{LANG}}", html.EscapeString(lang),
		"{{BODY}}", inner,
	)
	return r.Replace(pageShell), nil
}

// Notice is a minimal body with a heading, a message and a reload link.
func Notice(heading, message string) *html.Node {
	return withChildren(element(atom.Div, attr("id", "bread-widget")),
		textElement(atom.H2, heading),
		textElement(atom.P, message),
		textElement(atom.A, "Reload", attr("href", "/")),
	)
}
