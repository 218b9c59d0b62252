package render

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bread-widget/internal/config"
	"bread-widget/internal/domain"
)

// WidgetState is a point-in-time view of one page's widget.
type WidgetState struct {
	PageID      string
	Messages    []domain.ChatMessage
	RecipePanel []*html.Node
	Options     []string
	Field       string
	ShowStart   bool
	ShowInput   bool
	Busy        bool
	InputValue  string
}

func startPath(pageID string) string    { return "/pages/" + pageID + "/start" }
func messagesPath(pageID string) string { return "/pages/" + pageID + "/messages" }

// Transcript renders the chat box. The newest entry carries data-newest so
// the page script can scroll it into view.
func Transcript(msgs []domain.ChatMessage) *html.Node {
	box := element(atom.Div, attr("id", "chat-box"))
	for i, m := range msgs {
		class := "message " + string(m.Sender)
		if m.Pending {
			class += " pending"
		}
		attrs := []html.Attribute{attr("id", "msg-"+m.ID), attr("class", class)}
		if i == len(msgs)-1 {
			attrs = append(attrs, attr("data-newest", "true"))
		}
		withChildren(box, textElement(atom.Div, m.Text, attrs...))
	}
	return box
}

// Widget renders the whole widget: transcript, start action, input form,
// quick-reply options and the recipe panel.
func Widget(c config.Copy, s WidgetState) *html.Node {
	root := element(atom.Div, attr("id", "bread-widget"), attr("data-page", s.PageID))
	withChildren(root, Transcript(s.Messages))

	start := element(atom.Form,
		attr("id", "start-form"),
		attr("method", "post"),
		attr("action", startPath(s.PageID)),
	)
	if !s.ShowStart {
		start.Attr = append(start.Attr, attr("hidden", ""))
	}
	withChildren(start, textElement(atom.Button, c.StartLabel, attr("type", "submit"), attr("id", "start-btn")))
	withChildren(root, start)

	chat := element(atom.Form,
		attr("id", "chat-form"),
		attr("method", "post"),
		attr("action", messagesPath(s.PageID)),
	)
	if !s.ShowInput {
		chat.Attr = append(chat.Attr, attr("hidden", ""))
	}
	input := element(atom.Input,
		attr("type", "text"),
		attr("id", "user-input"),
		attr("name", "message"),
		attr("value", s.InputValue),
		attr("placeholder", c.InputPlaceholder),
		attr("autocomplete", "off"),
	)
	if s.Field != "" {
		input.Attr = append(input.Attr, attr("data-field", s.Field))
	}
	send := textElement(atom.Button, c.SendLabel, attr("type", "submit"))
	if s.Busy {
		input.Attr = append(input.Attr, attr("disabled", ""))
		send.Attr = append(send.Attr, attr("disabled", ""))
	}
	withChildren(chat, input, send)
	withChildren(root, chat)

	if s.ShowInput && len(s.Options) > 0 {
		opts := element(atom.Div, attr("id", "options"))
		for _, o := range s.Options {
			f := element(atom.Form, attr("class", "option"), attr("method", "post"), attr("action", messagesPath(s.PageID)))
			withChildren(f,
				element(atom.Input, attr("type", "hidden"), attr("name", "message"), attr("value", o)),
				textElement(atom.Button, o, attr("type", "submit")),
			)
			withChildren(opts, f)
		}
		withChildren(root, opts)
	}

	panel := element(atom.Div, attr("id", "recipe-container"))
	for _, n := range s.RecipePanel {
		withChildren(panel, Clone(n))
	}
	withChildren(root, panel)
	return root
}
