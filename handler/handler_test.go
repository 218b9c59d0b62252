package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"bread-widget/internal/domain"
	"bread-widget/internal/usecase"
)

// stubBread answers every turn with resp. When block is set, Turn signals
// on entered and waits for block before answering.
type stubBread struct {
	mu       sync.Mutex
	startErr error
	resp     domain.ServerResponse
	turnErr  error
	requests []domain.TurnRequest
	block    chan struct{}
	entered  chan struct{}
}

func (s *stubBread) StartSession(_ context.Context) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	return "conv-1", nil
}

func (s *stubBread) Turn(_ context.Context, in domain.TurnRequest) (domain.ServerResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, in)
	s.mu.Unlock()

	if s.block != nil {
		s.entered <- struct{}{}
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resp, s.turnErr
}

func (s *stubBread) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type stubCache struct {
	forgotten []string
}

func (c *stubCache) Remember(_ context.Context, _, _ string) error { return nil }

func (c *stubCache) Forget(_ context.Context, clientID string) (string, error) {
	c.forgotten = append(c.forgotten, clientID)
	return "", nil
}

var startActionRe = regexp.MustCompile(`action="/pages/([^/"]+)/start"`)

func newTestHandler(t *testing.T, api *stubBread, opts ...usecase.PageOption) *Handler {
	t.Helper()
	pages, err := usecase.NewPageService(api, opts...)
	require.NoError(t, err)
	h, err := NewHandler(pages)
	require.NoError(t, err)
	return h
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers:    map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func openPage(t *testing.T, h *Handler) string {
	t.Helper()
	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := startActionRe.FindStringSubmatch(resp.Body)
	require.Len(t, m, 2)
	return m[1]
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_OpenPage(t *testing.T) {
	h := newTestHandler(t, &stubBread{})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Headers["Content-Type"])
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
	require.Contains(t, resp.Headers["Set-Cookie"], "bread_client=")
	require.Contains(t, resp.Headers["Set-Cookie"], "HttpOnly")
	require.Contains(t, resp.Body, "Welcome to your Bread Baking Assistant!")
	require.Contains(t, resp.Body, `<form id="chat-form"`)
	require.Regexp(t, startActionRe, resp.Body)
}

func TestHandle_OpenPageDiscardsCachedSessionForClient(t *testing.T) {
	cache := &stubCache{}
	h := newTestHandler(t, &stubBread{}, usecase.WithSessionCache(cache))

	event := makeEvent(http.MethodGet, "/", "")
	event.Headers["cookie"] = "theme=dark; bread_client=client-9"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Headers["Set-Cookie"])
	require.Equal(t, []string{"client-9"}, cache.forgotten)
}

func TestHandle_OtherGetPathsDoNotOpenPages(t *testing.T) {
	cache := &stubCache{}
	h := newTestHandler(t, &stubBread{}, usecase.WithSessionCache(cache))

	for _, path := range []string{"/favicon.ico", "/robots.txt", "/anything"} {
		t.Run(path, func(t *testing.T) {
			event := makeEvent(http.MethodGet, path, "")
			event.Headers["Cookie"] = "bread_client=client-9"
			resp, err := h.Handle(context.Background(), event)
			require.NoError(t, err)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
			require.NotRegexp(t, startActionRe, resp.Body)
		})
	}
	require.Empty(t, cache.forgotten)
}

func TestHandle_HeadDoesNotOpenPage(t *testing.T) {
	cache := &stubCache{}
	h := newTestHandler(t, &stubBread{}, usecase.WithSessionCache(cache))

	event := makeEvent(http.MethodHead, "/", "")
	event.Headers["Cookie"] = "bread_client=client-9"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Headers["Content-Type"])
	require.Empty(t, resp.Body)
	require.Empty(t, resp.Headers["Set-Cookie"])
	require.Empty(t, cache.forgotten)
}

func TestHandle_Health(t *testing.T) {
	h := newTestHandler(t, &stubBread{})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/healthz", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", parseBody[healthResponse](t, resp.Body).Status)
}

func TestHandle_StartThenSubmit(t *testing.T) {
	api := &stubBread{resp: domain.ServerResponse{Status: domain.StatusQuestion, RawStatus: "question", Question: "Which flour do you have?"}}
	h := newTestHandler(t, api)
	pageID := openPage(t, h)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/start", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, "How would you like to proceed")
	require.Contains(t, resp.Body, `action="/pages/`+pageID+`/start" hidden=""`)

	form := url.Values{"message": {"sourdough"}}.Encode()
	resp, err = h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/messages", form))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, `class="message user">sourdough</div>`)
	require.Contains(t, resp.Body, "Which flour do you have?")
	require.Equal(t, []domain.TurnRequest{{SessionID: "conv-1", InputText: "sourdough", Language: "en"}}, api.requests)
}

func TestHandle_ReloadAfterPostStartsOver(t *testing.T) {
	cache := &stubCache{}
	api := &stubBread{resp: domain.ServerResponse{Status: domain.StatusQuestion, Question: "Which flour do you have?"}}
	h := newTestHandler(t, api, usecase.WithSessionCache(cache))
	pageID := openPage(t, h)

	_, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/start", ""))
	require.NoError(t, err)
	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/messages", "message=hi"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// The browser's reload target is "/", not the form action.
	require.Contains(t, resp.Body, `history.replaceState(null, '', '/')`)

	event := makeEvent(http.MethodGet, "/", "")
	event.Headers["Cookie"] = "bread_client=client-9"
	resp, err = h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, resp.Body, `class="message user"`)
	require.NotContains(t, resp.Body, "Which flour do you have?")
	require.Equal(t, "client-9", cache.forgotten[len(cache.forgotten)-1])

	m := startActionRe.FindStringSubmatch(resp.Body)
	require.Len(t, m, 2)
	require.NotEqual(t, pageID, m[1])
	require.NotContains(t, resp.Body, `action="/pages/`+m[1]+`/start" hidden=""`)

	_, err = h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+m[1]+"/messages", "message=hi"))
	require.NoError(t, err)
	require.Equal(t, 1, api.requestCount())
}

func TestHandle_DoubleSubmitAnswersWithSettledPage(t *testing.T) {
	api := &stubBread{
		resp:    domain.ServerResponse{Status: domain.StatusQuestion, Question: "Which flour do you have?"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	h := newTestHandler(t, api)
	pageID := openPage(t, h)
	_, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/start", ""))
	require.NoError(t, err)

	submit := func(out chan<- events.APIGatewayProxyResponse) {
		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/messages", "message=sourdough"))
		if err != nil {
			resp = events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}
		}
		out <- resp
	}
	first := make(chan events.APIGatewayProxyResponse, 1)
	second := make(chan events.APIGatewayProxyResponse, 1)
	go submit(first)
	<-api.entered
	go submit(second)
	require.Never(t, func() bool { return len(second) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	close(api.block)
	for _, resp := range []events.APIGatewayProxyResponse{<-first, <-second} {
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Contains(t, resp.Body, "Which flour do you have?")
		require.NotContains(t, resp.Body, `disabled=""`)
		require.NotContains(t, resp.Body, `class="message bot pending"`)
	}
	require.Equal(t, 1, api.requestCount())
}

func TestHandle_SubmitBase64Form(t *testing.T) {
	api := &stubBread{resp: domain.ServerResponse{Status: domain.StatusQuestion, Question: "Q"}}
	h := newTestHandler(t, api)
	pageID := openPage(t, h)

	_, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/start", ""))
	require.NoError(t, err)

	event := makeEvent(http.MethodPost, "/pages/"+pageID+"/messages", base64.StdEncoding.EncodeToString([]byte("message=rye+bread")))
	event.IsBase64Encoded = true
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "rye bread", api.requests[0].InputText)
}

func TestHandle_SubmitWithoutSessionLeavesTranscript(t *testing.T) {
	api := &stubBread{}
	h := newTestHandler(t, api)
	pageID := openPage(t, h)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/messages", "message=hello"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, resp.Body, `class="message user"`)
	require.Empty(t, api.requests)
}

func TestHandle_StartFailureShowsDiagnostic(t *testing.T) {
	h := newTestHandler(t, &stubBread{startErr: errors.New("connection refused")})
	pageID := openPage(t, h)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/pages/"+pageID+"/start", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Body, "⚠️ Could not start session: connection refused")
	require.Contains(t, resp.Body, `action="/pages/`+pageID+`/messages" hidden=""`)
}

func TestHandle_InvalidForm(t *testing.T) {
	h := newTestHandler(t, &stubBread{})
	pageID := openPage(t, h)

	event := makeEvent(http.MethodPost, "/pages/"+pageID+"/messages", "%%%")
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, string(usecase.ErrorInvalidInput), parseBody[errorResponse](t, resp.Body).Error)
}

func TestHandle_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubBread{})

	cases := []string{"/pages/missing/start", "/pages/missing/messages", "/pages/x/bogus", "/ask"}
	for _, path := range cases {
		t.Run(path, func(t *testing.T) {
			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, path, ""))
			require.NoError(t, err)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
			require.Contains(t, resp.Body, `<a href="/">Reload</a>`)
		})
	}
}

func TestHandle_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &stubBread{})

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPut, "/", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, "GET, HEAD, POST", resp.Headers["Allow"])
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h := newTestHandler(t, &stubBread{})

	event := makeEvent(http.MethodGet, "/healthz", "")
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestParsePagePath(t *testing.T) {
	id, action, ok := parsePagePath("/pages/abc/start")
	require.True(t, ok)
	require.Equal(t, "abc", id)
	require.Equal(t, "start", action)

	for _, p := range []string{"/", "/pages", "/pages//start", "/pages/abc/start/extra", "/other/abc/start"} {
		_, _, ok := parsePagePath(p)
		require.False(t, ok, p)
	}
}

// ----------------------------------------------------------------------------
// HTTP router
// ----------------------------------------------------------------------------

func TestRouter_FullFlow(t *testing.T) {
	api := &stubBread{resp: domain.ServerResponse{Status: domain.StatusQuestion, Question: "How many loaves?"}}
	h := newTestHandler(t, api)
	srv := httptest.NewServer(NewRouter(h, "*"))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body := readAll(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, res.Header.Get("X-Correlation-Id"))
	require.NotEmpty(t, res.Cookies())
	m := startActionRe.FindStringSubmatch(body)
	require.Len(t, m, 2)

	res, err = http.Post(srv.URL+"/pages/"+m[1]+"/start", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	readAll(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.PostForm(srv.URL+"/pages/"+m[1]+"/messages", url.Values{"message": {"two"}})
	require.NoError(t, err)
	body = readAll(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, body, "How many loaves?")
	require.Equal(t, "two", api.requests[0].InputText)
}

func TestRouter_HealthAndUnknownRoutes(t *testing.T) {
	h := newTestHandler(t, &stubBread{})
	srv := httptest.NewServer(NewRouter(h, "*"))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok"}`, readAll(t, res))

	res, err = http.Post(srv.URL+"/pages/nope/start", "text/plain", nil)
	require.NoError(t, err)
	readAll(t, res)
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/", nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	readAll(t, res)
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newTestHandler(t, &stubBread{})
	srv := httptest.NewServer(NewRouter(h, "https://bakery.example.com"))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/pages/x/messages", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://bakery.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	readAll(t, res)
	require.Equal(t, "https://bakery.example.com", res.Header.Get("Access-Control-Allow-Origin"))
}

func readAll(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}
