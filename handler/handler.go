package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"bread-widget/internal/config"
	"bread-widget/internal/render"
	"bread-widget/internal/usecase"
)

const (
	clientCookie       = "bread_client"
	clientCookieMaxAge = 365 * 24 * 60 * 60
	correlationHeader  = "X-Correlation-Id"
	healthPath         = "/healthz"
)

// PageStore opens and finds widget pages.
type PageStore interface {
	Open(ctx context.Context, clientID string) (*usecase.Page, error)
	Lookup(pageID string) (*usecase.Page, bool)
	Copy() config.Copy
	Language() string
}

type Handler struct {
	pages PageStore
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func NewHandler(pages PageStore) (*Handler, error) {
	if pages == nil {
		return nil, errors.New("handler: page store must not be nil")
	}
	return &Handler{pages: pages}, nil
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

var newClientID = func() string {
	return uuid.NewString()
}

// Handle serves one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	log := slog.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	resp := h.route(ctx, req, log)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[correlationHeader] = correlationID
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, log *slog.Logger) events.APIGatewayProxyResponse {
	path := "/" + strings.Trim(req.Path, "/")

	switch req.HTTPMethod {
	case http.MethodGet, http.MethodHead:
		switch {
		case path == healthPath:
			return jsonResponse(http.StatusOK, healthResponse{Status: "ok"})
		case path != "/":
			return h.notice(http.StatusNotFound, "Not found", "There is nothing at this address.", log)
		case req.HTTPMethod == http.MethodHead:
			return htmlResponse(http.StatusOK, "")
		}
		return h.openPage(ctx, req, log)
	case http.MethodPost:
		pageID, action, ok := parsePagePath(path)
		if !ok {
			return h.notice(http.StatusNotFound, "Not found", "There is nothing at this address.", log)
		}
		page, found := h.pages.Lookup(pageID)
		if !found {
			return h.notice(http.StatusNotFound, "Chat expired", "This chat page is no longer available. Reload to start a new session.", log)
		}
		log = log.With("page_id", pageID)
		switch action {
		case "start":
			logUseCaseError(log, page.View.Start(ctx))
		case "messages":
			form, err := parseForm(req)
			if err != nil {
				log.Warn("failed to parse form", "err", err)
				return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "invalid form body"})
			}
			logUseCaseError(log, page.View.Submit(ctx, form.Get("message")))
		}
		// A rejected duplicate must not leave the browser on the busy page.
		if err := page.View.WaitIdle(ctx); err != nil {
			log.Warn("gave up waiting for outstanding call", "err", err)
		}
		return h.page(http.StatusOK, page.View.Render(), log)
	default:
		resp := jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"})
		resp.Headers["Allow"] = "GET, HEAD, POST"
		return resp
	}
}

func (h *Handler) openPage(ctx context.Context, req events.APIGatewayProxyRequest, log *slog.Logger) events.APIGatewayProxyResponse {
	clientID := cookieValue(req.Headers, clientCookie)
	setCookie := ""
	if clientID == "" {
		clientID = newClientID()
		setCookie = (&http.Cookie{
			Name:     clientCookie,
			Value:    clientID,
			Path:     "/",
			MaxAge:   clientCookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}).String()
	}

	page, err := h.pages.Open(ctx, clientID)
	if err != nil {
		logUseCaseError(log, err)
		return h.notice(http.StatusInternalServerError, "Something went wrong", "The chat could not be opened. Please try again.", log)
	}
	log.Info("page opened", "page_id", page.ID)

	resp := h.page(http.StatusOK, page.View.Render(), log)
	if setCookie != "" {
		resp.Headers["Set-Cookie"] = setCookie
	}
	return resp
}

func (h *Handler) page(status int, body *html.Node, log *slog.Logger) events.APIGatewayProxyResponse {
	doc, err := render.Page(h.pages.Copy().Title, h.pages.Language(), body)
	if err != nil {
		log.Error("failed to render page", "err", err)
		return jsonResponse(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)})
	}
	return htmlResponse(status, doc)
}

func htmlResponse(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":  "text/html; charset=utf-8",
			"Cache-Control": "no-store",
		},
		Body: body,
	}
}

func (h *Handler) notice(status int, heading, message string, log *slog.Logger) events.APIGatewayProxyResponse {
	return h.page(status, render.Notice(heading, message), log)
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// logUseCaseError records a failed widget operation. The user already sees
// the failure in the transcript.
func logUseCaseError(log *slog.Logger, err error) {
	if err == nil {
		return
	}
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		log.Error("unexpected error", "err", err)
		return
	}
	if ue.Code == usecase.ErrorInvalidInput {
		log.Info("request ignored", "code", ue.Code, "reason", ue.Reason)
		return
	}
	log.Error("widget operation failed", "code", ue.Code, "reason", ue.Reason, "err", ue.Err)
}

// parsePagePath splits /pages/{id}/{action}.
func parsePagePath(path string) (pageID, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "pages" || parts[1] == "" {
		return "", "", false
	}
	switch parts[2] {
	case "start", "messages":
		return parts[1], parts[2], true
	default:
		return "", "", false
	}
}

func parseForm(req events.APIGatewayProxyRequest) (url.Values, error) {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, err
		}
		body = string(raw)
	}
	return url.ParseQuery(body)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func cookieValue(headers map[string]string, name string) string {
	raw := headerValue(headers, "Cookie")
	if raw == "" {
		return ""
	}
	cookies, err := http.ParseCookie(raw)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}
