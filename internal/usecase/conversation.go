package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"bread-widget/internal/config"
	"bread-widget/internal/domain"
	"bread-widget/internal/render"
)

// TurnAPI sends one conversation turn to the bread assistant.
type TurnAPI interface {
	Turn(ctx context.Context, in domain.TurnRequest) (domain.ServerResponse, error)
}

// Sessions is the part of SessionController the view depends on.
type Sessions interface {
	Start(ctx context.Context) (domain.Session, error)
	Current() domain.Session
}

// ViewConfig carries the per-page settings of a ConversationView.
type ViewConfig struct {
	PageID   string
	Copy     config.Copy
	Language string
}

// ConversationView holds the transcript, the recipe panel and the input
// state of one page. Network calls are made without holding the lock.
type ConversationView struct {
	sessions Sessions
	turns    TurnAPI
	recipes  *render.RecipeRenderer
	copy     config.Copy
	language string
	pageID   string

	mu          sync.Mutex
	messages    []domain.ChatMessage
	recipePanel []*html.Node
	options     []string
	field       string
	showStart   bool
	showInput   bool
	starting    bool
	pendingTurn string
	inputValue  string
	settled     chan struct{}
}

// NewConversationView returns a view in its page-load state: the intro
// message is shown, input is hidden and the start action is offered.
func NewConversationView(sessions Sessions, turns TurnAPI, cfg ViewConfig) (*ConversationView, error) {
	if sessions == nil {
		return nil, errors.New("usecase: sessions must not be nil")
	}
	if turns == nil {
		return nil, errors.New("usecase: turn api must not be nil")
	}
	if strings.TrimSpace(cfg.PageID) == "" {
		return nil, errors.New("usecase: page id must not be empty")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	v := &ConversationView{
		sessions:  sessions,
		turns:     turns,
		recipes:   render.NewRecipeRenderer(cfg.Copy.NoteFields),
		copy:      cfg.Copy,
		language:  cfg.Language,
		pageID:    cfg.PageID,
		showStart: true,
	}
	v.appendLocked(cfg.Copy.Intro, domain.SenderBot, false)
	return v, nil
}

// AppendMessage adds a message to the end of the transcript.
func (v *ConversationView) AppendMessage(text string, sender domain.Sender) domain.ChatMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.appendLocked(text, sender, false)
}

func (v *ConversationView) appendLocked(text string, sender domain.Sender, pending bool) domain.ChatMessage {
	m := domain.ChatMessage{ID: newUUID(), Text: text, Sender: sender, Pending: pending}
	v.messages = append(v.messages, m)
	return m
}

// removePendingLocked deletes the placeholder with the given id. Regular
// messages are never removed.
func (v *ConversationView) removePendingLocked(id string) {
	for i, m := range v.messages {
		if m.ID == id && m.Pending {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			return
		}
	}
}

// busyLocked marks the start of a start or turn call. settleLocked releases
// everyone blocked in WaitIdle.
func (v *ConversationView) busyLocked() {
	v.settled = make(chan struct{})
}

func (v *ConversationView) settleLocked() {
	if v.settled != nil {
		close(v.settled)
		v.settled = nil
	}
}

func (v *ConversationView) errorLocked(text string) {
	v.appendLocked(v.copy.ErrorMarker+text, domain.SenderBot, false)
}

// Start opens a session. While the request is outstanding the input is
// shown and a placeholder is displayed; on success the placeholder is
// replaced by the greeting, on failure by a diagnostic and the start action
// is offered again.
func (v *ConversationView) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.starting || v.pendingTurn != "" {
		v.mu.Unlock()
		return newError(ErrorInvalidInput, "start_in_flight", nil)
	}
	v.starting = true
	v.busyLocked()
	v.showStart = false
	v.showInput = true
	v.recipePanel = nil
	v.options = nil
	placeholder := v.appendLocked(v.copy.Starting, domain.SenderBot, true)
	v.mu.Unlock()

	_, err := v.sessions.Start(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.starting = false
	v.settleLocked()
	v.removePendingLocked(placeholder.ID)
	if err != nil {
		v.errorLocked(v.copy.StartErrorPrefix + detail(err))
		v.showInput = false
		v.showStart = true
		return err
	}
	v.appendLocked(v.copy.Greeting, domain.SenderBot, false)
	return nil
}

// Submit sends text as the next turn. Empty text, a missing session and a
// turn already in flight are rejected without touching the transcript.
func (v *ConversationView) Submit(ctx context.Context, text string) error {
	input := strings.TrimSpace(text)

	v.mu.Lock()
	if input == "" {
		v.mu.Unlock()
		return newError(ErrorInvalidInput, "empty_message", nil)
	}
	session := v.sessions.Current()
	if !session.Active() {
		v.inputValue = text
		v.mu.Unlock()
		return newError(ErrorInvalidInput, "no_active_session", nil)
	}
	if v.pendingTurn != "" || v.starting {
		v.inputValue = text
		v.mu.Unlock()
		return newError(ErrorInvalidInput, "turn_in_flight", nil)
	}
	v.appendLocked(input, domain.SenderUser, false)
	v.inputValue = ""
	v.options = nil
	v.field = ""
	placeholder := v.appendLocked(v.copy.Pending, domain.SenderBot, true)
	v.pendingTurn = placeholder.ID
	v.busyLocked()
	v.mu.Unlock()

	resp, err := v.turns.Turn(ctx, domain.TurnRequest{
		SessionID: session.ID,
		InputText: input,
		Language:  v.language,
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	v.removePendingLocked(placeholder.ID)
	v.pendingTurn = ""
	v.settleLocked()
	if err != nil {
		v.errorLocked(v.copy.ConnectionErrorPrefix + err.Error())
		return newError(ErrorTurnTransport, transportReason("turn", err), err)
	}
	return v.dispatchLocked(resp)
}

func (v *ConversationView) dispatchLocked(resp domain.ServerResponse) error {
	switch resp.Status {
	case domain.StatusQuestion:
		if resp.Message != "" {
			v.appendLocked(resp.Message, domain.SenderBot, false)
		}
		if resp.Question != "" {
			v.appendLocked(resp.Question, domain.SenderBot, false)
		}
		v.options = append([]string(nil), resp.Options...)
		v.field = resp.Field
		return nil
	case domain.StatusSuccess:
		if resp.Recipe != nil && len(resp.Recipe.Dropped) > 0 {
			slog.Warn("recipe fields dropped", "page_id", v.pageID, "fields", resp.Recipe.Dropped)
		}
		v.appendLocked(resp.Message, domain.SenderBot, false)
		v.recipePanel = v.recipes.Render(resp.Recipe)
		return nil
	default:
		msg := resp.Message
		if msg == "" {
			msg = v.copy.FallbackError
		}
		v.errorLocked(msg)
		return newError(ErrorServerReported, "server_reported_error", fmt.Errorf("status %q", resp.RawStatus))
	}
}

// RenderRecipe replaces the recipe panel with rec.
func (v *ConversationView) RenderRecipe(rec *domain.Recipe) {
	panel := v.recipes.Render(rec)
	v.mu.Lock()
	v.recipePanel = panel
	v.mu.Unlock()
}

// WaitIdle blocks until no start or turn call is outstanding, so a
// rejected duplicate request can answer with the settled page.
func (v *ConversationView) WaitIdle(ctx context.Context) error {
	v.mu.Lock()
	ch := v.settled
	v.mu.Unlock()
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *ConversationView) transcript() []domain.ChatMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.ChatMessage(nil), v.messages...)
}

// Snapshot returns the state needed to render the widget. Recipe panel
// nodes are shared and must be cloned before being attached to a tree.
func (v *ConversationView) Snapshot() render.WidgetState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return render.WidgetState{
		PageID:      v.pageID,
		Messages:    append([]domain.ChatMessage(nil), v.messages...),
		RecipePanel: append([]*html.Node(nil), v.recipePanel...),
		Options:     append([]string(nil), v.options...),
		Field:       v.field,
		ShowStart:   v.showStart,
		ShowInput:   v.showInput,
		Busy:        v.starting || v.pendingTurn != "",
		InputValue:  v.inputValue,
	}
}

// Render builds the widget DOM.
func (v *ConversationView) Render() *html.Node {
	return render.Widget(v.copy, v.Snapshot())
}
