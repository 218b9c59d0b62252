package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"bread-widget/internal/domain"
)

// StartAPI creates conversations on the bread assistant.
type StartAPI interface {
	StartSession(ctx context.Context) (string, error)
}

// SessionCache is the best-effort persisted copy of a client's session id.
type SessionCache interface {
	Remember(ctx context.Context, clientID, conversationID string) error
	Forget(ctx context.Context, clientID string) (string, error)
}

var newUUID = func() string {
	return uuid.NewString()
}

// SessionController owns the lifecycle of one page's session.
type SessionController struct {
	api      StartAPI
	cache    SessionCache
	clientID string

	mu      sync.Mutex
	session domain.Session
}

// NewSessionController builds a controller in the uninitialized state.
// cache may be nil.
func NewSessionController(api StartAPI, cache SessionCache, clientID string) (*SessionController, error) {
	if api == nil {
		return nil, errors.New("usecase: start api must not be nil")
	}
	return &SessionController{
		api:      api,
		cache:    cache,
		clientID: strings.TrimSpace(clientID),
		session:  domain.Session{State: domain.SessionUninitialized},
	}, nil
}

// Current returns a copy of the session.
func (c *SessionController) Current() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *SessionController) Active() bool {
	return c.Current().Active()
}

// Reset drops the in-memory session and deletes any cached copy. Cache
// failures are logged and otherwise ignored.
func (c *SessionController) Reset(ctx context.Context) {
	c.mu.Lock()
	c.session = domain.Session{State: domain.SessionReset}
	c.mu.Unlock()

	if c.cache == nil || c.clientID == "" {
		return
	}
	discarded, err := c.cache.Forget(ctx, c.clientID)
	if err != nil {
		slog.Warn("failed to discard cached session", "client_id", c.clientID, "err", err)
		return
	}
	if discarded != "" {
		slog.Info("discarded cached session", "client_id", c.clientID, "conversation_id", discarded)
	}
}

// Start requests a new conversation. A start while another is in flight is
// rejected; a start on an active session replaces it. On failure the
// session is left inactive.
func (c *SessionController) Start(ctx context.Context) (domain.Session, error) {
	c.mu.Lock()
	if c.session.State == domain.SessionStarting {
		c.mu.Unlock()
		return domain.Session{}, newError(ErrorInvalidInput, "start_in_flight", nil)
	}
	prev := c.session.State
	c.session = domain.Session{State: domain.SessionStarting}
	c.mu.Unlock()

	id, err := c.api.StartSession(ctx)
	id = strings.TrimSpace(id)
	if err == nil && id == "" {
		err = domain.ErrMissingConversationID
	}

	c.mu.Lock()
	if err != nil {
		if prev == domain.SessionActive {
			prev = domain.SessionReset
		}
		c.session = domain.Session{State: prev}
		c.mu.Unlock()
		if errors.Is(err, domain.ErrMissingConversationID) {
			return domain.Session{}, newError(ErrorSessionStart, "missing_conversation_id", err)
		}
		return domain.Session{}, newError(ErrorSessionStart, transportReason("start", err), err)
	}
	c.session = domain.Session{ID: id, State: domain.SessionActive}
	out := c.session
	c.mu.Unlock()

	if c.cache != nil && c.clientID != "" {
		if err := c.cache.Remember(ctx, c.clientID, id); err != nil {
			slog.Warn("failed to cache session", "client_id", c.clientID, "err", err)
		}
	}
	return out, nil
}
