package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"bread-widget/internal/config"
)

const defaultPageTTL = 2 * time.Hour

// BreadAPI is the remote assistant: session creation plus turns.
type BreadAPI interface {
	StartAPI
	TurnAPI
}

// Page is one loaded instance of the widget.
type Page struct {
	ID       string
	ClientID string
	Session  *SessionController
	View     *ConversationView

	lastSeen atomic.Int64
}

func (p *Page) touch(now time.Time) { p.lastSeen.Store(now.UnixNano()) }

// PageService creates pages on load and finds them for later requests.
// Pages idle for longer than the TTL are evicted.
type PageService struct {
	api      BreadAPI
	cache    SessionCache
	copy     config.Copy
	language string
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	pages map[string]*Page
}

type PageOption func(*PageService)

// WithSessionCache persists session ids on a best-effort basis.
func WithSessionCache(cache SessionCache) PageOption {
	return func(s *PageService) {
		s.cache = cache
	}
}

func WithCopy(c config.Copy) PageOption {
	return func(s *PageService) {
		s.copy = c
	}
}

func WithLanguage(lang string) PageOption {
	return func(s *PageService) {
		if lang != "" {
			s.language = lang
		}
	}
}

func WithPageTTL(ttl time.Duration) PageOption {
	return func(s *PageService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewPageService(api BreadAPI, opts ...PageOption) (*PageService, error) {
	if api == nil {
		return nil, errors.New("usecase: bread api must not be nil")
	}
	s := &PageService{
		api:      api,
		copy:     config.DefaultCopy(),
		language: "en",
		ttl:      defaultPageTTL,
		now:      time.Now,
		pages:    make(map[string]*Page),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Copy returns the product copy pages are built with.
func (s *PageService) Copy() config.Copy { return s.copy }

func (s *PageService) Language() string { return s.language }

// Open creates a fresh page for clientID. Any session cached for the client
// is discarded before the page is returned.
func (s *PageService) Open(ctx context.Context, clientID string) (*Page, error) {
	s.evict()

	ctrl, err := NewSessionController(s.api, s.cache, clientID)
	if err != nil {
		return nil, newError(ErrorInternal, "session_controller_error", err)
	}
	ctrl.Reset(ctx)

	id := newUUID()
	view, err := NewConversationView(ctrl, s.api, ViewConfig{
		PageID:   id,
		Copy:     s.copy,
		Language: s.language,
	})
	if err != nil {
		return nil, newError(ErrorInternal, "conversation_view_error", err)
	}

	p := &Page{ID: id, ClientID: clientID, Session: ctrl, View: view}
	p.touch(s.now())

	s.mu.Lock()
	s.pages[id] = p
	s.mu.Unlock()
	return p, nil
}

// Lookup returns the page with the given id and marks it as used.
func (s *PageService) Lookup(pageID string) (*Page, bool) {
	s.mu.RLock()
	p, ok := s.pages[pageID]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := s.now()
	if now.Sub(time.Unix(0, p.lastSeen.Load())) > s.ttl {
		return nil, false
	}
	p.touch(now)
	return p, true
}

func (s *PageService) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}

func (s *PageService) evict() {
	cutoff := s.now().Add(-s.ttl).UnixNano()

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.pages {
		if p.lastSeen.Load() < cutoff {
			delete(s.pages, id)
			n++
		}
	}
	if n > 0 {
		slog.Info("evicted idle pages", "count", n, "remaining", len(s.pages))
	}
}
