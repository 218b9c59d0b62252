package usecase

import (
	"context"
	"fmt"
	"sync"

	"bread-widget/internal/domain"
)

type turnResult struct {
	resp domain.ServerResponse
	err  error
}

// fakeBread is a scripted bread API. When block is set, calls signal on
// entered and wait for block before returning.
type fakeBread struct {
	mu        sync.Mutex
	startIDs  []string
	startErr  error
	starts    int
	results   []turnResult
	turnReqs  []domain.TurnRequest
	block     chan struct{}
	entered   chan struct{}
	blockTurn bool
}

func (f *fakeBread) wait(turn bool) {
	if f.block == nil || turn != f.blockTurn {
		return
	}
	f.entered <- struct{}{}
	<-f.block
}

func (f *fakeBread) StartSession(_ context.Context) (string, error) {
	f.wait(false)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return "", f.startErr
	}
	if len(f.startIDs) == 0 {
		return fmt.Sprintf("conv-%d", f.starts), nil
	}
	id := f.startIDs[0]
	if len(f.startIDs) > 1 {
		f.startIDs = f.startIDs[1:]
	}
	return id, nil
}

func (f *fakeBread) Turn(_ context.Context, in domain.TurnRequest) (domain.ServerResponse, error) {
	f.mu.Lock()
	f.turnReqs = append(f.turnReqs, in)
	f.mu.Unlock()

	f.wait(true)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return domain.ServerResponse{}, fmt.Errorf("no turn result configured")
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.resp, r.err
}

func (f *fakeBread) turnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turnReqs)
}

type fakeCache struct {
	mu          sync.Mutex
	cached      map[string]string
	rememberErr error
	forgetErr   error
	forgotten   []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{cached: map[string]string{}}
}

func (c *fakeCache) Remember(_ context.Context, clientID, conversationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rememberErr != nil {
		return c.rememberErr
	}
	c.cached[clientID] = conversationID
	return nil
}

func (c *fakeCache) Forget(_ context.Context, clientID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgotten = append(c.forgotten, clientID)
	if c.forgetErr != nil {
		return "", c.forgetErr
	}
	old := c.cached[clientID]
	delete(c.cached, clientID)
	return old, nil
}

type statusErr struct{ code int }

func (e *statusErr) Error() string       { return fmt.Sprintf("upstream status %d", e.code) }
func (e *statusErr) HTTPStatusCode() int { return e.code }
