package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mission/internal/mission"
	"github.com/joeblew999/plat-mission/internal/templates"
	"github.com/joeblew999/plat-mission/web"
)

// FakeBackend is an in-process planning backend. Responses are served in
// the order they were queued; Err, when set, fails every call.
type FakeBackend struct {
	mu        sync.Mutex
	Params    mission.InputParameters
	ParamsErr error
	Err       error
	responses []*mission.PlanResponse
	Forms     []mission.FormSubmission
	// Block, when set, is received from before Submit returns.
	Block chan struct{}
}

// Queue appends responses for subsequent Submit calls.
func (b *FakeBackend) Queue(resp ...*mission.PlanResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses = append(b.responses, resp...)
}

// InputParams returns Params or ParamsErr.
func (b *FakeBackend) InputParams(ctx context.Context) (mission.InputParameters, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ParamsErr != nil {
		return mission.InputParameters{}, b.ParamsErr
	}
	return b.Params, nil
}

// Submit records the form and returns the next queued response.
func (b *FakeBackend) Submit(ctx context.Context, form mission.FormSubmission) (*mission.PlanResponse, error) {
	b.mu.Lock()
	b.Forms = append(b.Forms, form)
	block := b.Block
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return nil, b.Err
	}
	if len(b.responses) == 0 {
		return &mission.PlanResponse{Status: "success"}, nil
	}
	resp := b.responses[0]
	b.responses = b.responses[1:]
	return resp, nil
}

// NewRenderer returns a renderer over the embedded page templates.
func NewRenderer(t testing.TB) *templates.Renderer {
	t.Helper()
	r, err := templates.New(web.Templates())
	require.NoError(t, err)
	return r
}
