package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mission/internal/mapview"
	"github.com/joeblew999/plat-mission/internal/planner"
	"github.com/joeblew999/plat-mission/internal/testutil"
)

func newWorkspaces(t *testing.T, bus *EventBus) *WorkspaceService {
	t.Helper()
	r := testutil.NewRenderer(t)
	return NewWorkspaceService(func(id string) *planner.Controller {
		return planner.New(planner.Config{
			Backend:  &testutil.FakeBackend{},
			Renderer: r,
			Logger:   testutil.NewTestLogger(t),
		})
	}, bus)
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Event{Resource: ResourcePlans, Action: ActionRendered, ID: "ws-1"})

	for _, ch := range []chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, "ws-1", e.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	bus.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	bus.Publish(Event{ID: "ws-2"})
	assert.Equal(t, "ws-2", (<-b).ID)
	bus.Unsubscribe(b)
}

func TestEventBus_DropsForSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	for range 20 {
		bus.Publish(Event{})
	}
	assert.Len(t, ch, cap(ch))
	bus.Unsubscribe(ch)
}

func TestWorkspaceService_GetOrCreate(t *testing.T) {
	s := newWorkspaces(t, nil)

	ws := s.GetOrCreate("a")
	assert.Same(t, ws, s.GetOrCreate("a"))
	assert.NotSame(t, ws, s.GetOrCreate("b"))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, ws, got)

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestWorkspace_Mount(t *testing.T) {
	s := newWorkspaces(t, nil)
	ws := s.GetOrCreate("a")
	assert.Nil(t, ws.Map())

	m, err := ws.Mount("map")
	require.NoError(t, err)
	assert.Same(t, m, ws.Map())
	assert.Equal(t, planner.StateIdle, ws.Controller.State())

	_, err = ws.Mount("")
	assert.ErrorIs(t, err, mapview.ErrNoContainer)
	assert.Same(t, m, ws.Map())
}

func TestWorkspaceService_Sweep(t *testing.T) {
	bus := NewEventBus()
	events := bus.Subscribe()
	s := newWorkspaces(t, bus)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	s.GetOrCreate("old")

	now = now.Add(time.Hour)
	s.GetOrCreate("fresh")

	assert.Equal(t, 1, s.Sweep(30*time.Minute))
	assert.Equal(t, []string{"fresh"}, s.IDs())

	e := <-events
	assert.Equal(t, ResourceWorkspaces, e.Resource)
	assert.Equal(t, ActionExpired, e.Action)
	assert.Equal(t, "old", e.ID)
}

func TestWorkspaceContext(t *testing.T) {
	_, ok := WorkspaceFrom(context.Background())
	assert.False(t, ok)

	ws := &Workspace{ID: "a"}
	got, ok := WorkspaceFrom(WithWorkspace(context.Background(), ws))
	require.True(t, ok)
	assert.Same(t, ws, got)
}
