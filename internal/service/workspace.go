package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/joeblew999/plat-mission/internal/mapview"
	"github.com/joeblew999/plat-mission/internal/planner"
)

// Workspace is the server-side state behind one browser session: its map
// and the sidebar controller drawing on it.
type Workspace struct {
	ID         string
	Controller *planner.Controller

	mu       sync.Mutex
	m        *mapview.Map
	lastSeen time.Time
}

// Mount initializes a fresh map in containerID and attaches the controller
// to it. A previous map, if any, is replaced.
func (w *Workspace) Mount(containerID string) (*mapview.Map, error) {
	m, err := mapview.Initialize(containerID, w.Controller.Attach)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.m = m
	w.mu.Unlock()
	return m, nil
}

// Map returns the mounted map, or nil before Mount.
func (w *Workspace) Map() *mapview.Map {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.m
}

// LastSeen returns when the workspace was last used.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// WorkspaceService manages workspaces keyed by session id.
type WorkspaceService struct {
	newController func(id string) *planner.Controller
	bus           *EventBus
	now           func() time.Time

	workspaces map[string]*Workspace
	mu         sync.RWMutex
}

// NewWorkspaceService creates a workspace service. newController builds the
// controller for each new workspace; bus may be nil.
func NewWorkspaceService(newController func(id string) *planner.Controller, bus *EventBus) *WorkspaceService {
	return &WorkspaceService{
		newController: newController,
		bus:           bus,
		now:           time.Now,
		workspaces:    make(map[string]*Workspace),
	}
}

// GetOrCreate returns the workspace for id, creating it if needed, and
// marks it as used.
func (s *WorkspaceService) GetOrCreate(id string) *Workspace {
	now := s.now()

	s.mu.RLock()
	ws, ok := s.workspaces[id]
	s.mu.RUnlock()
	if ok {
		ws.touch(now)
		return ws
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.workspaces[id]; ok {
		ws.touch(now)
		return ws
	}
	ws = &Workspace{ID: id, Controller: s.newController(id), lastSeen: now}
	s.workspaces[id] = ws
	return ws
}

// Get returns a workspace by id.
func (s *WorkspaceService) Get(id string) (*Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws, ok := s.workspaces[id]
	return ws, ok
}

// Delete removes a workspace.
func (s *WorkspaceService) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workspaces[id]; !ok {
		return false
	}
	delete(s.workspaces, id)
	return true
}

// IDs returns the ids of all workspaces, sorted.
func (s *WorkspaceService) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of workspaces.
func (s *WorkspaceService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}

// Sweep removes workspaces unused for longer than idle. Workspaces with a
// submission in flight are kept. It returns the number removed.
func (s *WorkspaceService) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var expired []string
	for id, ws := range s.workspaces {
		if ws.LastSeen().Before(cutoff) && ws.Controller.State() != planner.StateSubmitting {
			expired = append(expired, id)
			delete(s.workspaces, id)
		}
	}
	s.mu.Unlock()

	if s.bus != nil {
		for _, id := range expired {
			s.bus.Publish(Event{Resource: ResourceWorkspaces, Action: ActionExpired, ID: id})
		}
	}
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *WorkspaceService) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(idle)
		}
	}
}

type workspaceKey struct{}

// WithWorkspace returns a context carrying ws.
func WithWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey{}, ws)
}

// WorkspaceFrom returns the workspace carried by ctx, if any.
func WorkspaceFrom(ctx context.Context) (*Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey{}).(*Workspace)
	return ws, ok && ws != nil
}
