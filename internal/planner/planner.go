// Package planner drives the sidebar form: it fetches the parameter options,
// submits plans to the backend and draws the returned paths on the map.
package planner

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"github.com/joeblew999/plat-mission/internal/mapview"
	"github.com/joeblew999/plat-mission/internal/mission"
	"github.com/joeblew999/plat-mission/internal/templates"
)

var (
	// ErrSubmitInFlight is returned when a submission is already running.
	ErrSubmitInFlight = errors.New("planner: submission already in flight")
	// ErrNoMap is returned when Submit is called before a map is attached.
	ErrNoMap = errors.New("planner: no map attached")
	// ErrMapReplaced is returned when the map was remounted while the
	// backend request was pending. Nothing is drawn.
	ErrMapReplaced = errors.New("planner: map replaced during submission")
)

// Template names used to render map content.
const (
	TooltipTemplate = "path-tooltip"
	OverlayTemplate = "plan-overlay"
)

// State is the lifecycle state of one submission.
type State int

const (
	StateIdle State = iota
	StateFetchingOptions
	StateReady
	StateSubmitting
	StateRendered
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingOptions:
		return "fetchingOptions"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateRendered:
		return "rendered"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Backend is the planning service the controller talks to.
type Backend interface {
	InputParams(ctx context.Context) (mission.InputParameters, error)
	Submit(ctx context.Context, form mission.FormSubmission) (*mission.PlanResponse, error)
}

// RenderedPath is one path as drawn on the map.
type RenderedPath struct {
	Name     string               `json:"name" doc:"Path name"`
	Color    string               `json:"color" doc:"Polyline color" example:"red"`
	Layer    mapview.LayerID      `json:"layer" doc:"Map layer id"`
	Points   int                  `json:"points" doc:"Number of points drawn"`
	LengthKm float64              `json:"lengthKm" doc:"Great-circle length along the line"`
	Labels   []mission.ClassLabel `json:"labels" doc:"Terrain composition"`
	Tooltip  string               `json:"tooltip" doc:"Hover tooltip HTML"`
}

// Overlay is the summary box placed under the paths.
type Overlay struct {
	Layer    mapview.LayerID `json:"layer" doc:"Map layer id"`
	Lat      float64         `json:"lat" doc:"Anchor latitude"`
	Lon      float64         `json:"lon" doc:"Anchor longitude"`
	Strategy string          `json:"strategy" doc:"Strategy name from the submitted form"`
	HTML     string          `json:"html" doc:"Overlay HTML"`
}

// Plan is the overlay state produced by one successful submission.
type Plan struct {
	Form       mission.FormSubmission `json:"-"`
	Response   *mission.PlanResponse  `json:"-"`
	Paths      []RenderedPath         `json:"paths"`
	Overlay    *Overlay               `json:"overlay,omitempty"`
	RenderedAt time.Time              `json:"renderedAt"`
}

// Config configures a Controller.
type Config struct {
	Backend  Backend
	Renderer *templates.Renderer
	Logger   *slog.Logger
	// OnRendered is called after every successful submission.
	OnRendered func(*Plan)
	// Simplify is the Douglas-Peucker tolerance, in degrees, applied to
	// drawn polylines. Zero draws every point.
	Simplify float64
}

// Controller is the sidebar state machine for one workspace. It owns the
// layers it draws and never touches any other layer on the map.
type Controller struct {
	backend    Backend
	renderer   *templates.Renderer
	logger     *slog.Logger
	onRendered func(*Plan)
	simplify   float64
	now        func() time.Time

	mu      sync.Mutex
	state   State
	open    bool
	options mission.InputParameters
	m       *mapview.Map
	owned   []mapview.LayerID
	last    *Plan
}

// New creates a controller in the idle state with the sidebar closed.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend:    cfg.Backend,
		renderer:   cfg.Renderer,
		logger:     logger,
		onRendered: cfg.OnRendered,
		simplify:   cfg.Simplify,
		now:        time.Now,
	}
}

// Attach binds the controller to a freshly initialized map. Layers tracked
// for a previous map are forgotten.
func (c *Controller) Attach(m *mapview.Map) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.m = m
	c.owned = nil
	c.last = nil
	if c.state != StateSubmitting {
		c.state = StateIdle
	}
}

// Mount fetches the parameter options. A failure is logged and leaves the
// option lists empty; the controller stays usable either way.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateSubmitting {
		c.state = StateFetchingOptions
	}
	c.mu.Unlock()

	params, err := c.backend.InputParams(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Error("fetch input params", "error", err)
		c.options = mission.InputParameters{}
	} else {
		c.options = params
	}
	if c.state == StateFetchingOptions {
		c.state = StateReady
	}
	return err
}

// Options returns the fetched option lists.
func (c *Controller) Options() mission.InputParameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options
}

// Toggle flips the sidebar visibility and returns the new value.
func (c *Controller) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = !c.open
	return c.open
}

// SetOpen sets the sidebar visibility and returns it.
func (c *Controller) SetOpen(open bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = open
	return c.open
}

// Open reports whether the sidebar is visible.
func (c *Controller) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Last returns the most recent rendered plan, or nil.
func (c *Controller) Last() *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Layers returns the ids of the layers the controller currently owns.
func (c *Controller) Layers() []mapview.LayerID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mapview.LayerID(nil), c.owned...)
}

// Submit runs one plan submission. The controller's layers are removed
// before the backend is called; onCleared, if set, runs right after so the
// caller can flush the removal to the page while the request is pending.
func (c *Controller) Submit(ctx context.Context, form mission.FormSubmission, onCleared func()) (*Plan, error) {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	if c.m == nil {
		c.mu.Unlock()
		return nil, ErrNoMap
	}
	c.state = StateSubmitting
	m := c.m
	// Known gap: the cleared layers are not restored if the request fails.
	for _, id := range c.owned {
		m.RemoveLayer(id)
	}
	c.owned = nil
	c.last = nil
	c.mu.Unlock()

	if onCleared != nil {
		onCleared()
	}

	resp, err := c.backend.Submit(ctx, form)
	if err != nil {
		c.fail("submit plan", err)
		return nil, fmt.Errorf("planner: submit: %w", err)
	}

	plan, err := c.render(m, form, resp)
	if err != nil {
		c.fail("render plan", err)
		return nil, fmt.Errorf("planner: render: %w", err)
	}

	if c.onRendered != nil {
		c.onRendered(plan)
	}
	return plan, nil
}

func (c *Controller) fail(msg string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateError
	c.logger.Error(msg, "error", err, "state", c.state)
	c.state = StateReady
}

// render builds all HTML first so a template error leaves the map untouched,
// then draws the polylines in path order followed by the overlay.
func (c *Controller) render(m *mapview.Map, form mission.FormSubmission, resp *mission.PlanResponse) (*Plan, error) {
	plan := &Plan{
		Form:     form,
		Response: resp,
		Paths:    make([]RenderedPath, 0, len(resp.Paths)),
	}

	lines := make([]orb.LineString, len(resp.Paths))
	for i, p := range resp.Paths {
		lines[i] = c.drawnLine(p.Line)
		rp := RenderedPath{
			Name:     p.Name,
			Color:    mission.ColorFor(i),
			Points:   len(lines[i]),
			LengthKm: p.LengthKm(),
			Labels:   mission.ClassLabels(p.Terrain),
		}
		tip, err := c.renderer.Render(TooltipTemplate, rp)
		if err != nil {
			return nil, err
		}
		rp.Tooltip = tip
		plan.Paths = append(plan.Paths, rp)
	}

	c.mu.Lock()
	strategy := c.options.StrategyName(form.Get(mission.FieldStrategy))
	c.mu.Unlock()

	var overlay *Overlay
	if mission.PointCount(resp.Paths) == 0 {
		c.logger.Warn("plan has no points, skipping overlay", "paths", len(resp.Paths))
	} else {
		anchor := mission.OverlayAnchor(resp.Paths)
		html, err := c.renderer.Render(OverlayTemplate, overlayView{
			Optimal:    resp.OptimalSet,
			Strategy:   strategy,
			AIResponse: template.HTML(resp.AIResponse),
		})
		if err != nil {
			return nil, err
		}
		overlay = &Overlay{Lat: anchor.Lat(), Lon: anchor.Lon(), Strategy: strategy, HTML: html}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Layer ids are only unique per map; ids from a replaced map must never
	// be tracked against the current one.
	if c.m != m {
		return nil, ErrMapReplaced
	}

	for i := range plan.Paths {
		rp := &plan.Paths[i]
		rp.Layer = m.AddPolyline(lines[i], rp.Color, rp.Tooltip)
		c.owned = append(c.owned, rp.Layer)
	}
	if overlay != nil {
		overlay.Layer = m.AddMarker(orb.Point{overlay.Lon, overlay.Lat}, overlay.HTML)
		c.owned = append(c.owned, overlay.Layer)
		m.DisableScrollWheelZoom()
	}
	plan.Overlay = overlay
	plan.RenderedAt = c.now()

	c.last = plan
	c.state = StateRendered
	return plan, nil
}

// drawnLine returns the line as it will be drawn. The backend's line is
// never modified.
func (c *Controller) drawnLine(line orb.LineString) orb.LineString {
	if c.simplify <= 0 || len(line) <= 2 {
		return line
	}
	return simplify.DouglasPeucker(c.simplify).LineString(line.Clone())
}

type overlayView struct {
	Optimal    *mission.OptimalSet
	Strategy   string
	AIResponse template.HTML
}
