// Package ui contains the Datastar SSE handlers behind the mission planner
// page: map mount, sidebar toggle, basemap switching, plan submission and
// the per-workspace status feed.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mission/internal/humastar"
	"github.com/joeblew999/plat-mission/internal/mapview"
	"github.com/joeblew999/plat-mission/internal/mission"
	"github.com/joeblew999/plat-mission/internal/planner"
	"github.com/joeblew999/plat-mission/internal/service"
	"github.com/joeblew999/plat-mission/internal/templates"
	"github.com/joeblew999/plat-mission/internal/upstream"
)

// Tag groups the page operations in the OpenAPI document.
const Tag = "ui"

// Operation ids the page template resolves to URLs.
const (
	OpMount   = "ui-mount"
	OpToggle  = "ui-toggle"
	OpBasemap = "ui-basemap"
	OpSubmit  = "ui-submit"
	OpEvents  = "ui-events"
)

// DefaultContainer is the id of the map element on the page.
const DefaultContainer = "map"

// Handler serves the planner page operations.
type Handler struct {
	humastar.Handler
	bus       *service.EventBus
	logger    *slog.Logger
	container string
}

// New creates a UI handler. bus may be nil, in which case the status feed
// stays silent.
func New(renderer *templates.Renderer, bus *service.EventBus, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Handler:   humastar.Handler{Renderer: renderer},
		bus:       bus,
		logger:    logger,
		container: DefaultContainer,
	}
}

type BasemapInput struct {
	Name string `path:"name" doc:"Basemap key" example:"EsriSatellite"`
}

type SubmitInput struct {
	RawBody multipart.Form
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: OpMount,
		Method:      http.MethodGet,
		Path:        "/api/v1/ui/mount",
		Summary:     "Initialize the map and load the form options",
		Tags:        []string{Tag},
		Extensions:  map[string]any{humastar.InitExtension: true},
	}, h.Mount)

	huma.Register(api, huma.Operation{
		OperationID: OpToggle,
		Method:      http.MethodPost,
		Path:        "/api/v1/ui/sidebar/toggle",
		Summary:     "Show or hide the sidebar",
		Tags:        []string{Tag},
	}, h.Toggle)

	huma.Register(api, huma.Operation{
		OperationID: OpBasemap,
		Method:      http.MethodPost,
		Path:        "/api/v1/ui/basemap/{name}",
		Summary:     "Switch the active basemap",
		Tags:        []string{Tag},
	}, h.Basemap)

	huma.Register(api, huma.Operation{
		OperationID: OpSubmit,
		Method:      http.MethodPost,
		Path:        "/api/v1/ui/submit",
		Summary:     "Submit the plan form and draw the returned paths",
		Tags:        []string{Tag},
	}, h.Submit)

	huma.Register(api, huma.Operation{
		OperationID: OpEvents,
		Method:      http.MethodGet,
		Path:        "/api/v1/ui/events",
		Summary:     "Stream plan status for this workspace",
		Tags:        []string{Tag},
	}, h.Events)
}

func (h *Handler) Mount(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	ws, err := workspace(ctx)
	if err != nil {
		return nil, err
	}
	m, err := ws.Mount(h.container)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to initialize map", err)
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{"sidebarOpen": ws.Controller.Open(), "error": ""})
		h.flush(sse, m)

		if err := ws.Controller.Mount(ctx); err != nil {
			_ = sse.ConsoleError(fmt.Errorf("Error fetching input parameters: %w", err))
		}
		opts := ws.Controller.Options()

		vehicles := make([]any, len(opts.Vehicles))
		for i, v := range opts.Vehicles {
			vehicles[i] = v
		}
		sse.Patch(h.RenderList("vehicle-option", vehicles, "Vehicles", "No vehicles available"), "#vehicles")
		sse.Patch(h.RenderSelect("", strategyOptions(opts.Strategies)), "#strategy")
		sse.Patch(h.RenderOptions(objectiveOptions(opts.Objectives)), "#objective")
	}), nil
}

// Toggle flips the sidebar. When the page sends its signals, the flip
// starts from what the page shows, so tabs sharing a workspace stay in
// step. Closing the sidebar dismisses a shown error.
func (h *Handler) Toggle(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	ws, err := workspace(ctx)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	var open bool
	if signals.Has("sidebarOpen") {
		open = ws.Controller.SetOpen(!signals.Bool("sidebarOpen"))
	} else {
		open = ws.Controller.Toggle()
	}

	patch := map[string]any{"sidebarOpen": open}
	if !open && signals.String("error") != "" {
		patch["error"] = ""
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(patch)
	}), nil
}

func (h *Handler) Basemap(ctx context.Context, input *BasemapInput) (*huma.StreamResponse, error) {
	ws, err := workspace(ctx)
	if err != nil {
		return nil, err
	}
	m := ws.Map()
	if m == nil {
		return nil, huma.Error409Conflict("map not mounted")
	}
	if !m.SwitchBasemap(input.Name) {
		h.logger.Debug("basemap unchanged", "name", input.Name, "workspace", ws.ID)
	}
	return h.Stream(func(sse humastar.SSE) {
		h.flush(sse, m)
	}), nil
}

func (h *Handler) Submit(ctx context.Context, input *SubmitInput) (*huma.StreamResponse, error) {
	ws, err := workspace(ctx)
	if err != nil {
		return nil, err
	}
	if ws.Controller.State() == planner.StateSubmitting {
		return nil, huma.Error409Conflict("a plan is already being generated")
	}
	m := ws.Map()
	if m == nil {
		return nil, huma.Error409Conflict("map not mounted")
	}
	form := mission.ParseForm(input.RawBody.Value, ws.Controller.Options().Vehicles)

	return h.Stream(func(sse humastar.SSE) {
		sse.ClearError()
		_, err := ws.Controller.Submit(ctx, form, func() { h.flush(sse, m) })
		h.flush(sse, m)
		if err != nil {
			sse.Error(submitMessage(err))
		}
	}), nil
}

func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	ws, err := workspace(ctx)
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			var ch chan service.Event
			if h.bus != nil {
				ch = h.bus.Subscribe()
				defer h.bus.Unsubscribe(ch)
			}
			sse := humastar.NewSSE(humaCtx)

			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if ev.ID != ws.ID {
						continue
					}
					switch {
					case ev.Resource == service.ResourcePlans && ev.Action == service.ActionRendered && ev.Plan != nil:
						h.status(sse, "rendered", fmt.Sprintf("Plan rendered at %s with %d paths",
							ev.Plan.RenderedAt.Format(time.TimeOnly), len(ev.Plan.Paths)))
					case ev.Resource == service.ResourceWorkspaces && ev.Action == service.ActionExpired:
						h.status(sse, "expired", "Session expired, reload the page to continue")
						return
					}
					sse.DispatchCustomEvent("workspace-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
					})
				}
			}
		},
	}, nil
}

// flush sends the map commands queued since the last flush.
func (h *Handler) flush(sse humastar.SSE, m *mapview.Map) {
	if err := sse.ApplyMap(m.Drain()); err != nil {
		h.logger.Error("apply map commands", "error", err)
	}
}

func (h *Handler) status(sse humastar.SSE, kind, msg string) {
	html, err := h.Renderer.Render("plan-status", map[string]string{"Kind": kind, "Message": msg})
	if err != nil {
		h.logger.Error("render plan status", "error", err)
		return
	}
	sse.Patch(html, "#plan-status")
}

func workspace(ctx context.Context) (*service.Workspace, error) {
	ws, ok := service.WorkspaceFrom(ctx)
	if !ok {
		return nil, huma.Error400BadRequest("no workspace for this session")
	}
	return ws, nil
}

func submitMessage(err error) string {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("Error submitting form: HTTP error! status: %d", se.StatusCode)
	}
	if errors.Is(err, planner.ErrSubmitInFlight) {
		return "A plan is already being generated"
	}
	if errors.Is(err, planner.ErrMapReplaced) {
		return "The map was reloaded while the plan was generated, submit again"
	}
	return "Error submitting form: " + err.Error()
}

func strategyOptions(in []mission.StrategyOption) []humastar.SelectOptionData {
	out := make([]humastar.SelectOptionData, len(in))
	for i, s := range in {
		out[i] = humastar.SelectOptionData{Value: s.ID, Label: s.Name}
	}
	return out
}

func objectiveOptions(in []mission.ObjectiveOption) []humastar.SelectOptionData {
	out := make([]humastar.SelectOptionData, len(in))
	for i, o := range in {
		out[i] = humastar.SelectOptionData{Value: o.ID, Label: o.Name}
	}
	return out
}
