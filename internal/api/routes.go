// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mission/internal/api/ui"
	"github.com/joeblew999/plat-mission/internal/basemap"
	"github.com/joeblew999/plat-mission/internal/humastar"
	"github.com/joeblew999/plat-mission/internal/journal"
	"github.com/joeblew999/plat-mission/internal/mapview"
	"github.com/joeblew999/plat-mission/internal/mission"
	"github.com/joeblew999/plat-mission/internal/planner"
	"github.com/joeblew999/plat-mission/internal/service"
	"github.com/joeblew999/plat-mission/internal/upstream"
)

// Version is reported by the health and info endpoints.
const Version = "1.0.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Backend planner.Backend
	Journal *journal.Journal
}

// Types

type NameInput struct {
	Name string `path:"name" doc:"Basemap key" example:"EsriSatellite"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type PlanBody struct {
	Workspace   string            `json:"workspace" doc:"Workspace ID"`
	State       string            `json:"state" doc:"Submission state" example:"rendered"`
	SidebarOpen bool              `json:"sidebarOpen" doc:"Whether the sidebar is visible"`
	Basemap     string            `json:"basemap,omitempty" doc:"Active basemap key"`
	Layers      []mapview.LayerID `json:"layers" doc:"Layers drawn by the sidebar"`
	Plan        *planner.Plan     `json:"plan,omitempty" doc:"Most recent rendered plan"`

	actions []humastar.Action
}

// OpPlanGeoJSON is the operation id of the plan GeoJSON export.
const OpPlanGeoJSON = "get-plan-geojson"

// Actions offers the next steps for the workspace's current state.
func (b PlanBody) Actions() []humastar.Action {
	return b.actions
}

// planActions resolves the actions for b against the registered
// operations. An operation that is not registered is left out.
func planActions(oapi *huma.OpenAPI, b PlanBody) []humastar.Action {
	var actions []humastar.Action
	if b.State != planner.StateSubmitting.String() && b.Basemap != "" {
		if a, ok := humastar.ActionFor(oapi, ui.OpSubmit, "submit", "Generate a plan"); ok {
			actions = append(actions, a)
		}
	}
	if b.Plan != nil {
		if a, ok := humastar.ActionFor(oapi, OpPlanGeoJSON, "geojson", "Rendered paths as GeoJSON"); ok {
			actions = append(actions, a)
		}
	}
	return actions
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
	api huma.API
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterBasemaps registers the basemap registry routes.
func (h *APIHandler) RegisterBasemaps(api huma.API) {
	huma.Get(api, "/api/v1/basemaps", h.GetBasemaps, huma.OperationTags("basemaps"))
	huma.Get(api, "/api/v1/basemaps/{name}", h.GetBasemap, huma.OperationTags("basemaps"))
}

// RegisterParams registers the backend option proxy.
func (h *APIHandler) RegisterParams(api huma.API) {
	huma.Get(api, "/api/v1/params", h.GetParams, huma.OperationTags("plan"))
}

// RegisterPlan registers the rendered plan routes for the caller's workspace.
func (h *APIHandler) RegisterPlan(api huma.API) {
	h.api = api
	huma.Get(api, "/api/v1/plan", h.GetPlan, huma.OperationTags("plan"))
	huma.Get(api, "/api/v1/plan/geojson", h.GetPlanGeoJSON, huma.OperationTags("plan"),
		func(o *huma.Operation) { o.OperationID = OpPlanGeoJSON })
}

// RegisterJournal registers the plan journal routes.
func (h *APIHandler) RegisterJournal(api huma.API) {
	huma.Get(api, "/api/v1/journal", h.GetJournal, huma.OperationTags("journal"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetBasemaps(ctx context.Context, input *struct{}) (*struct{ Body []basemap.TileSource }, error) {
	return &struct{ Body []basemap.TileSource }{Body: basemap.All()}, nil
}

func (h *APIHandler) GetBasemap(ctx context.Context, input *NameInput) (*struct{ Body basemap.TileSource }, error) {
	src, ok := basemap.Lookup(input.Name)
	if !ok {
		return nil, huma.Error404NotFound("basemap not found")
	}
	return &struct{ Body basemap.TileSource }{Body: src}, nil
}

func (h *APIHandler) GetParams(ctx context.Context, input *struct{}) (*struct{ Body mission.InputParameters }, error) {
	if h.svc == nil || h.svc.Backend == nil {
		return nil, huma.Error503ServiceUnavailable("backend not configured")
	}
	params, err := h.svc.Backend.InputParams(ctx)
	if err != nil {
		return nil, upstreamError(err)
	}
	return &struct{ Body mission.InputParameters }{Body: params}, nil
}

func (h *APIHandler) GetPlan(ctx context.Context, input *struct{}) (*struct{ Body PlanBody }, error) {
	ws, ok := service.WorkspaceFrom(ctx)
	if !ok {
		return nil, huma.Error404NotFound("no workspace for this session")
	}
	body := PlanBody{
		Workspace:   ws.ID,
		State:       ws.Controller.State().String(),
		SidebarOpen: ws.Controller.Open(),
		Layers:      ws.Controller.Layers(),
		Plan:        ws.Controller.Last(),
	}
	if m := ws.Map(); m != nil {
		body.Basemap = m.Basemap()
	}
	if h.api != nil {
		body.actions = planActions(h.api.OpenAPI(), body)
	}
	return &struct{ Body PlanBody }{Body: body}, nil
}

func (h *APIHandler) GetPlanGeoJSON(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	ws, ok := service.WorkspaceFrom(ctx)
	if !ok {
		return nil, huma.Error404NotFound("no workspace for this session")
	}
	plan := ws.Controller.Last()
	if plan == nil || plan.Response == nil {
		return nil, huma.Error404NotFound("no plan rendered")
	}
	data, err := json.Marshal(mission.FeatureCollection(plan.Response.Paths))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode paths", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetJournal(ctx context.Context, input *humastar.PageInput) (*struct {
	Body humastar.PageBody[journal.Entry]
}, error) {
	if h.svc == nil || h.svc.Journal == nil {
		return nil, huma.Error503ServiceUnavailable("journal not available")
	}
	entries, total, err := h.svc.Journal.List(ctx, input.Offset, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list journal", err)
	}
	return &struct {
		Body humastar.PageBody[journal.Entry]
	}{Body: humastar.NewPage(*input, total, entries)}, nil
}

// upstreamError maps a backend failure to a 502 carrying the backend status.
func upstreamError(err error) error {
	var se *upstream.StatusError
	if errors.As(err, &se) {
		return huma.Error502BadGateway("backend returned an error", err)
	}
	return huma.Error502BadGateway("backend unreachable", err)
}
