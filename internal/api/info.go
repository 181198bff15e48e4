package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	apiBase    string
	journalOK  bool
	workspaces func() int
}

func NewInfoHandler(apiBase string, journalOK bool, workspaces func() int) *InfoHandler {
	return &InfoHandler{apiBase: apiBase, journalOK: journalOK, workspaces: workspaces}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	APIBase    string   `json:"api_base" doc:"Planning backend base URL"`
	Journal    bool     `json:"journal" doc:"Whether the plan journal is available"`
	Workspaces int      `json:"workspaces" doc:"Active browser workspaces"`
	Features   []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	body := InfoBody{
		Name:     "plat-mission",
		Version:  Version,
		APIBase:  h.apiBase,
		Journal:  h.journalOK,
		Features: []string{"basemaps", "planning", "geojson", "datastar"},
	}
	if h.journalOK {
		body.Features = append(body.Features, "duckdb")
	}
	if h.workspaces != nil {
		body.Workspaces = h.workspaces()
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
