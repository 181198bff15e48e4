package api

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-mission/internal/humastar"
)

// links maps operation paths to their RFC 8288 Link header values.
// Enables restish hypermedia navigation via `restish links <url>`.
var links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/basemaps>; rel="basemaps"`,
		`</api/v1/plan>; rel="plan"`,
		`</api/v1/journal>; rel="journal"`,
	},
	"/api/v1/info": {
		`</health>; rel="health"`,
		`</api/v1/params>; rel="params"`,
	},
	"/api/v1/basemaps": {
		`</api/v1/basemaps/{name}>; rel="item"`,
	},
	"/api/v1/basemaps/{name}": {
		`</api/v1/basemaps>; rel="collection"`,
	},
	"/api/v1/params": {
		`</api/v1/plan>; rel="plan"`,
	},
	"/api/v1/plan": {
		`</api/v1/plan/geojson>; rel="alternate"; type="application/geo+json"`,
		`</api/v1/params>; rel="params"`,
		`</api/v1/journal>; rel="journal"`,
	},
	"/api/v1/plan/geojson": {
		`</api/v1/plan>; rel="up"`,
	},
	"/api/v1/journal": {
		`</api/v1/tables>; rel="tables"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="query"`,
		`</api/v1/journal>; rel="journal"`,
	},
}

// LinkTransformer returns a Huma Transformer that injects RFC 8288 Link
// headers, including state-dependent actions and pagination links for bodies
// that implement humastar.Actor or humastar.Pager.
func LinkTransformer() huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		// Item endpoints get a self link
		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", fmt.Sprintf(`<%s>; rel="self"`, ctx.URL().Path))
		}

		if a, ok := v.(humastar.Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		if p, ok := v.(humastar.Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		return v, nil
	}
}
