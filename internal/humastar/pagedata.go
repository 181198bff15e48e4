// pagedata.go: OpenAPI spec → page template data.
//
// BuildPageData extracts what the page template needs from the OpenAPI
// document so the HTML never hardcodes URLs or signal names:
//   - Signals JSON (data-signals init)
//   - Routes (operation ID → path, for every operation under a tag)
//   - SSE init URLs (operations marked with the x-datastar-init extension)
package humastar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// InitExtension marks a GET operation the page calls once on load.
const InitExtension = "x-datastar-init"

// PageData holds everything a page template needs from the OpenAPI spec.
type PageData struct {
	// Signals is the JSON string for data-signals initialization.
	Signals string

	// Routes maps operation IDs to their paths.
	// e.g. Routes["ui-mount"] = "/api/v1/ui/mount"
	Routes map[string]string

	// SSEInits holds the URLs of operations marked with InitExtension.
	SSEInits []string
}

// DataInit returns a Datastar data-init attribute value joining all SSE init URLs.
// e.g. "@get('/api/v1/ui/mount')"
func (pd PageData) DataInit() string {
	var parts []string
	for _, url := range pd.SSEInits {
		parts = append(parts, fmt.Sprintf("@get('%s')", url))
	}
	return strings.Join(parts, "; ")
}

// Route returns the path of an operation with {name} parameters filled in
// from params, given as name/value pairs.
func (pd PageData) Route(operationID string, params ...string) string {
	path := pd.Routes[operationID]
	for i := 0; i+1 < len(params); i += 2 {
		path = strings.ReplaceAll(path, "{"+params[i]+"}", params[i+1])
	}
	return path
}

// BuildPageData builds template data for the operations tagged with tag.
func BuildPageData(api huma.API, tag string, signals map[string]any) PageData {
	if signals == nil {
		signals = map[string]any{}
	}
	signalsJSON, _ := json.Marshal(signals)

	pd := PageData{
		Signals: string(signalsJSON),
		Routes:  map[string]string{},
	}

	paths := api.OpenAPI().Paths
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	for _, path := range keys {
		item := paths[path]
		for _, op := range []*huma.Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete} {
			if op == nil || !hasTag(op.Tags, tag) {
				continue
			}
			if op.OperationID != "" {
				pd.Routes[op.OperationID] = path
			}
			if init, _ := op.Extensions[InitExtension].(bool); init && op.Method == "GET" {
				pd.SSEInits = append(pd.SSEInits, path)
			}
		}
	}

	return pd
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
