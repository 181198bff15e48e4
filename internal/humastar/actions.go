package humastar

import (
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Action is a state-dependent hypermedia action link.
// Response bodies implement the Actor interface to emit conditional
// RFC 8288 Link headers with method and title extension parameters.
//
// Example Link header output:
//
//	</api/v1/ui/submit>; rel="submit"; method="POST"; title="Generate a plan"
type Action struct {
	Rel    string // custom rel (e.g., "submit", "geojson")
	Href   string // target URL
	Method string // HTTP method, omitted for GET
	Title  string // optional human-readable label
}

// Actor is implemented by response bodies that provide state-dependent actions.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as an RFC 8288 Link header value.
func (a Action) LinkHeader() string {
	h := fmt.Sprintf(`<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		h += fmt.Sprintf(`; method="%s"`, a.Method)
	}
	if a.Title != "" {
		h += fmt.Sprintf(`; title="%s"`, a.Title)
	}
	return h
}

// ActionFor builds an action targeting the operation registered as
// operationID, taking its path and method from the OpenAPI document. ok is
// false when no such operation is registered.
func ActionFor(oapi *huma.OpenAPI, operationID, rel, title string) (Action, bool) {
	if oapi == nil {
		return Action{}, false
	}
	for path, item := range oapi.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete} {
			if op == nil || op.OperationID != operationID {
				continue
			}
			a := Action{Rel: rel, Href: path, Title: title}
			if op.Method != http.MethodGet {
				a.Method = op.Method
			}
			return a, true
		}
	}
	return Action{}, false
}
