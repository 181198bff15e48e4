package humastar

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mission/internal/testutil"
)

func TestParseSignals(t *testing.T) {
	s, err := ParseSignals([]byte(`{"sidebarOpen": true, "error": "x"}`))
	require.NoError(t, err)
	assert.True(t, s.Bool("sidebarOpen"))
	assert.Equal(t, "x", s.String("error"))
	assert.False(t, s.Has("missing"))
	assert.Equal(t, "", s.String("sidebarOpen"))

	s, err = ParseSignals(nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = ParseSignals([]byte(`{`))
	assert.Error(t, err)
}

func TestSignalsInput_MustParse(t *testing.T) {
	in := &SignalsInput{RawBody: []byte(`nope`)}
	_, err := in.MustParse()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.GetStatus())
}

func TestRenderList(t *testing.T) {
	r := testutil.NewRenderer(t)

	empty := RenderList(r, "select-option", nil, "Vehicles", "No vehicles available")
	assert.Contains(t, empty, "No vehicles available")

	out := RenderList(r, "select-option", []any{SelectOptionData{Value: "a", Label: "A"}}, "", "")
	assert.Equal(t, `<option value="a">A</option>`, out)
}

func TestRenderSelect(t *testing.T) {
	r := testutil.NewRenderer(t)
	opts := []SelectOptionData{{Value: "a", Label: "A"}, {Value: "b", Label: "B"}}

	assert.Equal(t, `<option value=""></option><option value="a">A</option><option value="b">B</option>`, RenderSelect(r, "", opts))
	assert.Equal(t, `<option value="a">A</option><option value="b">B</option>`, RenderOptions(r, opts))
	assert.Empty(t, RenderOptions(r, nil))
}

func TestPaginationLinks(t *testing.T) {
	p := PageBody[int]{Total: 45, Offset: 20, Limit: 20}
	assert.Equal(t, []string{
		`</x?offset=0&limit=20>; rel="first"`,
		`</x?offset=0&limit=20>; rel="prev"`,
		`</x?offset=40&limit=20>; rel="next"`,
		`</x?offset=40&limit=20>; rel="last"`,
	}, p.PaginationLinks("/x"))

	empty := NewPage[int](PageInput{Limit: 10}, 0, nil)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, []string{
		`</x?offset=0&limit=10>; rel="first"`,
		`</x?offset=0&limit=10>; rel="last"`,
	}, empty.PaginationLinks("/x"))
}

func TestBuildPageData(t *testing.T) {
	_, api := humatest.New(t)
	huma.Register(api, huma.Operation{
		OperationID: "ui-mount",
		Method:      http.MethodGet,
		Path:        "/api/v1/ui/mount",
		Tags:        []string{"ui"},
		Extensions:  map[string]any{InitExtension: true},
	}, func(ctx context.Context, in *EmptyInput) (*struct{}, error) { return nil, nil })
	huma.Register(api, huma.Operation{
		OperationID: "ui-basemap",
		Method:      http.MethodPost,
		Path:        "/api/v1/ui/basemap/{name}",
		Tags:        []string{"ui"},
	}, func(ctx context.Context, in *struct {
		Name string `path:"name"`
	}) (*struct{}, error) {
		return nil, nil
	})
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
	}, func(ctx context.Context, in *EmptyInput) (*struct{}, error) { return nil, nil })

	pd := BuildPageData(api, "ui", map[string]any{"sidebarOpen": false})
	assert.JSONEq(t, `{"sidebarOpen": false}`, pd.Signals)
	assert.Equal(t, []string{"/api/v1/ui/mount"}, pd.SSEInits)
	assert.Equal(t, "@get('/api/v1/ui/mount')", pd.DataInit())
	assert.Equal(t, "/api/v1/ui/basemap/CartoDark", pd.Route("ui-basemap", "name", "CartoDark"))
	assert.NotContains(t, pd.Routes, "health")
}

func TestAction_LinkHeader(t *testing.T) {
	a := Action{Rel: "submit", Href: "/api/v1/ui/submit", Method: "POST", Title: "Generate a plan"}
	assert.Equal(t, `</api/v1/ui/submit>; rel="submit"; method="POST"; title="Generate a plan"`, a.LinkHeader())
	assert.Equal(t, `</x>; rel="up"`, Action{Rel: "up", Href: "/x"}.LinkHeader())
}

func TestActionFor(t *testing.T) {
	_, api := humatest.New(t)
	huma.Register(api, huma.Operation{
		OperationID: "ui-submit",
		Method:      http.MethodPost,
		Path:        "/api/v1/ui/submit",
	}, func(ctx context.Context, in *EmptyInput) (*struct{}, error) { return nil, nil })
	huma.Register(api, huma.Operation{
		OperationID: "plan-geojson",
		Method:      http.MethodGet,
		Path:        "/api/v1/plan/geojson",
	}, func(ctx context.Context, in *EmptyInput) (*struct{}, error) { return nil, nil })

	a, ok := ActionFor(api.OpenAPI(), "ui-submit", "submit", "Generate a plan")
	require.True(t, ok)
	assert.Equal(t, Action{Rel: "submit", Href: "/api/v1/ui/submit", Method: http.MethodPost, Title: "Generate a plan"}, a)

	a, ok = ActionFor(api.OpenAPI(), "plan-geojson", "geojson", "")
	require.True(t, ok)
	assert.Equal(t, `</api/v1/plan/geojson>; rel="geojson"`, a.LinkHeader())

	_, ok = ActionFor(api.OpenAPI(), "missing", "x", "")
	assert.False(t, ok)
	_, ok = ActionFor(nil, "ui-submit", "submit", "")
	assert.False(t, ok)
}
