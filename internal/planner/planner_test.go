package planner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mission/internal/mapview"
	"github.com/joeblew999/plat-mission/internal/mission"
	"github.com/joeblew999/plat-mission/internal/testutil"
)

const twoPaths = `{
	"status": "success",
	"paths": {
		"north": {"path": [[10, 0], [12, 2]], "terrain_counts": {"forest": 3, "urban": 1}},
		"south": {"path": [[5, 4], [6, 6]], "terrain_counts": {"water": 2}}
	},
	"ai_response": "<p>Go north.</p>",
	"optimal_set": {"time_frame": "dawn", "weather": "clear", "vehicle": "Humvee", "path": "north"}
}`

const threePaths = `{
	"status": "success",
	"paths": {
		"a": {"path": [[1, 1], [2, 2]], "terrain_counts": {"plains": 1}},
		"b": {"path": [[3, 3], [4, 4]], "terrain_counts": {"plains": 1}},
		"c": {"path": [[5, 5], [6, 6]], "terrain_counts": {"plains": 1}}
	},
	"ai_response": "",
	"optimal_set": {"time_frame": "dusk", "weather": "rain", "vehicle": "ATV"}
}`

func decodePlan(t *testing.T, body string) *mission.PlanResponse {
	t.Helper()
	var resp mission.PlanResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

type fixture struct {
	backend *testutil.FakeBackend
	ctrl    *Controller
	m       *mapview.Map
	plans   []*Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{backend: &testutil.FakeBackend{
		Params: mission.InputParameters{
			Vehicles:   []mission.VehicleOption{{ID: "humvee", Name: "Humvee"}},
			Strategies: []mission.StrategyOption{{ID: "stealth", Name: "Stealth"}},
		},
	}}
	f.ctrl = New(Config{
		Backend:    f.backend,
		Renderer:   testutil.NewRenderer(t),
		Logger:     testutil.NewTestLogger(t),
		OnRendered: func(p *Plan) { f.plans = append(f.plans, p) },
	})
	m, err := mapview.Initialize("map", f.ctrl.Attach)
	require.NoError(t, err)
	f.m = m
	return f
}

func form(strategy string) mission.FormSubmission {
	return mission.ParseForm(map[string][]string{
		"humvee":              {"on"},
		mission.FieldStrategy: {strategy},
	}, nil)
}

func colors(layers []mapview.Layer) []string {
	out := make([]string, len(layers))
	for i, l := range layers {
		out[i] = l.Color
	}
	return out
}

func TestMount(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, StateIdle, f.ctrl.State())

	require.NoError(t, f.ctrl.Mount(context.Background()))
	assert.Equal(t, StateReady, f.ctrl.State())
	assert.Len(t, f.ctrl.Options().Vehicles, 1)
}

func TestMount_FailureLeavesEmptyOptions(t *testing.T) {
	f := newFixture(t)
	f.backend.ParamsErr = errors.New("connection refused")

	err := f.ctrl.Mount(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateReady, f.ctrl.State())
	assert.Empty(t, f.ctrl.Options().Vehicles)
	assert.Empty(t, f.ctrl.Options().Strategies)
	assert.Empty(t, f.ctrl.Options().Objectives)
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.ctrl.Open())
	assert.True(t, f.ctrl.Toggle())
	assert.True(t, f.ctrl.Open())
	assert.False(t, f.ctrl.Toggle())
	assert.True(t, f.ctrl.SetOpen(true))
	assert.True(t, f.ctrl.SetOpen(true))
	assert.False(t, f.ctrl.Toggle())
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Len(t, f.m.Layers(""), 1)
}

func TestSubmit_RendersAndReplacesPaths(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Mount(context.Background()))
	f.backend.Queue(decodePlan(t, twoPaths), decodePlan(t, threePaths))

	plan, err := f.ctrl.Submit(context.Background(), form("stealth"), nil)
	require.NoError(t, err)
	assert.Equal(t, StateRendered, f.ctrl.State())

	lines := f.m.Layers(mapview.KindPolyline)
	assert.Equal(t, []string{"red", "blue"}, colors(lines))
	assert.Contains(t, lines[0].Tooltip, "north")
	assert.Contains(t, lines[0].Tooltip, "Forest: 75%")
	assert.Contains(t, lines[0].Tooltip, "Urban: 25%")
	assert.Contains(t, lines[1].Tooltip, "south")
	assert.Contains(t, lines[1].Tooltip, "Water: 100%")
	assert.NotContains(t, lines[1].Tooltip, "Forest")

	require.NotNil(t, plan.Overlay)
	assert.Equal(t, 2.0, plan.Overlay.Lat)
	assert.Equal(t, 3.0, plan.Overlay.Lon)
	assert.Equal(t, "Stealth", plan.Overlay.Strategy)
	assert.Contains(t, plan.Overlay.HTML, "Humvee")
	assert.Contains(t, plan.Overlay.HTML, "along <b>north</b>")
	assert.Contains(t, plan.Overlay.HTML, "<p>Go north.</p>")
	assert.Len(t, f.m.Layers(mapview.KindMarker), 1)
	assert.False(t, f.m.ScrollWheelZoom())

	plan, err = f.ctrl.Submit(context.Background(), form("stealth"), nil)
	require.NoError(t, err)

	lines = f.m.Layers(mapview.KindPolyline)
	assert.Equal(t, []string{"red", "blue", "green"}, colors(lines))
	assert.Len(t, f.m.Layers(mapview.KindMarker), 1)
	assert.Len(t, f.m.Layers(mapview.KindTile), 1)
	assert.Len(t, plan.Paths, 3)
	assert.Len(t, f.ctrl.Layers(), 4)
	assert.Len(t, f.plans, 2)
}

func TestSubmit_OmitsMissingOptimalPath(t *testing.T) {
	f := newFixture(t)
	f.backend.Queue(decodePlan(t, threePaths))

	plan, err := f.ctrl.Submit(context.Background(), form("unlisted"), nil)
	require.NoError(t, err)
	require.NotNil(t, plan.Overlay)
	assert.NotContains(t, plan.Overlay.HTML, "along")
	assert.Contains(t, plan.Overlay.HTML, "unlisted")
}

func TestSubmit_FailureClearsPaths(t *testing.T) {
	f := newFixture(t)
	f.backend.Queue(decodePlan(t, twoPaths))
	_, err := f.ctrl.Submit(context.Background(), form("stealth"), nil)
	require.NoError(t, err)

	f.backend.Err = errors.New("status 500")
	cleared := false
	_, err = f.ctrl.Submit(context.Background(), form("stealth"), func() {
		cleared = true
		assert.Equal(t, StateSubmitting, f.ctrl.State())
	})
	assert.Error(t, err)
	assert.True(t, cleared)

	assert.Equal(t, StateReady, f.ctrl.State())
	assert.Empty(t, f.m.Layers(mapview.KindPolyline))
	assert.Empty(t, f.m.Layers(mapview.KindMarker))
	assert.Len(t, f.m.Layers(mapview.KindTile), 1)
	assert.Nil(t, f.ctrl.Last())
	assert.Len(t, f.plans, 1)
}

func TestSubmit_LeavesForeignLayers(t *testing.T) {
	f := newFixture(t)
	foreign := f.m.AddMarker(orb.Point{1, 1}, "mine")
	f.backend.Queue(decodePlan(t, twoPaths), decodePlan(t, twoPaths))

	for range 2 {
		_, err := f.ctrl.Submit(context.Background(), form("stealth"), nil)
		require.NoError(t, err)
	}

	var found bool
	for _, l := range f.m.Layers(mapview.KindMarker) {
		found = found || l.ID == foreign
	}
	assert.True(t, found)
	assert.Len(t, f.m.Layers(mapview.KindMarker), 2)
}

func TestSubmit_InFlight(t *testing.T) {
	f := newFixture(t)
	f.backend.Block = make(chan struct{})

	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		_, err := f.ctrl.Submit(context.Background(), form("stealth"), func() { close(started) })
		done <- err
	}()
	<-started

	_, err := f.ctrl.Submit(context.Background(), form("stealth"), nil)
	assert.ErrorIs(t, err, ErrSubmitInFlight)

	close(f.backend.Block)
	require.NoError(t, <-done)
	assert.Equal(t, StateRendered, f.ctrl.State())
}

func TestSubmit_RemountDuringSubmit(t *testing.T) {
	f := newFixture(t)
	f.backend.Block = make(chan struct{})
	f.backend.Queue(decodePlan(t, twoPaths), decodePlan(t, threePaths))

	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		_, err := f.ctrl.Submit(context.Background(), form("stealth"), func() { close(started) })
		done <- err
	}()
	<-started

	remounted, err := mapview.Initialize("map", f.ctrl.Attach)
	require.NoError(t, err)
	require.True(t, remounted.SwitchBasemap("EsriSatellite"))
	require.True(t, remounted.SwitchBasemap("CartoDark"))
	tiles := remounted.Layers(mapview.KindTile)
	require.Len(t, tiles, 1)

	close(f.backend.Block)
	require.ErrorIs(t, <-done, ErrMapReplaced)
	assert.Equal(t, StateReady, f.ctrl.State())
	assert.Empty(t, f.ctrl.Layers())
	assert.Nil(t, f.ctrl.Last())
	assert.Empty(t, f.m.Layers(mapview.KindPolyline))
	assert.Empty(t, remounted.Layers(mapview.KindPolyline))
	assert.Empty(t, f.plans)

	_, err = f.ctrl.Submit(context.Background(), form("stealth"), nil)
	require.NoError(t, err)
	assert.Equal(t, tiles, remounted.Layers(mapview.KindTile))
	assert.Len(t, remounted.Layers(mapview.KindPolyline), 3)
	assert.Len(t, f.ctrl.Layers(), 4)
}

func TestSubmit_NoPointsSkipsOverlay(t *testing.T) {
	f := newFixture(t)
	f.backend.Queue(decodePlan(t, `{"status": "success", "paths": {"empty": {"path": [], "terrain_counts": {}}}, "ai_response": "x"}`))

	plan, err := f.ctrl.Submit(context.Background(), form("stealth"), nil)
	require.NoError(t, err)
	assert.Nil(t, plan.Overlay)
	assert.Len(t, f.m.Layers(mapview.KindPolyline), 1)
	assert.Empty(t, f.m.Layers(mapview.KindMarker))
	assert.True(t, f.m.ScrollWheelZoom())
}

func TestSubmit_NoMap(t *testing.T) {
	ctrl := New(Config{Backend: &testutil.FakeBackend{}, Renderer: testutil.NewRenderer(t)})
	_, err := ctrl.Submit(context.Background(), form("stealth"), nil)
	assert.ErrorIs(t, err, ErrNoMap)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "fetchingOptions", StateFetchingOptions.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestSubmit_Simplify(t *testing.T) {
	backend := &testutil.FakeBackend{}
	backend.Queue(decodePlan(t, `{"status": "success", "paths": {
		"straight": {"path": [[0, 0], [1, 1], [2, 2], [3, 3]], "terrain_counts": {"plains": 1}}
	}}`))
	ctrl := New(Config{
		Backend:  backend,
		Renderer: testutil.NewRenderer(t),
		Logger:   testutil.NewTestLogger(t),
		Simplify: 0.01,
	})
	m, err := mapview.Initialize("map", ctrl.Attach)
	require.NoError(t, err)

	plan, err := ctrl.Submit(context.Background(), form("stealth"), nil)
	require.NoError(t, err)
	require.Len(t, plan.Paths, 1)
	assert.Equal(t, 2, plan.Paths[0].Points)
	assert.Len(t, plan.Response.Paths[0].Line, 4)
	assert.Equal(t, -3.0, plan.Overlay.Lat)
	assert.Equal(t, 1.5, plan.Overlay.Lon)
	assert.Len(t, m.Layers(mapview.KindPolyline), 1)
}
