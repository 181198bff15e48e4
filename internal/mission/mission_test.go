package mission

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"low visibility", "Low Visibility"},
		{"", ""},
		{"FOREST", "Forest"},
		{"dense-forest edge", "Dense-forest Edge"},
		{"two  spaces", "Two  Spaces"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleCase(tt.in), "TitleCase(%q)", tt.in)
	}
}

func TestClassLabels(t *testing.T) {
	got := ClassLabels(TerrainCounts{{"forest", 3}, {"urban", 1}})
	assert.Equal(t, []ClassLabel{{"Forest", 75}, {"Urban", 25}}, got)
}

func TestClassLabels_RoundsIndependently(t *testing.T) {
	got := ClassLabels(TerrainCounts{{"a", 1}, {"b", 1}, {"c", 1}})
	sum := 0
	for _, l := range got {
		assert.Equal(t, 33, l.Percent)
		sum += l.Percent
	}
	assert.Equal(t, 99, sum)
}

func TestClassLabels_ZeroTotal(t *testing.T) {
	got := ClassLabels(TerrainCounts{{"water", 0}})
	assert.Equal(t, []ClassLabel{{"Water", 0}}, got)
	assert.Empty(t, ClassLabels(nil))
}

func TestPaths_UnmarshalKeepsOrder(t *testing.T) {
	body := `{
		"zeta": {"path": [[10, 0], [5, 1]], "terrain_counts": {"water": 1, "forest": 3}},
		"alpha": {"path": [[20, 2]], "terrain_counts": {}}
	}`
	var paths Paths
	require.NoError(t, json.Unmarshal([]byte(body), &paths))

	assert.Equal(t, []string{"zeta", "alpha"}, paths.Names())
	assert.Equal(t, orb.LineString{{0, 10}, {1, 5}}, paths[0].Line)
	assert.Equal(t, TerrainCounts{{"water", 1}, {"forest", 3}}, paths[0].Terrain)
	assert.Empty(t, paths[1].Terrain)
}

func TestPaths_UnmarshalRejectsShortPoint(t *testing.T) {
	var paths Paths
	err := json.Unmarshal([]byte(`{"p": {"path": [[1]], "terrain_counts": {}}}`), &paths)
	assert.Error(t, err)
}

func TestTerrainCounts_WholeNumbers(t *testing.T) {
	var counts TerrainCounts
	require.NoError(t, json.Unmarshal([]byte(`{"forest": 3.0, "urban": 1}`), &counts))
	assert.Equal(t, TerrainCounts{{"forest", 3}, {"urban", 1}}, counts)

	err := json.Unmarshal([]byte(`{"forest": 2.9}`), &counts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `terrain "forest"`)
}

func TestPlanResponse_Unmarshal(t *testing.T) {
	body := `{
		"status": "success",
		"paths": {"p1": {"path": [[1, 2]], "terrain_counts": {"plains": 2}}},
		"ai_response": "<h1>Plan</h1>",
		"optimal_set": {"time_frame": ["2024-05-01 06:00", "2024-05-01 12:00"], "weather": "clear", "vehicle": "Humvee", "path": null}
	}`
	var resp PlanResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	require.NotNil(t, resp.OptimalSet)
	assert.Equal(t, Text(`["2024-05-01 06:00","2024-05-01 12:00"]`), resp.OptimalSet.TimeFrame)
	assert.Equal(t, Text("clear"), resp.OptimalSet.Weather)
	assert.Equal(t, Text(""), resp.OptimalSet.Path)
	assert.Equal(t, "<h1>Plan</h1>", resp.AIResponse)
	assert.Len(t, resp.Paths, 1)
}

func TestLeastLatitude(t *testing.T) {
	paths := Paths{
		{Name: "p1", Line: orb.LineString{{0, 10}, {0, 5}}},
		{Name: "p2", Line: orb.LineString{{0, 20}}},
	}
	assert.Equal(t, 5.0, LeastLatitude(paths))
	assert.True(t, math.IsInf(LeastLatitude(nil), 1))
}

func TestAverageLongitude(t *testing.T) {
	paths := Paths{{Name: "p1", Line: orb.LineString{{10, 0}, {20, 0}}}}
	assert.Equal(t, 15.0, AverageLongitude(paths))
	assert.True(t, math.IsNaN(AverageLongitude(nil)))
}

func TestOverlayAnchor_UsesAllPoints(t *testing.T) {
	paths := Paths{
		{Name: "p1", Line: orb.LineString{{0, 10}, {4, 5}}},
		{Name: "p2", Line: orb.LineString{{8, 20}}},
	}
	anchor := OverlayAnchor(paths)
	assert.Equal(t, 2.0, anchor.Lat())
	assert.Equal(t, 4.0, anchor.Lon())
	assert.Equal(t, 3, PointCount(paths))
}

func TestLengthKm(t *testing.T) {
	p := Path{Line: orb.LineString{{0, 0}, {1, 0}}}
	assert.InDelta(t, 111.19, p.LengthKm(), 0.1)
	assert.Zero(t, Path{Line: orb.LineString{{0, 0}}}.LengthKm())
}

func TestFeatureCollection(t *testing.T) {
	paths := Paths{
		{Name: "a", Line: orb.LineString{{0, 0}, {1, 1}}, Terrain: TerrainCounts{{"forest", 1}}},
		{Name: "b", Line: orb.LineString{{2, 2}, {3, 3}}},
	}
	fc := FeatureCollection(paths)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "red", fc.Features[0].Properties["color"])
	assert.Equal(t, "blue", fc.Features[1].Properties["color"])
	assert.Equal(t, "a", fc.Features[0].Properties["name"])
}

func TestColorFor_Cycles(t *testing.T) {
	assert.Equal(t, "red", ColorFor(0))
	assert.Equal(t, "grey", ColorFor(6))
	assert.Equal(t, "red", ColorFor(7))
}

func TestParseForm(t *testing.T) {
	vehicles := []VehicleOption{{ID: "humvee"}, {ID: "atv"}, {ID: "boat"}}
	values := map[string][]string{
		"atv":           {"on"},
		"humvee":        {"on"},
		"zz-unknown":    {"on"},
		FieldStartLat:   {"34.5"},
		FieldStrategy:   {"stealth"},
		FieldResistance: {"low"},
	}
	f := ParseForm(values, vehicles)

	assert.Equal(t, []string{"humvee", "atv", "zz-unknown"}, f.Vehicles)
	assert.Equal(t, "34.5", f.Get(FieldStartLat))
	assert.Equal(t, "stealth", f.Get(FieldStrategy))
	assert.Equal(t, "", f.Get(FieldContext))
	assert.Len(t, f.Fields, len(namedFields))
}

func TestFormSubmission_WriteMultipart(t *testing.T) {
	f := ParseForm(map[string][]string{
		"humvee":       {"on"},
		FieldEndLon:    {"-71.2"},
		FieldAPIKey:    {""},
		FieldModel:     {"gpt-4"},
		FieldPersonnel: {"12"},
	}, []VehicleOption{{ID: "humvee"}})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, f.WriteMultipart(w))
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, form.Value["humvee"])
	assert.Equal(t, []string{"-71.2"}, form.Value[FieldEndLon])
	assert.Equal(t, []string{"12"}, form.Value[FieldPersonnel])
	assert.Equal(t, []string{""}, form.Value[FieldContext])
	assert.Equal(t, []string{"gpt-4"}, form.Value[FieldModel])
}

func TestLatestDateBounds(t *testing.T) {
	now := time.Date(2024, 2, 27, 15, 0, 0, 0, time.UTC)
	earliest, latest := LatestDateBounds(now)
	assert.Equal(t, "2024-02-27", earliest)
	assert.Equal(t, "2024-03-03", latest)
}

func TestStrategyName(t *testing.T) {
	p := InputParameters{Strategies: []StrategyOption{{ID: "stealth", Name: "Stealth"}}}
	assert.Equal(t, "Stealth", p.StrategyName("stealth"))
	assert.Equal(t, "unknown", p.StrategyName("unknown"))
}
