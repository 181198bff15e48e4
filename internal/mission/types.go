// Package mission holds the planning data model exchanged with the planning
// backend, plus the pure helpers used to label and position what gets drawn.
package mission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// VehicleOption is a selectable vehicle. Its ID doubles as the checkbox name.
type VehicleOption struct {
	ID          string `json:"vehicle-id" doc:"Vehicle identifier" example:"humvee"`
	Name        string `json:"vehicle-name" doc:"Display name" example:"Humvee"`
	Description string `json:"vehicle-description" doc:"Short description shown in the info tooltip"`
}

// StrategyOption is a selectable mission strategy.
type StrategyOption struct {
	ID   string `json:"strategy-id" doc:"Strategy identifier" example:"stealth"`
	Name string `json:"strategy-name" doc:"Display name" example:"Stealth"`
}

// ObjectiveOption is a selectable primary objective.
type ObjectiveOption struct {
	ID   string `json:"objective-id" doc:"Objective identifier" example:"hvt"`
	Name string `json:"objective-name" doc:"Display name" example:"Capture/Extract HVT"`
}

// InputParameters are the option lists the sidebar form is built from.
type InputParameters struct {
	Vehicles   []VehicleOption   `json:"vehicles" doc:"Available vehicles"`
	Strategies []StrategyOption  `json:"strategies" doc:"Available strategies"`
	Objectives []ObjectiveOption `json:"objectives" doc:"Available objectives"`
}

// StrategyName returns the display name for a strategy id, or the id itself
// when it is not one of the known options.
func (p InputParameters) StrategyName(id string) string {
	for _, s := range p.Strategies {
		if s.ID == id {
			return s.Name
		}
	}
	return id
}

// TerrainCount is one entry of a terrain tally.
type TerrainCount struct {
	Terrain string
	Count   int
}

// TerrainCounts is a terrain tally in the order the backend sent it.
type TerrainCounts []TerrainCount

// UnmarshalJSON decodes a JSON object keeping its key order.
func (t *TerrainCounts) UnmarshalJSON(data []byte) error {
	out := TerrainCounts{}
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("terrain %q: %w", key, err)
		}
		if n != math.Trunc(n) {
			return fmt.Errorf("terrain %q: count %v is not a whole number", key, n)
		}
		out = append(out, TerrainCount{Terrain: key, Count: int(n)})
		return nil
	})
	if err != nil {
		return err
	}
	*t = out
	return nil
}

// Total returns the sum of all counts.
func (t TerrainCounts) Total() int {
	total := 0
	for _, c := range t {
		total += c.Count
	}
	return total
}

// Path is one candidate route. Line holds orb points, which are lon/lat.
type Path struct {
	Name    string
	Line    orb.LineString
	Terrain TerrainCounts
}

type pathJSON struct {
	Path          [][]float64   `json:"path"`
	TerrainCounts TerrainCounts `json:"terrain_counts"`
}

// Paths is the backend's path mapping in iteration order.
type Paths []Path

// UnmarshalJSON decodes {name: {path: [[lat, lon], ...], terrain_counts: {...}}}
// keeping the key order, which drives color assignment.
func (p *Paths) UnmarshalJSON(data []byte) error {
	out := Paths{}
	err := decodeObject(data, func(key string, raw json.RawMessage) error {
		var pj pathJSON
		if err := json.Unmarshal(raw, &pj); err != nil {
			return fmt.Errorf("path %q: %w", key, err)
		}
		line := make(orb.LineString, 0, len(pj.Path))
		for i, pt := range pj.Path {
			if len(pt) < 2 {
				return fmt.Errorf("path %q: point %d has %d coordinates", key, i, len(pt))
			}
			line = append(line, orb.Point{pt[1], pt[0]})
		}
		out = append(out, Path{Name: key, Line: line, Terrain: pj.TerrainCounts})
		return nil
	})
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// Names returns the path names in order.
func (p Paths) Names() []string {
	names := make([]string, len(p))
	for i, path := range p {
		names[i] = path.Name
	}
	return names
}

// Text is a narrative value. The backend usually sends strings but time
// windows can arrive as arrays; anything that is not a string is kept as its
// compact JSON text.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Text(s)
		return nil
	}
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*t = ""
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

// OptimalSet is the backend's top recommendation. Path may be empty.
type OptimalSet struct {
	TimeFrame Text `json:"time_frame"`
	Weather   Text `json:"weather"`
	Vehicle   Text `json:"vehicle"`
	Path      Text `json:"path"`
}

// PlanResponse is the body returned by the submission endpoint.
type PlanResponse struct {
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	Paths      Paths       `json:"paths"`
	AIResponse string      `json:"ai_response"`
	OptimalSet *OptimalSet `json:"optimal_set"`
}

// decodeObject walks a JSON object calling fn for each member in order.
// A JSON null decodes as an empty object.
func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
