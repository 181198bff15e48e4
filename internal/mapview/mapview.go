// Package mapview models the map instance shown on the page.
//
// The server owns the map state: every mutation is recorded on the Map and
// queued as a Command. Handlers drain the queue and stream it to the page,
// where a small script applies it to the Leaflet instance.
package mapview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mission/internal/basemap"
)

// ErrNoContainer is returned when a map is created without a container id.
var ErrNoContainer = errors.New("mapview: container id is required")

// Kind classifies layers.
type Kind string

const (
	KindTile     Kind = "tile"
	KindPolyline Kind = "polyline"
	KindMarker   Kind = "marker"
)

// LayerID identifies a layer on one map.
type LayerID string

// Layer is a drawn layer. Only the fields for its Kind are set.
type Layer struct {
	ID      LayerID
	Kind    Kind
	Basemap string
	Line    orb.LineString
	At      orb.Point
	Color   string
	Tooltip string
	HTML    string
}

// Options fixes the view constraints of a map.
type Options struct {
	Bounds  orb.Bound
	Center  orb.Point
	MinZoom int
	MaxZoom int
	Basemap string
}

// DefaultOptions constrains the map to the world, centered on (0, 0).
func DefaultOptions() Options {
	return Options{
		Bounds:  orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}},
		Center:  orb.Point{0, 0},
		MinZoom: 3,
		MaxZoom: 20,
		Basemap: basemap.Default,
	}
}

// Map is one map instance bound to a page container.
type Map struct {
	mu              sync.Mutex
	container       string
	opts            Options
	zoom            int
	zoomControl     string
	scrollWheelZoom bool
	basemap         string
	layers          []Layer
	seq             int
	pending         []Command
}

// Initialize creates a map with DefaultOptions in containerID and hands it to
// onReady before returning.
func Initialize(containerID string, onReady func(*Map)) (*Map, error) {
	m, err := New(containerID, DefaultOptions())
	if err != nil {
		return nil, err
	}
	if onReady != nil {
		onReady(m)
	}
	return m, nil
}

// New creates a map: view at the center and min zoom, the configured tile
// source, max bounds, and the zoom control moved to the top right.
func New(containerID string, opts Options) (*Map, error) {
	if containerID == "" {
		return nil, ErrNoContainer
	}
	src, ok := basemap.Lookup(opts.Basemap)
	if !ok {
		return nil, fmt.Errorf("mapview: unknown basemap %q", opts.Basemap)
	}

	m := &Map{
		container:       containerID,
		opts:            opts,
		zoom:            opts.MinZoom,
		scrollWheelZoom: true,
	}
	bounds := boundsOf(opts.Bounds)
	center := latLng(opts.Center)
	m.queue(Command{
		Op:        OpInit,
		Container: containerID,
		Center:    &center,
		Zoom:      m.zoom,
		MinZoom:   opts.MinZoom,
		MaxZoom:   opts.MaxZoom,
		Bounds:    &bounds,
	})
	m.addTileLocked(src)
	m.zoomControl = "topright"
	m.queue(Command{Op: OpZoomControl, Position: m.zoomControl})
	return m, nil
}

// SwitchBasemap replaces every tile layer with the named source. Unknown
// names leave the map untouched and report false.
func (m *Map) SwitchBasemap(name string) bool {
	src, ok := basemap.Lookup(name)
	if !ok {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.layers[:0]
	for _, l := range m.layers {
		if l.Kind == KindTile {
			m.queue(Command{Op: OpRemoveLayer, Layer: l.ID})
			continue
		}
		kept = append(kept, l)
	}
	m.layers = kept
	m.addTileLocked(src)
	return true
}

// AddPolyline draws line with color and a hover tooltip.
func (m *Map) AddPolyline(line orb.LineString, color, tooltip string) LayerID {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := Layer{ID: m.nextID(), Kind: KindPolyline, Line: line, Color: color, Tooltip: tooltip}
	m.layers = append(m.layers, l)

	latlngs := make([][2]float64, len(line))
	for i, p := range line {
		latlngs[i] = latLng(p)
	}
	m.queue(Command{Op: OpAddPolyline, Layer: l.ID, LatLngs: latlngs, Color: color, Tooltip: tooltip})
	return l.ID
}

// AddMarker places an HTML box at a point.
func (m *Map) AddMarker(at orb.Point, html string) LayerID {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := Layer{ID: m.nextID(), Kind: KindMarker, At: at, HTML: html}
	m.layers = append(m.layers, l)
	pos := latLng(at)
	m.queue(Command{Op: OpAddMarker, Layer: l.ID, LatLng: &pos, HTML: html})
	return l.ID
}

// RemoveLayer removes a layer by id. It reports whether the layer existed.
func (m *Map) RemoveLayer(id LayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.ID == id {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.queue(Command{Op: OpRemoveLayer, Layer: id})
			return true
		}
	}
	return false
}

// DisableScrollWheelZoom turns off scroll-to-zoom.
func (m *Map) DisableScrollWheelZoom() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scrollWheelZoom {
		return
	}
	m.scrollWheelZoom = false
	m.queue(Command{Op: OpDisableScrollZoom})
}

// Layers returns a copy of the layers of the given kind, or all layers when
// kind is empty, in draw order.
func (m *Map) Layers(kind Kind) []Layer {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Layer{}
	for _, l := range m.layers {
		if kind == "" || l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// Drain returns and clears the queued commands.
func (m *Map) Drain() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmds := m.pending
	m.pending = nil
	return cmds
}

// Container returns the page element id the map is bound to.
func (m *Map) Container() string { return m.container }

// Center returns the view center.
func (m *Map) Center() orb.Point { return m.opts.Center }

// Bounds returns the max bounds.
func (m *Map) Bounds() orb.Bound { return m.opts.Bounds }

// Options returns the view constraints.
func (m *Map) Options() Options { return m.opts }

// Zoom returns the current zoom level.
func (m *Map) Zoom() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// ZoomControl returns the zoom control position.
func (m *Map) ZoomControl() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoomControl
}

// ScrollWheelZoom reports whether scroll-to-zoom is enabled.
func (m *Map) ScrollWheelZoom() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scrollWheelZoom
}

// Basemap returns the key of the active tile source.
func (m *Map) Basemap() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.basemap
}

// addTileLocked must be called with mu held, or before m is shared.
func (m *Map) addTileLocked(src basemap.TileSource) {
	l := Layer{ID: m.nextID(), Kind: KindTile, Basemap: src.Key}
	m.layers = append(m.layers, l)
	m.basemap = src.Key
	m.queue(Command{
		Op:          OpAddTile,
		Layer:       l.ID,
		URL:         src.Link,
		Attribution: src.Attribution,
		MinZoom:     m.opts.MinZoom,
		MaxZoom:     m.opts.MaxZoom,
		NoWrap:      true,
	})
}

func (m *Map) nextID() LayerID {
	m.seq++
	return LayerID(fmt.Sprintf("layer-%d", m.seq))
}

func (m *Map) queue(c Command) {
	m.pending = append(m.pending, c)
}

func latLng(p orb.Point) [2]float64 {
	return [2]float64{p.Lat(), p.Lon()}
}

func boundsOf(b orb.Bound) [2][2]float64 {
	return [2][2]float64{latLng(b.Min), latLng(b.Max)}
}
