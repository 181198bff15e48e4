package mapview

import "encoding/json"

// Command operations understood by the page script.
const (
	OpInit              = "init"
	OpAddTile           = "addTile"
	OpAddPolyline       = "addPolyline"
	OpAddMarker         = "addMarker"
	OpRemoveLayer       = "removeLayer"
	OpZoomControl       = "zoomControl"
	OpDisableScrollZoom = "disableScrollWheelZoom"
)

// Command is one map mutation for the page to replay. Coordinates are
// [lat, lng] pairs, the order Leaflet expects.
type Command struct {
	Op          string         `json:"op"`
	Layer       LayerID        `json:"layer,omitempty"`
	Container   string         `json:"container,omitempty"`
	Center      *[2]float64    `json:"center,omitempty"`
	Zoom        int            `json:"zoom,omitempty"`
	MinZoom     int            `json:"minZoom,omitempty"`
	MaxZoom     int            `json:"maxZoom,omitempty"`
	Bounds      *[2][2]float64 `json:"bounds,omitempty"`
	URL         string         `json:"url,omitempty"`
	Attribution string         `json:"attribution,omitempty"`
	NoWrap      bool           `json:"noWrap,omitempty"`
	LatLngs     [][2]float64   `json:"latlngs,omitempty"`
	LatLng      *[2]float64    `json:"latlng,omitempty"`
	Color       string         `json:"color,omitempty"`
	Tooltip     string         `json:"tooltip,omitempty"`
	HTML        string         `json:"html,omitempty"`
	Position    string         `json:"position,omitempty"`
}

// Script renders commands as a call to the page's map applier.
func Script(cmds []Command) (string, error) {
	if len(cmds) == 0 {
		return "", nil
	}
	payload, err := json.Marshal(cmds)
	if err != nil {
		return "", err
	}
	return "window.missionMap.apply(" + string(payload) + ")", nil
}
