// Package basemap is the fixed registry of raster tile sources the map can
// switch between.
package basemap

// TileSource is a raster tile service reached by {s}/{z}/{x}/{y} URL
// template substitution.
type TileSource struct {
	Key         string `json:"key" doc:"Registry key" example:"EsriSatellite"`
	PrettyName  string `json:"prettyName" doc:"Display name" example:"Esri Satellite"`
	Link        string `json:"link" doc:"Tile URL template"`
	Attribution string `json:"attribution" doc:"HTML attribution string"`
}

// Default is the tile source active when a map is created.
const Default = "OpenStreetNormal"

var order = []string{
	"OpenStreetNormal",
	"EsriSatellite",
	"EsriStreetMap",
	"EsriTopographic",
	"CartoVoyager",
	"CartoLight",
	"CartoDark",
}

var registry = map[string]TileSource{
	"OpenStreetNormal": {
		PrettyName:  "Open Street Map",
		Link:        "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
	},
	"EsriSatellite": {
		PrettyName:  "Esri Satellite",
		Link:        "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri &mdash; Source: Esri, i-cubed, USDA, USGS, AEX, GeoEye, Getmapping, Aerogrid, IGN, IGP, UPR-EGP, and the GIS User Community",
	},
	"EsriStreetMap": {
		PrettyName:  "Esri Street Map",
		Link:        "https://server.arcgisonline.com/ArcGIS/rest/services/World_Street_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri",
	},
	"EsriTopographic": {
		PrettyName:  "Esri Topographic",
		Link:        "https://server.arcgisonline.com/ArcGIS/rest/services/World_Topo_Map/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles &copy; Esri",
	},
	"CartoVoyager": {
		PrettyName:  "Carto Voyager",
		Link:        "https://{s}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors & Carto",
	},
	"CartoLight": {
		PrettyName:  "Carto Positron (light)",
		Link:        "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors & Carto",
	},
	"CartoDark": {
		PrettyName:  "Carto Dark Matter (dark)",
		Link:        "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors & Carto",
	},
}

// Lookup returns the tile source registered under name.
func Lookup(name string) (TileSource, bool) {
	src, ok := registry[name]
	if !ok {
		return TileSource{}, false
	}
	src.Key = name
	return src, true
}

// All returns every tile source in display order.
func All() []TileSource {
	out := make([]TileSource, 0, len(order))
	for _, key := range order {
		src, _ := Lookup(key)
		out = append(out, src)
	}
	return out
}
