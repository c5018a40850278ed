package render

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"path/filepath"

	"drinklog/config"
	"drinklog/models"
	"drinklog/storage"
	"drinklog/utils"
)

const (
	AlcoholMapFile        = "alcohol_map.html"
	ColoredAlcoholMapFile = "colored_alcohol_map.html"

	leafletVersion = "1.9.4"
	mapCenterLat   = 40.0
	mapCenterLon   = -3.0
	mapZoom        = 6
	markerRadius   = 10
)

// Circle is one shape on a map page. Radius is in meters for per-row circles
// and in pixels for region markers.
type Circle struct {
	Lat    float64
	Lon    float64
	Radius float64
	Color  string
	Popup  template.HTML
}

type mapPage struct {
	Title   string
	Leaflet string
	Lat     float64
	Lon     float64
	Zoom    int
	Marker  bool
	Circles []Circle
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@{{.Leaflet}}/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@{{.Leaflet}}/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map").setView([{{.Lat}}, {{.Lon}}], {{.Zoom}});
L.tileLayer("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", {
  attribution: "&copy; OpenStreetMap contributors"
}).addTo(map);
</script>
<ul id="shapes" hidden>
{{- range .Circles}}
<li class="shape" data-lat="{{.Lat}}" data-lon="{{.Lon}}" data-radius="{{.Radius}}" data-color="{{.Color}}">{{.Popup}}</li>
{{- end}}
</ul>
<script>
document.querySelectorAll("#shapes .shape").forEach(function (el) {
  var d = el.dataset;
  var style = {color: d.color, fillColor: d.color, fill: true, fillOpacity: 0.7, radius: parseFloat(d.radius)};
  var shape = {{if .Marker}}L.circleMarker{{else}}L.circle{{end}}([parseFloat(d.lat), parseFloat(d.lon)], style);
  shape.bindPopup(el.innerHTML).addTo(map);
});
</script>
</body>
</html>
`))

// MapRenderer writes the Leaflet maps of alcohol by region.
type MapRenderer struct {
	dir    string
	scale  float64
	coords map[string]config.RegionCoord
	logger *utils.Logger
}

// NewMapRenderer places regions using the rule table's coordinates. scale
// multiplies per-row circle radii.
func NewMapRenderer(dir string, scale float64, rules *config.Rules, logger *utils.Logger) *MapRenderer {
	return &MapRenderer{dir: dir, scale: scale, coords: rules.Coordinates(), logger: logger}
}

// RenderAll writes both maps and returns their paths.
func (m *MapRenderer) RenderAll(entries []models.EnrichedEntry, locations []models.LocationAggregate) ([]string, error) {
	pages := []struct {
		file string
		page mapPage
	}{
		{AlcoholMapFile, m.page("Alcohol map", false, m.RowCircles(entries))},
		{ColoredAlcoholMapFile, m.page("Alcohol by region", true, m.RegionMarkers(locations))},
	}

	paths := make([]string, 0, len(pages))
	for _, p := range pages {
		var buf bytes.Buffer
		if err := mapTemplate.Execute(&buf, p.page); err != nil {
			return paths, fmt.Errorf("map %s: render: %w", p.file, err)
		}
		path := filepath.Join(m.dir, p.file)
		if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
			return paths, fmt.Errorf("map %s: %w", p.file, err)
		}
		paths = append(paths, path)
		m.logger.Info("[maps] Wrote %s with %d shapes", path, len(p.page.Circles))
	}
	return paths, nil
}

func (m *MapRenderer) page(title string, marker bool, circles []Circle) mapPage {
	return mapPage{
		Title:   title,
		Leaflet: leafletVersion,
		Lat:     mapCenterLat,
		Lon:     mapCenterLon,
		Zoom:    mapZoom,
		Marker:  marker,
		Circles: circles,
	}
}

// RowCircles draws one circle per row whose region has coordinates, with
// radius alcohol × scale × 1000 meters.
func (m *MapRenderer) RowCircles(entries []models.EnrichedEntry) []Circle {
	var out []Circle
	for _, e := range entries {
		c, ok := m.coords[string(e.Location)]
		if !ok {
			continue
		}
		out = append(out, Circle{
			Lat:    c.Lat,
			Lon:    c.Lon,
			Radius: e.AlcoholLiters * m.scale * 1000,
			Color:  "#3388ff",
			Popup: popup("<b>%s</b><br>Alcohol (L): %.2f",
				string(e.Location), e.AlcoholLiters),
		})
	}
	return out
}

// RegionMarkers draws one marker per region colored by its share of the
// largest regional alcohol total.
func (m *MapRenderer) RegionMarkers(locations []models.LocationAggregate) []Circle {
	var peak float64
	for _, loc := range locations {
		peak = math.Max(peak, loc.AlcoholLiters)
	}

	var out []Circle
	for _, loc := range locations {
		c, ok := m.coords[string(loc.Location)]
		if !ok {
			continue
		}
		out = append(out, Circle{
			Lat:    c.Lat,
			Lon:    c.Lon,
			Radius: markerRadius,
			Color:  AlcoholColor(loc.AlcoholLiters, peak),
			Popup: popup("<b>%s</b><br>Alcohol total: %.2f L<br>Beverages: %d<br>Money: %s €",
				string(loc.Location), loc.AlcoholLiters, loc.Drinks, loc.Price.StringFixed(2)),
		})
	}
	return out
}

// AlcoholColor buckets value/max into red (> 0.66), orange (> 0.33) or green.
func AlcoholColor(value, max float64) string {
	if max <= 0 {
		return "green"
	}
	ratio := value / max
	switch {
	case ratio > 0.66:
		return "red"
	case ratio > 0.33:
		return "orange"
	default:
		return "green"
	}
}

// popup formats trusted markup around escaped region names.
func popup(format, name string, args ...any) template.HTML {
	all := append([]any{template.HTMLEscapeString(name)}, args...)
	return template.HTML(fmt.Sprintf(format, all...))
}
