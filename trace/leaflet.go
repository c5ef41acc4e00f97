package trace

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
)

// trackPalette cycles per trajectory file in first-seen order.
var trackPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Heat layer rendering parameters for the leaflet.heat plugin.
const (
	heatRadius     = 6
	heatBlur       = 15
	heatMinOpacity = 0.4
)

// HTMLOptions customizes the exported interactive page.
type HTMLOptions struct {
	Title string

	// ImageURL is the floor image shown under the layers; empty skips the
	// overlay and leaves a blank canvas with the same bounds.
	ImageURL string

	// PointSampleEvery draws every Nth track vertex as a small marker on top
	// of the polyline; 0 draws lines only.
	PointSampleEvery int
}

type htmlTrack struct {
	Name   string
	Color  string
	Coords template.JS // [[lat,lon],...]
}

type htmlPage struct {
	Title            string
	Width            float64
	Height           float64
	ImageURL         string
	Tracks           []htmlTrack
	Heat             template.JS // [[lat,lon,w],...]
	GeoJSON          template.JS // FeatureCollection or null
	HeatRadius       int
	HeatBlur         int
	HeatMinOpacity   float64
	PointSampleEvery int
}

// WriteFloorHTML renders one floor as a self-contained Leaflet page using the
// CRS.Simple coordinate system: the map unit is the image pixel, tracks and
// heat points are plotted as (lat=pixel_y, lon=pixel_x), and the image
// overlay spans [[0,0],[height,width]].
func WriteFloorHTML(w io.Writer, result *FloorResult, opts HTMLOptions) error {
	page := htmlPage{
		Title:            opts.Title,
		Width:            result.Width,
		Height:           result.Height,
		ImageURL:         opts.ImageURL,
		HeatRadius:       heatRadius,
		HeatBlur:         heatBlur,
		HeatMinOpacity:   heatMinOpacity,
		PointSampleEvery: opts.PointSampleEvery,
	}

	for i, track := range result.Tracks {
		coords := make([][2]float64, len(track))
		for j, p := range track {
			coords[j] = [2]float64{p.Y, p.X}
		}
		data, err := json.Marshal(coords)
		if err != nil {
			return fmt.Errorf("encoding track coordinates: %w", err)
		}
		name := fmt.Sprintf("track_%d", i)
		if i < len(result.TrackNames) {
			name = result.TrackNames[i]
		}
		page.Tracks = append(page.Tracks, htmlTrack{
			Name:   name,
			Color:  trackPalette[i%len(trackPalette)],
			Coords: template.JS(data),
		})
	}

	triples := make([][3]float64, len(result.Heat))
	for i, h := range result.Heat {
		triples[i] = [3]float64{h.Lat, h.Lon, h.Weight}
	}
	heatData, err := json.Marshal(triples)
	if err != nil {
		return fmt.Errorf("encoding heat points: %w", err)
	}
	page.Heat = template.JS(heatData)

	page.GeoJSON = template.JS("null")
	if result.GeoJSON != nil {
		gj, err := json.Marshal(result.GeoJSON)
		if err != nil {
			return fmt.Errorf("encoding geojson: %w", err)
		}
		page.GeoJSON = template.JS(gj)
	}

	if err := floorTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("rendering floor HTML: %w", err)
	}
	return nil
}

var floorTemplate = template.Must(template.New("floor").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/leaflet.heat@0.2.0/dist/leaflet-heat.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var bounds = [[0, 0], [{{.Height}}, {{.Width}}]];
var map = L.map('map', { crs: L.CRS.Simple, minZoom: -4 });
map.fitBounds(bounds);

{{if .ImageURL}}
L.imageOverlay({{.ImageURL}}, bounds).addTo(map);
{{end}}

var overlays = {};

var gtGroup = L.featureGroup();
{{range .Tracks}}
(function() {
	var coords = {{.Coords}};
	L.polyline(coords, { color: {{.Color}}, weight: 3, opacity: 0.9 })
		.bindTooltip({{.Name}}).addTo(gtGroup);
	{{if gt $.PointSampleEvery 0}}
	for (var i = 0; i < coords.length; i += {{$.PointSampleEvery}}) {
		L.circleMarker(coords[i], {
			radius: 2, weight: 1, fill: true, fillOpacity: 0.9, color: '#333333'
		}).addTo(gtGroup);
	}
	{{end}}
})();
{{end}}
gtGroup.addTo(map);
overlays['GT tracks'] = gtGroup;

var heatData = {{.Heat}};
if (heatData.length > 0) {
	var heat = L.heatLayer(heatData, {
		radius: {{.HeatRadius}},
		blur: {{.HeatBlur}},
		minOpacity: {{.HeatMinOpacity}},
		maxZoom: 18
	}).addTo(map);
	overlays['Heat'] = heat;
}

var gj = {{.GeoJSON}};
if (gj) {
	var gjLayer = L.geoJSON(gj, {
		coordsToLatLng: function(c) { return L.latLng(c[1], c[0]); },
		style: { color: '#000000', weight: 1, fillOpacity: 0.1 }
	}).addTo(map);
	overlays['Map'] = gjLayer;
}

L.control.layers(null, overlays, { collapsed: false }).addTo(map);
</script>
</body>
</html>
`))
