// Package feed turns loosely-typed content feed entries into events. The
// upstream schema is not stable across entries, so every logical attribute
// is looked up under an ordered list of candidate field names and the first
// structurally valid value wins.
package feed

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/culturalbot/eventbot/internal/model"
)

// Entry is one raw record from the content feed. Assets maps linked asset ids
// to absolute file URLs.
type Entry struct {
	ID     string
	Fields map[string]any
	Assets map[string]string
}

// Candidate field names per attribute, in lookup order.
var (
	TitleKeys    = []string{"title", "titulo", "name", "nombre"}
	StartKeys    = []string{"date", "startDate", "start_date", "fechaInicio", "fecha_inicio", "fecha", "start"}
	EndKeys      = []string{"endDate", "end_date", "fechaFin", "fecha_fin", "fechaTermino", "end"}
	TimeKeys     = []string{"time", "hora", "startTime", "start_time", "horario"}
	PriceKeys    = []string{"price", "precio", "cost", "costo"}
	LocationKeys = []string{"address", "location", "lugar", "venue", "ubicacion", "direccion"}
	ImageKeys    = []string{"image", "imagen", "cover", "poster", "thumbnail"}
	SlugKeys     = []string{"slug", "urlSlug", "url_slug", "handle"}
	LinkKeys     = []string{"url", "link", "eventUrl", "event_url", "enlace"}
)

const untitled = "Evento sin título"

var dateLayouts = []struct {
	layout   string
	hasClock bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04Z07:00", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02", false},
}

// Resolve maps an entry onto an event. Attributes that cannot be resolved
// are left at their zero value.
func Resolve(e Entry) model.Event {
	ev := model.Event{ID: e.ID}

	ev.Title = firstString(e.Fields, TitleKeys)
	if ev.Title == "" {
		ev.Title = untitled
	}

	if t, clock, ok := firstDate(e.Fields, StartKeys); ok {
		ev.Start = &t
		ev.HasClock = clock
	}
	if t, _, ok := firstDate(e.Fields, EndKeys); ok {
		ev.End = &t
	}

	ev.Time = firstString(e.Fields, TimeKeys)
	ev.Location = firstString(e.Fields, LocationKeys)
	if p, ok := firstNumber(e.Fields, PriceKeys); ok {
		ev.Price = &p
	}
	ev.ImageURL = firstImage(e.Fields, e.Assets, ImageKeys)
	ev.Slug = firstString(e.Fields, SlugKeys)
	ev.URL = firstString(e.Fields, LinkKeys)
	return ev
}

func ResolveAll(entries []Entry) []model.Event {
	out := make([]model.Event, 0, len(entries))
	for _, e := range entries {
		out = append(out, Resolve(e))
	}
	return out
}

func firstString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstDate(fields map[string]any, keys []string) (time.Time, bool, bool) {
	for _, k := range keys {
		s, ok := fields[k].(string)
		if !ok {
			continue
		}
		if t, clock, ok := ParseDate(s); ok {
			return t, clock, true
		}
	}
	return time.Time{}, false, false
}

// ParseDate accepts the date shapes seen in the feed. Values without an
// offset are read as UTC. The second result reports whether the value
// carried a time of day.
func ParseDate(s string) (time.Time, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.hasClock, true
		}
	}
	return time.Time{}, false, false
}

// firstNumber only accepts JSON numbers; strings such as "gratis" or "25"
// are treated as non-numeric.
func firstNumber(fields map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// firstImage understands plain URL strings, asset links ({sys:{id}}) and
// inline assets ({fields:{file:{url}}}).
func firstImage(fields map[string]any, assets map[string]string, keys []string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if u := absoluteURL(v); u != "" {
				return u
			}
		case map[string]any:
			if u := inlineAssetURL(v); u != "" {
				return u
			}
			if sys, ok := v["sys"].(map[string]any); ok {
				if id, ok := sys["id"].(string); ok {
					if u := absoluteURL(assets[id]); u != "" {
						return u
					}
				}
			}
		}
	}
	return ""
}

func inlineAssetURL(asset map[string]any) string {
	f, ok := asset["fields"].(map[string]any)
	if !ok {
		return ""
	}
	file, ok := f["file"].(map[string]any)
	if !ok {
		return ""
	}
	u, _ := file["url"].(string)
	return absoluteURL(u)
}

func absoluteURL(u string) string {
	u = strings.TrimSpace(u)
	switch {
	case u == "":
		return ""
	case strings.HasPrefix(u, "//"):
		return "https:" + u
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return u
	}
	return ""
}
