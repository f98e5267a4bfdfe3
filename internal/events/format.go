package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/culturalbot/eventbot/internal/model"
)

const (
	NoEventsText   = "📅 No hay eventos programados actualmente."
	FetchErrorText = "❌ No se pudieron cargar los eventos en este momento."

	dateUnknown     = "Fecha por confirmar"
	locationUnknown = "Ubicación por confirmar"
	free            = "Gratis"
)

var (
	weekdays = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}
	months   = [...]string{"enero", "febrero", "marzo", "abril", "mayo", "junio", "julio",
		"agosto", "septiembre", "octubre", "noviembre", "diciembre"}
	separator = strings.Repeat("─", 25)
)

// Format renders the message body for one event.
func Format(ev model.Event, link string, loc *time.Location) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🎭 *%s*\n\n", ev.Title)
	date := ev.Start
	if date == nil {
		date = ev.End
	}
	fmt.Fprintf(&b, "📅 *Fecha:* %s\n", formatDate(date, loc))
	if t := formatTime(ev, loc); t != "" {
		fmt.Fprintf(&b, "🕐 *Hora:* %s\n", t)
	}

	location := ev.Location
	if location == "" {
		location = locationUnknown
	}
	fmt.Fprintf(&b, "📍 *Lugar:* %s\n", location)
	fmt.Fprintf(&b, "💰 *Precio:* %s\n", FormatPrice(ev.Price))

	b.WriteString("\n" + separator + "\n")
	fmt.Fprintf(&b, "🔗 *Más información:*\n%s", link)
	return b.String()
}

// FormatPrice renders numeric prices in soles. Anything else is free.
func FormatPrice(p *float64) string {
	if p == nil {
		return free
	}
	return fmt.Sprintf("S/ %.2f", *p)
}

// formatDate renders e.g. "martes, 10 de marzo de 2026".
func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return dateUnknown
	}
	lt := t.In(loc)
	return fmt.Sprintf("%s, %d de %s de %d", weekdays[lt.Weekday()], lt.Day(), months[lt.Month()-1], lt.Year())
}

// formatTime prefers the clock time carried by the start date, then the
// free-form time field. Date-only events without one have no time line.
func formatTime(ev model.Event, loc *time.Location) string {
	if ev.Start != nil && ev.HasClock {
		lt := ev.Start.In(loc)
		h := lt.Hour() % 12
		if h == 0 {
			h = 12
		}
		suffix := "a. m."
		if lt.Hour() >= 12 {
			suffix = "p. m."
		}
		return fmt.Sprintf("%02d:%02d %s", h, lt.Minute(), suffix)
	}
	return ev.Time
}
