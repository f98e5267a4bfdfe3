package service

import (
	"strings"

	"github.com/culturalbot/eventbot/internal/model"
)

type Intent int

const (
	IntentFallback Intent = iota
	IntentOptOut
	IntentConfig
	IntentEvents
)

func (i Intent) String() string {
	switch i {
	case IntentOptOut:
		return "opt_out"
	case IntentConfig:
		return "config"
	case IntentEvents:
		return "events"
	default:
		return "fallback"
	}
}

// Button ids offered by the bot.
const (
	ButtonEvents   = "events"
	ButtonSettings = "settings"
	ButtonOptOut   = "optout"
)

const (
	textEvents = "eventos"
	textConfig = "configuración"
	textOptOut = "darse de baja"
)

var optOutKeywords = []string{
	"baja",
	"darse de baja",
	"unsubscribe",
	"desactivar",
	"desuscribir",
	"cancelar suscripción",
	"cancelar suscripcion",
}

// Canonical returns the normalized text of a message. Button replies are
// mapped onto the text a user would type for the same action.
func Canonical(msg model.InboundMessage) string {
	if msg.Type != model.TypeButtonReply {
		return normalize(msg.Text)
	}

	switch msg.ButtonID {
	case ButtonEvents:
		return textEvents
	case ButtonSettings:
		return textConfig
	case ButtonOptOut:
		return textOptOut
	}

	title := msg.ButtonTitle
	switch {
	case strings.Contains(title, "Ver Eventos"):
		return textEvents
	case strings.Contains(title, "Configuración"):
		return textConfig
	case strings.Contains(title, "Darse de baja"):
		return textOptOut
	}
	return normalize(title)
}

// Classify applies the routing precedence: opt-out, configuration, events,
// then fallback. Opt-out matches anywhere in the text.
func Classify(text string) Intent {
	text = normalize(text)

	for _, kw := range optOutKeywords {
		if strings.Contains(text, kw) {
			return IntentOptOut
		}
	}
	switch text {
	case "configuración", "configuracion":
		return IntentConfig
	case textEvents:
		return IntentEvents
	}
	return IntentFallback
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
