package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/culturalbot/eventbot/internal/dedup"
	"github.com/culturalbot/eventbot/internal/events"
	"github.com/culturalbot/eventbot/internal/model"
	"github.com/culturalbot/eventbot/internal/repo"
)

type Messenger interface {
	events.Messenger
	SendButtons(ctx context.Context, to, body string, buttons []model.Button) (string, error)
}

type EventDeliverer interface {
	Deliver(ctx context.Context, to string) error
}

const (
	menuText = "📌 ¿Qué te gustaría hacer?\n\nEscribe *eventos* para ver la agenda cultural o elige una opción:"

	optedOutText        = "✅ Te has dado de baja. Ya no te enviaremos mensajes.\n\nSi quieres ver la agenda, escribe *eventos* cuando lo desees."
	alreadyOptedOutText = "ℹ️ Ya estabas dado de baja. Puedes escribir *eventos* cuando quieras ver la agenda."

	notificationsOn  = "Activas"
	notificationsOff = "Desactivadas"
)

var (
	menuButtons = []model.Button{
		{ID: ButtonEvents, Title: "📅 Ver Eventos"},
		{ID: ButtonSettings, Title: "⚙️ Configuración"},
	}
	settingsButtons = []model.Button{
		{ID: ButtonOptOut, Title: "🚫 Darse de baja"},
		{ID: ButtonEvents, Title: "📅 Ver Eventos"},
	}
)

// Bot routes inbound messages. Messages from the same sender are handled
// one at a time; different senders proceed concurrently.
type Bot struct {
	repo   repo.ContactRepository
	msg    Messenger
	events EventDeliverer
	window *dedup.Window
	optOut *OptOutManager
	reg    *Registrar

	locks keyedMutex
	now   func() time.Time
}

func NewBot(r repo.ContactRepository, m Messenger, ev EventDeliverer, window *dedup.Window) *Bot {
	if window == nil {
		window = dedup.NewWindow(dedup.DefaultCapacity)
	}
	return &Bot{
		repo:   r,
		msg:    m,
		events: ev,
		window: window,
		optOut: NewOptOutManager(r),
		reg:    NewRegistrar(r, m),
		now:    time.Now,
	}
}

// HandleMessage processes one inbound message end to end. Retried
// deliveries of an already accepted message id are ignored.
func (b *Bot) HandleMessage(ctx context.Context, msg model.InboundMessage) error {
	if msg.Type != model.TypeText && msg.Type != model.TypeButtonReply {
		slog.Info("ignoring unsupported message", "message_id", msg.ID, "phone", msg.From, "type", msg.RawType)
		return nil
	}
	if !b.window.Accept(msg.ID) {
		slog.Info("duplicate message ignored", "message_id", msg.ID, "phone", msg.From)
		return nil
	}

	unlock := b.locks.Lock(msg.From)
	defer unlock()

	text := Canonical(msg)
	at := msg.ReceivedAt
	if at.IsZero() {
		at = b.now()
	}
	if err := b.repo.RecordMessage(ctx, msg.From, text, at.UTC()); err != nil {
		// Nothing was stored, so a redelivery must be processed again.
		b.window.Forget(msg.ID)
		return fmt.Errorf("record message %s: %w", msg.ID, err)
	}

	intent := Classify(text)
	slog.Info("message received", "message_id", msg.ID, "phone", msg.From, "intent", intent.String())

	switch intent {
	case IntentOptOut:
		return b.handleOptOut(ctx, msg.From)
	case IntentConfig:
		return b.handleConfig(ctx, msg.From)
	}

	c, err := b.repo.GetContact(ctx, msg.From)
	if err != nil {
		return fmt.Errorf("load contact %s: %w", msg.From, err)
	}

	if !c.IsRegistered {
		done, err := b.reg.Advance(ctx, c, answerText(msg))
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
		return b.menuUnlessOptedOut(ctx, msg.From)
	}

	if intent == IntentEvents {
		if err := b.events.Deliver(ctx, msg.From); err != nil {
			return fmt.Errorf("deliver events: %w", err)
		}
		return nil
	}

	return b.menuUnlessOptedOut(ctx, msg.From)
}

// answerText is the sender's own wording, trimmed but not case-folded, so
// registration answers are stored as typed.
func answerText(msg model.InboundMessage) string {
	if msg.Type == model.TypeButtonReply {
		return strings.TrimSpace(msg.ButtonTitle)
	}
	return strings.TrimSpace(msg.Text)
}

func (b *Bot) menuUnlessOptedOut(ctx context.Context, phone string) error {
	optedOut, err := b.optOut.IsOptedOut(ctx, phone)
	if err != nil {
		return fmt.Errorf("check opt-out %s: %w", phone, err)
	}
	if optedOut {
		slog.Info("opted-out sender, menu suppressed", "phone", phone)
		return nil
	}
	return b.sendMenu(ctx, phone)
}

func (b *Bot) handleOptOut(ctx context.Context, phone string) error {
	already, err := b.optOut.OptOut(ctx, phone)
	if err != nil {
		return fmt.Errorf("opt out %s: %w", phone, err)
	}

	body := optedOutText
	if already {
		body = alreadyOptedOutText
	} else {
		slog.Info("sender opted out", "phone", phone)
	}
	_, err = b.msg.SendText(ctx, phone, body)
	return err
}

func (b *Bot) handleConfig(ctx context.Context, phone string) error {
	c, err := b.repo.GetContact(ctx, phone)
	if err != nil {
		return fmt.Errorf("load contact %s: %w", phone, err)
	}

	body := settingsText(c)
	if c.OptedOut {
		_, err = b.msg.SendText(ctx, phone, body)
		return err
	}
	_, err = b.msg.SendButtons(ctx, phone, body, settingsButtons)
	return err
}

func (b *Bot) sendMenu(ctx context.Context, phone string) error {
	_, err := b.msg.SendButtons(ctx, phone, menuText, menuButtons)
	return err
}

func settingsText(c model.Contact) string {
	var sb strings.Builder
	sb.WriteString("⚙️ *Configuración*\n\n")

	if c.IsRegistered && c.Profile != nil {
		code := c.Profile.StudentCode
		if code == "" {
			code = "No registrado"
		}
		fmt.Fprintf(&sb, "👤 *Nombre:* %s\n", c.Profile.Name)
		fmt.Fprintf(&sb, "🪪 *DNI:* %s\n", c.Profile.DNI)
		fmt.Fprintf(&sb, "🎓 *Código de alumno:* %s\n", code)
	} else {
		sb.WriteString("📝 Aún no completas tu registro.\n")
	}

	status := notificationsOn
	if c.OptedOut {
		status = notificationsOff
	}
	fmt.Fprintf(&sb, "🔔 *Notificaciones:* %s", status)
	return sb.String()
}
