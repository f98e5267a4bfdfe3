package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/culturalbot/eventbot/internal/model"
	"github.com/culturalbot/eventbot/internal/repo"
)

const (
	welcomeText = "👋 ¡Hola! Bienvenido(a) a la agenda cultural.\n\n" +
		"Antes de empezar necesitamos algunos datos para registrarte."
	askNameText        = "✍️ Por favor, escribe tu *nombre completo*:"
	invalidNameText    = "⚠️ El nombre debe tener al menos 2 caracteres. Por favor, escribe tu *nombre completo*:"
	askDNIText         = "Gracias, %s. 🪪 Ahora escribe tu *DNI* (8 dígitos):"
	invalidDNIText     = "⚠️ El DNI debe tener exactamente 8 dígitos. Inténtalo de nuevo:"
	askCodeText        = "🎓 Si eres alumno, escribe tu *código de alumno*. Si no tienes uno, responde *no tengo*."
	invalidCodeText    = "⚠️ El código de alumno debe tener al menos 3 caracteres. Escríbelo de nuevo o responde *no tengo*:"
	registeredTextTmpl = "✅ ¡Registro completado, %s! Ya puedes consultar la agenda cultural."
)

var noCodeAnswers = map[string]struct{}{
	"no":         {},
	"no tengo":   {},
	"ninguno":    {},
	"ninguna":    {},
	"no aplica":  {},
	"n/a":        {},
	"sin código": {},
	"sin codigo": {},
}

// Registrar walks an unregistered sender through name, DNI and student
// code, one inbound message per step. State is persisted before the next
// prompt goes out.
type Registrar struct {
	repo repo.ContactRepository
	msg  Messenger
	now  func() time.Time
}

func NewRegistrar(r repo.ContactRepository, m Messenger) *Registrar {
	return &Registrar{repo: r, msg: m, now: time.Now}
}

// Advance consumes one answer and reports whether registration completed.
func (r *Registrar) Advance(ctx context.Context, c model.Contact, text string) (bool, error) {
	phone := c.PhoneNumber
	text = strings.TrimSpace(text)

	if c.Registration == nil {
		st := model.RegistrationState{Step: model.StepName, UpdatedAt: r.now().UTC()}
		if err := r.repo.SaveRegistrationState(ctx, phone, st); err != nil {
			return false, fmt.Errorf("start registration: %w", err)
		}
		slog.Info("registration started", "phone", phone)
		return false, r.send(ctx, phone, welcomeText+"\n\n"+askNameText)
	}

	st := *c.Registration

	switch st.Step {
	case model.StepName:
		if !ValidName(text) {
			return false, r.send(ctx, phone, invalidNameText)
		}
		st.Step = model.StepDNI
		st.Data.Name = text
		if err := r.save(ctx, phone, st); err != nil {
			return false, err
		}
		return false, r.send(ctx, phone, fmt.Sprintf(askDNIText, text))

	case model.StepDNI:
		if !ValidDNI(text) {
			return false, r.send(ctx, phone, invalidDNIText)
		}
		st.Step = model.StepStudentCode
		st.Data.DNI = text
		if err := r.save(ctx, phone, st); err != nil {
			return false, err
		}
		return false, r.send(ctx, phone, askCodeText)

	case model.StepStudentCode:
		code, ok := ParseStudentCode(text)
		if !ok {
			return false, r.send(ctx, phone, invalidCodeText)
		}
		p := model.Profile{Name: st.Data.Name, DNI: st.Data.DNI, StudentCode: code}
		if err := r.repo.CompleteRegistration(ctx, phone, p, r.now().UTC()); err != nil {
			return false, fmt.Errorf("complete registration: %w", err)
		}
		slog.Info("registration completed", "phone", phone, "has_student_code", code != "")
		return true, r.send(ctx, phone, fmt.Sprintf(registeredTextTmpl, p.Name))
	}

	return false, fmt.Errorf("unknown registration step %q for %s", st.Step, phone)
}

func (r *Registrar) save(ctx context.Context, phone string, st model.RegistrationState) error {
	st.UpdatedAt = r.now().UTC()
	if err := r.repo.SaveRegistrationState(ctx, phone, st); err != nil {
		return fmt.Errorf("save registration step %s: %w", st.Step, err)
	}
	slog.Info("registration advanced", "phone", phone, "step", st.Step)
	return nil
}

func (r *Registrar) send(ctx context.Context, to, body string) error {
	if _, err := r.msg.SendText(ctx, to, body); err != nil {
		return fmt.Errorf("send registration prompt: %w", err)
	}
	return nil
}

func ValidName(s string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(s)) >= 2
}

// ValidDNI accepts exactly eight ASCII digits.
func ValidDNI(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseStudentCode returns "" for answers meaning "I have none". Other
// answers shorter than three characters are rejected.
func ParseStudentCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)

	if _, ok := noCodeAnswers[lower]; ok || strings.Contains(lower, "no tengo") {
		return "", true
	}
	if utf8.RuneCountInString(s) < 3 {
		return "", false
	}
	return s, true
}
