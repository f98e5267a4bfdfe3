package repo

import (
	"context"
	"errors"
	"time"

	"github.com/culturalbot/eventbot/internal/model"
)

var ErrNotFound = errors.New("contact not found")

type ContactRepository interface {
	// RecordMessage upserts the contact, increments its message count and
	// appends text to its history.
	RecordMessage(ctx context.Context, phone, text string, at time.Time) error
	GetContact(ctx context.Context, phone string) (model.Contact, error)

	SaveRegistrationState(ctx context.Context, phone string, st model.RegistrationState) error
	// CompleteRegistration stores the profile, flags the contact as
	// registered and clears the registration state in one statement.
	CompleteRegistration(ctx context.Context, phone string, p model.Profile, at time.Time) error

	// SetOptedOut reports whether the flag changed.
	SetOptedOut(ctx context.Context, phone string, optedOut bool, at time.Time) (bool, error)

	ListContacts(ctx context.Context, limit, offset int) ([]model.Contact, error)
	ListMessages(ctx context.Context, phone string, limit int) ([]model.HistoryEntry, error)
	Stats(ctx context.Context) (model.Stats, error)
}
