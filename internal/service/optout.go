package service

import (
	"context"
	"errors"
	"time"

	"github.com/culturalbot/eventbot/internal/repo"
)

// OptOutManager owns the opt-out flag. Opting out only suppresses messages
// the sender did not ask for; it never expires.
type OptOutManager struct {
	repo repo.ContactRepository
	now  func() time.Time
}

func NewOptOutManager(r repo.ContactRepository) *OptOutManager {
	return &OptOutManager{repo: r, now: time.Now}
}

func (m *OptOutManager) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	c, err := m.repo.GetContact(ctx, phone)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.OptedOut, nil
}

// OptOut sets the flag and reports whether it was already set.
func (m *OptOutManager) OptOut(ctx context.Context, phone string) (alreadyOptedOut bool, err error) {
	changed, err := m.repo.SetOptedOut(ctx, phone, true, m.now().UTC())
	if err != nil {
		return false, err
	}
	return !changed, nil
}
