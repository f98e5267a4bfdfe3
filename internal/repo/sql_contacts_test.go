package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/culturalbot/eventbot/internal/cache"
	"github.com/culturalbot/eventbot/internal/model"
)

var (
	_ ContactRepository = (*SQLContactRepo)(nil)
	_ cache.MediaCache  = (*SQLContactRepo)(nil)
)

func newTestRepo(t *testing.T, historyMax int) *SQLContactRepo {
	t.Helper()

	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "eventbot.db")

	db, dialect, err := Open(ctx, "sqlite", dsn)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(ctx, db, dialect); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return NewSQLContactRepo(db, dialect, historyMax)
}

func TestRebind(t *testing.T) {
	t.Parallel()

	q := "SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?"
	if got := rebind(SQLite, q); got != q {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
	want := "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3"
	if got := rebind(Postgres, q); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	if _, _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestRecordMessage_CreatesAndIncrements(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t, 10)
	ctx := context.Background()
	at := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

	if _, err := r.GetContact(ctx, "51999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := r.RecordMessage(ctx, "51999", fmt.Sprintf("msg %d", i), at.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("RecordMessage() error: %v", err)
		}
	}

	c, err := r.GetContact(ctx, "51999")
	if err != nil {
		t.Fatalf("GetContact() error: %v", err)
	}
	if c.MessageCount != 3 {
		t.Fatalf("expected messageCount=3, got %d", c.MessageCount)
	}
	if c.IsRegistered || c.OptedOut || c.Registration != nil || c.Profile != nil {
		t.Fatalf("unexpected fresh contact state: %+v", c)
	}
	if !c.CreatedAt.Equal(at) {
		t.Fatalf("expected createdAt %v, got %v", at, c.CreatedAt)
	}
	if !c.LastSeenAt.Equal(at.Add(2 * time.Minute)) {
		t.Fatalf("unexpected lastSeenAt %v", c.LastSeenAt)
	}

	history, err := r.ListMessages(ctx, "51999", 0)
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(history) != 3 || history[0].Text != "msg 0" || history[2].Text != "msg 2" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestRecordMessage_TrimsHistoryButKeepsCount(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t, 2)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		if err := r.RecordMessage(ctx, "51888", fmt.Sprintf("m%d", i), now); err != nil {
			t.Fatalf("RecordMessage() error: %v", err)
		}
	}

	history, err := r.ListMessages(ctx, "51888", 10)
	if err != nil {
		t.Fatalf("ListMessages() error: %v", err)
	}
	if len(history) != 2 || history[0].Text != "m3" || history[1].Text != "m4" {
		t.Fatalf("expected last two messages, got %+v", history)
	}

	c, err := r.GetContact(ctx, "51888")
	if err != nil {
		t.Fatalf("GetContact() error: %v", err)
	}
	if c.MessageCount != 5 {
		t.Fatalf("expected messageCount=5, got %d", c.MessageCount)
	}
}

func TestRegistrationLifecycle(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t, 10)
	ctx := context.Background()
	now := time.Now()

	if err := r.RecordMessage(ctx, "51777", "hola", now); err != nil {
		t.Fatalf("RecordMessage() error: %v", err)
	}

	st := model.RegistrationState{Step: model.StepDNI, Data: model.RegistrationData{Name: "Ana"}}
	if err := r.SaveRegistrationState(ctx, "51777", st); err != nil {
		t.Fatalf("SaveRegistrationState() error: %v", err)
	}

	c, err := r.GetContact(ctx, "51777")
	if err != nil {
		t.Fatalf("GetContact() error: %v", err)
	}
	if c.Registration == nil || c.Registration.Step != model.StepDNI || c.Registration.Data.Name != "Ana" {
		t.Fatalf("unexpected registration state: %+v", c.Registration)
	}

	p := model.Profile{Name: "Ana", DNI: "12345678", StudentCode: ""}
	if err := r.CompleteRegistration(ctx, "51777", p, now); err != nil {
		t.Fatalf("CompleteRegistration() error: %v", err)
	}

	c, err = r.GetContact(ctx, "51777")
	if err != nil {
		t.Fatalf("GetContact() error: %v", err)
	}
	if !c.IsRegistered {
		t.Fatalf("expected contact registered")
	}
	if c.Registration != nil {
		t.Fatalf("expected registration state cleared, got %+v", c.Registration)
	}
	if c.Profile == nil || *c.Profile != p {
		t.Fatalf("unexpected profile: %+v", c.Profile)
	}
	if c.RegisteredAt == nil {
		t.Fatalf("expected registeredAt set")
	}
	if c.MessageCount != 1 {
		t.Fatalf("registration must not touch messageCount, got %d", c.MessageCount)
	}
}

func TestSetOptedOut_Idempotent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t, 10)
	ctx := context.Background()
	now := time.Now()

	changed, err := r.SetOptedOut(ctx, "51666", true, now)
	if err != nil {
		t.Fatalf("SetOptedOut() error: %v", err)
	}
	if !changed {
		t.Fatalf("expected first opt-out to change the flag")
	}

	changed, err = r.SetOptedOut(ctx, "51666", true, now)
	if err != nil {
		t.Fatalf("second SetOptedOut() error: %v", err)
	}
	if changed {
		t.Fatalf("expected second opt-out to be a no-op")
	}

	c, err := r.GetContact(ctx, "51666")
	if err != nil {
		t.Fatalf("GetContact() error: %v", err)
	}
	if !c.OptedOut {
		t.Fatalf("expected optedOut=true")
	}
}

func TestListContactsAndStats(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t, 10)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = r.RecordMessage(ctx, "a", "1", base)
	_ = r.RecordMessage(ctx, "b", "1", base.Add(time.Hour))
	_ = r.RecordMessage(ctx, "b", "2", base.Add(2*time.Hour))

	list, err := r.ListContacts(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ListContacts() error: %v", err)
	}
	if len(list) != 2 || list[0].PhoneNumber != "b" {
		t.Fatalf("expected most recent first, got %+v", list)
	}

	page, err := r.ListContacts(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListContacts() error: %v", err)
	}
	if len(page) != 1 || page[0].PhoneNumber != "a" {
		t.Fatalf("unexpected page: %+v", page)
	}

	s, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if s.TotalContacts != 2 || s.TotalMessages != 3 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestMediaCache_ExpiryAndSweep(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t, 10)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	fresh := model.MediaEntry{SourceURL: "https://img/fresh.jpg", MediaID: "m-fresh", ExpiresAt: now.Add(24 * time.Hour)}
	stale := model.MediaEntry{SourceURL: "https://img/stale.jpg", MediaID: "m-stale", ExpiresAt: now.Add(-time.Minute)}
	for _, e := range []model.MediaEntry{fresh, stale} {
		if err := r.Put(ctx, e); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
	}

	got, ok, err := r.Get(ctx, fresh.SourceURL)
	if err != nil || !ok {
		t.Fatalf("expected fresh entry, ok=%v err=%v", ok, err)
	}
	if got.MediaID != "m-fresh" {
		t.Fatalf("unexpected media id %q", got.MediaID)
	}

	if _, ok, err := r.Get(ctx, stale.SourceURL); err != nil || ok {
		t.Fatalf("expired entry must not be returned, ok=%v err=%v", ok, err)
	}

	n, err := r.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}

	if _, ok, _ := r.Get(ctx, fresh.SourceURL); !ok {
		t.Fatalf("sweep must keep unexpired entries")
	}
}
