package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/culturalbot/eventbot/internal/model"
)

// SQLContactRepo stores contacts, their message history and the media id
// cache. All timestamps are kept as unix milliseconds so both dialects
// compare them the same way.
type SQLContactRepo struct {
	db         *sql.DB
	dialect    Dialect
	historyMax int
	now        func() time.Time
}

func NewSQLContactRepo(db *sql.DB, dialect Dialect, historyMax int) *SQLContactRepo {
	if historyMax <= 0 {
		historyMax = 200
	}
	return &SQLContactRepo{
		db:         db,
		dialect:    dialect,
		historyMax: historyMax,
		now:        time.Now,
	}
}

func (r *SQLContactRepo) q(query string) string {
	return rebind(r.dialect, query)
}

func (r *SQLContactRepo) RecordMessage(ctx context.Context, phone, text string, at time.Time) error {
	ms := at.UTC().UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.q(`
		INSERT INTO contacts (phone_number, message_count, created_at, last_seen_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (phone_number) DO UPDATE
		SET message_count = contacts.message_count + 1,
		    last_seen_at = excluded.last_seen_at
	`), phone, ms, ms); err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.q(`
		INSERT INTO contact_messages (phone_number, body, received_at)
		VALUES (?, ?, ?)
	`), phone, text, ms); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, r.q(`
		DELETE FROM contact_messages
		WHERE phone_number = ?
		  AND id NOT IN (
			SELECT id FROM contact_messages
			WHERE phone_number = ?
			ORDER BY id DESC
			LIMIT ?
		  )
	`), phone, phone, r.historyMax); err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	return tx.Commit()
}

func (r *SQLContactRepo) GetContact(ctx context.Context, phone string) (model.Contact, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		SELECT phone_number, message_count, is_registered, name, dni, student_code,
		       registered_at, registration_state, opted_out, created_at, last_seen_at
		FROM contacts
		WHERE phone_number = ?
	`), phone)

	c, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrNotFound
	}
	return c, err
}

func (r *SQLContactRepo) SaveRegistrationState(ctx context.Context, phone string, st model.RegistrationState) error {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = r.now().UTC()
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	ms := st.UpdatedAt.UTC().UnixMilli()

	_, err = r.db.ExecContext(ctx, r.q(`
		INSERT INTO contacts (phone_number, registration_state, created_at, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (phone_number) DO UPDATE
		SET registration_state = excluded.registration_state
	`), phone, string(b), ms, ms)
	return err
}

func (r *SQLContactRepo) CompleteRegistration(ctx context.Context, phone string, p model.Profile, at time.Time) error {
	ms := at.UTC().UnixMilli()
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO contacts (phone_number, is_registered, name, dni, student_code, registered_at,
		                      registration_state, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
		ON CONFLICT (phone_number) DO UPDATE
		SET is_registered = excluded.is_registered,
		    name = excluded.name,
		    dni = excluded.dni,
		    student_code = excluded.student_code,
		    registered_at = excluded.registered_at,
		    registration_state = NULL
	`), phone, true, p.Name, p.DNI, p.StudentCode, ms, ms, ms)
	return err
}

func (r *SQLContactRepo) SetOptedOut(ctx context.Context, phone string, optedOut bool, at time.Time) (bool, error) {
	ms := at.UTC().UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, r.q(`
		INSERT INTO contacts (phone_number, created_at, last_seen_at)
		VALUES (?, ?, ?)
		ON CONFLICT (phone_number) DO NOTHING
	`), phone, ms, ms); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, r.q(`
		UPDATE contacts
		SET opted_out = ?, opted_out_at = ?
		WHERE phone_number = ? AND opted_out <> ?
	`), optedOut, ms, phone, optedOut)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLContactRepo) ListContacts(ctx context.Context, limit, offset int) ([]model.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT phone_number, message_count, is_registered, name, dni, student_code,
		       registered_at, registration_state, opted_out, created_at, last_seen_at
		FROM contacts
		ORDER BY last_seen_at DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListMessages returns up to limit of the most recent messages, oldest first.
func (r *SQLContactRepo) ListMessages(ctx context.Context, phone string, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 || limit > r.historyMax {
		limit = r.historyMax
	}

	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT body, received_at
		FROM contact_messages
		WHERE phone_number = ?
		ORDER BY id DESC
		LIMIT ?
	`), phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var (
			e  model.HistoryEntry
			ms int64
		)
		if err := rows.Scan(&e.Text, &ms); err != nil {
			return nil, err
		}
		e.ReceivedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SQLContactRepo) Stats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), CAST(COALESCE(SUM(message_count), 0) AS BIGINT)
		FROM contacts
	`).Scan(&s.TotalContacts, &s.TotalMessages)
	return s, err
}

func (r *SQLContactRepo) Get(ctx context.Context, sourceURL string) (model.MediaEntry, bool, error) {
	var (
		e  model.MediaEntry
		ms int64
	)
	err := r.db.QueryRowContext(ctx, r.q(`
		SELECT source_url, media_id, expires_at
		FROM media_cache
		WHERE source_url = ? AND expires_at > ?
	`), sourceURL, r.now().UTC().UnixMilli()).Scan(&e.SourceURL, &e.MediaID, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MediaEntry{}, false, nil
	}
	if err != nil {
		return model.MediaEntry{}, false, err
	}
	e.ExpiresAt = time.UnixMilli(ms).UTC()
	return e, true, nil
}

func (r *SQLContactRepo) Put(ctx context.Context, e model.MediaEntry) error {
	_, err := r.db.ExecContext(ctx, r.q(`
		INSERT INTO media_cache (source_url, media_id, uploaded_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_url) DO UPDATE
		SET media_id = excluded.media_id,
		    uploaded_at = excluded.uploaded_at,
		    expires_at = excluded.expires_at
	`), e.SourceURL, e.MediaID, r.now().UTC().UnixMilli(), e.ExpiresAt.UTC().UnixMilli())
	return err
}

func (r *SQLContactRepo) Sweep(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`
		DELETE FROM media_cache WHERE expires_at <= ?
	`), r.now().UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(s rowScanner) (model.Contact, error) {
	var (
		c            model.Contact
		name         sql.NullString
		dni          sql.NullString
		studentCode  sql.NullString
		registeredAt sql.NullInt64
		regState     sql.NullString
		createdAt    int64
		lastSeenAt   int64
	)

	if err := s.Scan(
		&c.PhoneNumber,
		&c.MessageCount,
		&c.IsRegistered,
		&name,
		&dni,
		&studentCode,
		&registeredAt,
		&regState,
		&c.OptedOut,
		&createdAt,
		&lastSeenAt,
	); err != nil {
		return model.Contact{}, err
	}

	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	c.LastSeenAt = time.UnixMilli(lastSeenAt).UTC()

	if c.IsRegistered {
		c.Profile = &model.Profile{
			Name:        name.String,
			DNI:         dni.String,
			StudentCode: studentCode.String,
		}
	}
	if registeredAt.Valid {
		t := time.UnixMilli(registeredAt.Int64).UTC()
		c.RegisteredAt = &t
	}
	if regState.Valid && regState.String != "" {
		var st model.RegistrationState
		if err := json.Unmarshal([]byte(regState.String), &st); err != nil {
			return model.Contact{}, fmt.Errorf("decode registration state for %s: %w", c.PhoneNumber, err)
		}
		c.Registration = &st
	}
	return c, nil
}
