package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hawk-go/internal/hawk"
	"hawk-go/internal/validator"
)

const messageColumns = "uuid, group_uuid, create_time, type, data"

func scanMessage(row interface{ Scan(...any) error }) (*hawk.Message, error) {
	var (
		m       hawk.Message
		created string
		typ     int64
	)
	if err := row.Scan(&m.UUID, &m.GroupUUID, &created, &typ, &m.Data.Bytes); err != nil {
		return nil, err
	}
	var err error
	if m.CreateTime, err = validator.ParseTime(created); err != nil {
		return nil, hawk.ErrMessageRegistrationDateCorrupted
	}
	if typ < 0 || typ > 255 {
		return nil, hawk.ErrMessageTypeCorrupted
	}
	m.Data.Type = hawk.MessageType(typ)
	return &m, nil
}

func findMessage(ctx context.Context, q querier, id string) (*hawk.Message, error) {
	m, err := scanMessage(q.QueryRowContext(ctx, "SELECT "+messageColumns+" FROM messages WHERE uuid = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hawk.ErrMessageNotExists
	}
	return m, err
}

// AddMessage stores a message. The target group must exist.
func (s *Store) AddMessage(m *hawk.Message) error {
	if m == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := findMessage(ctx, s.db, m.UUID); !errors.Is(err, hawk.ErrMessageNotExists) {
		return fmt.Errorf("adding message %s: %w", m.UUID, hawk.ErrMessageAlreadyExists)
	}
	if err := requireGroup(ctx, s.db, m.GroupUUID); err != nil {
		return fmt.Errorf("adding message %s: %w", m.UUID, err)
	}
	switch {
	case m.UUID == "":
		return fmt.Errorf("adding message: %w", hawk.ErrMessageUUIDCorrupted)
	case m.Data.Type == hawk.MessageEmpty:
		return fmt.Errorf("adding message %s: %w", m.UUID, hawk.ErrIncorrectData)
	}

	_, err := s.db.ExecContext(ctx, "INSERT INTO messages ("+messageColumns+") VALUES (?, ?, ?, ?, ?)",
		m.UUID, m.GroupUUID, validator.FormatTime(m.CreateTime), int64(m.Data.Type), nonNil(m.Data.Bytes))
	if err != nil {
		return fmt.Errorf("adding message %s: %w", m.UUID, err)
	}
	return nil
}

// UpdateMessage replaces the payload of a message.
func (s *Store) UpdateMessage(m *hawk.Message) error {
	if m == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	ctx := context.Background()
	old, err := findMessage(ctx, s.db, m.UUID)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", m.UUID, err)
	}
	if err := old.SetData(m.Data); err != nil {
		return fmt.Errorf("updating message %s: %w", m.UUID, err)
	}
	_, err = s.db.ExecContext(ctx, "UPDATE messages SET type = ?, data = ? WHERE uuid = ?",
		int64(old.Data.Type), nonNil(old.Data.Bytes), m.UUID)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", m.UUID, err)
	}
	return nil
}

func (s *Store) FindMessage(id string) (*hawk.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return findMessage(context.Background(), s.db, id)
}

// FindMessages returns the messages of a group created within r, oldest
// first. No match is reported as ErrMessageNotExists.
func (s *Store) FindMessages(groupID string, r hawk.TimeRange) ([]*hawk.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	// Stored times are fixed width UTC strings, so they compare in time order.
	rows, err := s.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE group_uuid = ? AND create_time >= ? AND create_time <= ? ORDER BY create_time, rowid",
		groupID, validator.FormatTime(lowerBound(r.From)), validator.FormatTime(r.To))
	if err != nil {
		return nil, fmt.Errorf("finding messages of %s: %w", groupID, err)
	}
	defer rows.Close()

	var found []*hawk.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			s.logger.Warn("skipping corrupted record", "kind", "message", "error", err)
			continue
		}
		found = append(found, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding messages of %s: %w", groupID, err)
	}
	if len(found) == 0 {
		return nil, hawk.ErrMessageNotExists
	}
	return found, nil
}

// lowerBound rounds t up to the stored millisecond precision.
func lowerBound(t time.Time) time.Time {
	if tt := t.Truncate(time.Millisecond); tt.Before(t) {
		return tt.Add(time.Millisecond)
	}
	return t
}

// RemoveMessage deletes a message when both its UUID and group match.
func (s *Store) RemoveMessage(id, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM messages WHERE uuid = ? AND group_uuid = ?", id, groupID); err != nil {
		return fmt.Errorf("removing message %s: %w", id, err)
	}
	return nil
}
