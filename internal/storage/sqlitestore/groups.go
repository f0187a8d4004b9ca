package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hawk-go/internal/hawk"
	"hawk-go/internal/validator"
)

func findGroup(ctx context.Context, q querier, id string) (*hawk.Group, error) {
	var (
		g   hawk.Group
		reg string
	)
	err := q.QueryRowContext(ctx, "SELECT uuid, registration_date, name FROM chat_groups WHERE uuid = ?", id).
		Scan(&g.UUID, &reg, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, hawk.ErrGroupNotExists
	}
	if err != nil {
		return nil, err
	}
	if g.RegistrationDate, err = validator.ParseTime(reg); err != nil {
		return nil, hawk.ErrGroupRegistrationDateCorrupted
	}
	return &g, nil
}

func (s *Store) AddGroup(g *hawk.Group) error {
	if g == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if g.UUID == "" {
		return fmt.Errorf("adding group: %w", hawk.ErrGroupUUIDCorrupted)
	}

	ctx := context.Background()
	if _, err := findGroup(ctx, s.db, g.UUID); !errors.Is(err, hawk.ErrGroupNotExists) {
		return fmt.Errorf("adding group %s: %w", g.UUID, hawk.ErrGroupUUIDAlreadyRegistered)
	}
	_, err := s.db.ExecContext(ctx, "INSERT INTO chat_groups (uuid, registration_date, name) VALUES (?, ?, ?)",
		g.UUID, validator.FormatTime(g.RegistrationDate), g.Name)
	if err != nil {
		return fmt.Errorf("adding group %s: %w", g.UUID, err)
	}
	return nil
}

func (s *Store) UpdateGroup(g *hawk.Group) error {
	if g == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	res, err := s.db.Exec("UPDATE chat_groups SET name = ? WHERE uuid = ?", g.Name, g.UUID)
	if err != nil {
		return fmt.Errorf("updating group %s: %w", g.UUID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("updating group %s: %w", g.UUID, hawk.ErrGroupNotExists)
	}
	return nil
}

func (s *Store) FindGroupByUUID(id string) (*hawk.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return findGroup(context.Background(), s.db, id)
}

// RemoveGroup deletes the group; its messages and member list are removed
// by the foreign keys. Unknown groups are ignored.
func (s *Store) RemoveGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM chat_groups WHERE uuid = ?", id); err != nil {
		return fmt.Errorf("removing group %s: %w", id, err)
	}
	return nil
}
