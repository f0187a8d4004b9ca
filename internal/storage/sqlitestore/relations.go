package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"hawk-go/internal/hawk"
)

// Contacts are stored as two directed rows per pair.

func contactExists(ctx context.Context, q querier, owner, contact string) (bool, error) {
	return exists(ctx, q, "SELECT 1 FROM user_contacts WHERE user_uuid = ? AND contact_uuid = ?", owner, contact)
}

func linkContacts(ctx context.Context, q querier, a, b string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO user_contacts (user_uuid, contact_uuid) VALUES (?, ?), (?, ?)", a, b, b, a)
	return err
}

func (s *Store) AddUserContact(userID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if userID == contactID {
		return fmt.Errorf("adding contact to %s: %w", userID, hawk.ErrIncorrectData)
	}

	return s.inTx(func(ctx context.Context, tx *sql.Tx) error {
		for _, id := range []string{userID, contactID} {
			if err := requireUser(ctx, tx, id); err != nil {
				return err
			}
		}
		for _, pair := range [][2]string{{userID, contactID}, {contactID, userID}} {
			ok, err := contactExists(ctx, tx, pair[0], pair[1])
			if err != nil {
				return err
			}
			if ok {
				return fmt.Errorf("adding contact %s to %s: %w", pair[1], pair[0], hawk.ErrUserContactAlreadyExists)
			}
		}
		return linkContacts(ctx, tx, userID, contactID)
	})
}

func (s *Store) RemoveUserContact(userID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if userID == contactID {
		return fmt.Errorf("removing contact from %s: %w", userID, hawk.ErrIncorrectData)
	}

	return s.inTx(func(ctx context.Context, tx *sql.Tx) error {
		for _, pair := range [][2]string{{userID, contactID}, {contactID, userID}} {
			ok, err := userExists(ctx, tx, pair[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("removing contact from %s: %w", pair[0], hawk.ErrUserContactRelationNotExists)
			}
			res, err := tx.ExecContext(ctx,
				"DELETE FROM user_contacts WHERE user_uuid = ? AND contact_uuid = ?", pair[0], pair[1])
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("removing contact %s from %s: %w", pair[1], pair[0], hawk.ErrUserContactNotExists)
			}
		}
		return nil
	})
}

// SetUserContacts replaces the contacts of userID, keeping every list
// symmetric. Nothing changes if any contact is invalid.
func (s *Store) SetUserContacts(userID string, contacts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	return s.inTx(func(ctx context.Context, tx *sql.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}
		want := dedup(contacts)
		for _, c := range want {
			if c == userID {
				return fmt.Errorf("setting contacts of %s: %w", userID, hawk.ErrIncorrectData)
			}
			if err := requireUser(ctx, tx, c); err != nil {
				return err
			}
		}
		if err := unlinkAll(ctx, tx, userID); err != nil {
			return err
		}
		for _, c := range want {
			if err := linkContacts(ctx, tx, userID, c); err != nil {
				return fmt.Errorf("setting contacts of %s: %w", userID, err)
			}
		}
		return nil
	})
}

func unlinkAll(ctx context.Context, q querier, userID string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM user_contacts WHERE user_uuid = ? OR contact_uuid = ?", userID, userID)
	return err
}

// RemoveUserContacts unlinks userID from all of its contacts.
func (s *Store) RemoveUserContacts(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	return s.inTx(func(ctx context.Context, tx *sql.Tx) error {
		ok, err := userExists(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("removing contacts of %s: %w", userID, hawk.ErrUserContactRelationNotExists)
		}
		return unlinkAll(ctx, tx, userID)
	})
}

func (s *Store) GetUserContactList(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := requireUser(ctx, s.db, userID); err != nil {
		return nil, err
	}
	return queryIDs(ctx, s.db, "SELECT contact_uuid FROM user_contacts WHERE user_uuid = ? ORDER BY rowid", userID)
}

// Membership

func memberExists(ctx context.Context, q querier, groupID, userID string) (bool, error) {
	return exists(ctx, q, "SELECT 1 FROM group_users WHERE group_uuid = ? AND user_uuid = ?", groupID, userID)
}

func addMember(ctx context.Context, q querier, groupID, userID string) error {
	if err := requireUser(ctx, q, userID); err != nil {
		return err
	}
	ok, err := memberExists(ctx, q, groupID, userID)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("adding %s to %s: %w", userID, groupID, hawk.ErrGroupUserRelationAlreadyExists)
	}
	_, err = q.ExecContext(ctx, "INSERT INTO group_users (group_uuid, user_uuid) VALUES (?, ?)", groupID, userID)
	return err
}

func (s *Store) AddGroupUser(groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	ctx := context.Background()
	if err := requireGroup(ctx, s.db, groupID); err != nil {
		return err
	}
	return addMember(ctx, s.db, groupID, userID)
}

func (s *Store) RemoveGroupUser(groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	ctx := context.Background()
	if err := requireGroup(ctx, s.db, groupID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM group_users WHERE group_uuid = ? AND user_uuid = ?", groupID, userID)
	if err != nil {
		return fmt.Errorf("removing %s from %s: %w", userID, groupID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("removing %s from %s: %w", userID, groupID, hawk.ErrGroupUserRelationNotExists)
	}
	return nil
}

// SetGroupUsers replaces the members of groupID. If any user cannot be
// added, the previous members are kept.
func (s *Store) SetGroupUsers(groupID string, users []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	err := s.inTx(func(ctx context.Context, tx *sql.Tx) error {
		if err := requireGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM group_users WHERE group_uuid = ?", groupID); err != nil {
			return err
		}
		for _, u := range dedup(users) {
			if err := addMember(ctx, tx, groupID, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting members of %s: %w", groupID, err)
	}
	return nil
}

func (s *Store) ClearGroupUsers(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	ctx := context.Background()
	if err := requireGroup(ctx, s.db, groupID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM group_users WHERE group_uuid = ?", groupID); err != nil {
		return fmt.Errorf("clearing members of %s: %w", groupID, err)
	}
	return nil
}

func (s *Store) GetGroupUserList(groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := requireGroup(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	return queryIDs(ctx, s.db, "SELECT user_uuid FROM group_users WHERE group_uuid = ? ORDER BY rowid", groupID)
}

func (s *Store) GetUserGroups(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := requireUser(ctx, s.db, userID); err != nil {
		return nil, err
	}
	return queryIDs(ctx, s.db, "SELECT group_uuid FROM group_users WHERE user_uuid = ? ORDER BY rowid", userID)
}

// dedup drops repeated ids, keeping the first occurrence.
func dedup(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
