package jsonstore

import (
	"bytes"
	"errors"
	"fmt"

	"hawk-go/internal/hawk"
)

func (s *Store) findUser(id string) (int, *hawk.User, error) {
	i, u, ok := scan(s, "user", s.doc.Users, decodeUser, func(u *hawk.User) bool { return u.UUID == id })
	if !ok {
		return -1, nil, hawk.ErrUserNotExists
	}
	return i, u, nil
}

func (s *Store) findUserByLogin(login string) (int, *hawk.User, error) {
	i, u, ok := scan(s, "user", s.doc.Users, decodeUser, func(u *hawk.User) bool { return u.Login == login })
	if !ok {
		return -1, nil, hawk.ErrUserNotExists
	}
	return i, u, nil
}

func (s *Store) authenticate(login string, passwordHash []byte) (*hawk.User, error) {
	_, u, err := s.findUserByLogin(login)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(u.PasswordHash, passwordHash) {
		return nil, hawk.ErrUserPasswordIncorrect
	}
	return u, nil
}

// AddUser stores a new user and its empty contact list. Both are added or
// neither is.
func (s *Store) AddUser(u *hawk.User) error {
	if u == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	if _, _, err := s.findUser(u.UUID); !errors.Is(err, hawk.ErrUserNotExists) {
		return fmt.Errorf("adding user %s: %w", u.UUID, hawk.ErrUserUUIDAlreadyRegistered)
	}
	if _, err := s.authenticate(u.Login, u.PasswordHash); err == nil || errors.Is(err, hawk.ErrUserPasswordIncorrect) {
		return fmt.Errorf("adding user %s: %w", u.Login, hawk.ErrUserLoginAlreadyRegistered)
	}

	raw, err := encodeUser(u)
	if err != nil {
		return fmt.Errorf("adding user %s: %w", u.UUID, err)
	}

	return hawk.WithCompensation(s.logger,
		hawk.Step{
			Name: "append user",
			Do: func() error {
				s.doc.Users = append(s.doc.Users, raw)
				return nil
			},
			Undo: func() error { return s.dropUser(u.UUID) },
		},
		hawk.Step{
			Name: "create contact list",
			Do:   func() error { return s.createContacts(u.UUID) },
		},
	)
}

// UpdateUser overwrites login, password hash, name, sex and birthday.
func (s *Store) UpdateUser(u *hawk.User) error {
	if u == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	i, old, err := s.findUser(u.UUID)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.UUID, err)
	}
	if u.Login != old.Login {
		if _, _, err := s.findUserByLogin(u.Login); err == nil {
			return fmt.Errorf("updating user %s: %w", u.UUID, hawk.ErrUserLoginAlreadyRegistered)
		}
	}

	merged := u.Clone()
	merged.RegistrationDate = old.RegistrationDate
	raw, err := encodeUser(merged)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.UUID, err)
	}
	s.doc.Users[i] = raw
	return nil
}

// FindUserByUUID returns a fresh copy of the stored user.
func (s *Store) FindUserByUUID(id string) (*hawk.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	_, u, err := s.findUser(id)
	return u, err
}

// FindUserByAuthentication returns the user with the given login and hash.
func (s *Store) FindUserByAuthentication(login string, passwordHash []byte) (*hawk.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return s.authenticate(login, passwordHash)
}

// RemoveUser severs every contact and membership of the user and then
// deletes it. Unknown users are ignored.
func (s *Store) RemoveUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	i, _, err := s.findUser(id)
	if errors.Is(err, hawk.ErrUserNotExists) {
		return nil
	}
	if err != nil {
		return err
	}
	raw := s.doc.Users[i]

	steps := s.onRemoveUser(id)
	steps = append(steps, hawk.Step{
		Name: "remove user record",
		Do:   func() error { return s.dropUser(id) },
		Undo: func() error {
			s.doc.Users = append(s.doc.Users, raw)
			return nil
		},
	})
	if err := hawk.WithCompensation(s.logger, steps...); err != nil {
		return fmt.Errorf("removing user %s: %w", id, err)
	}
	return nil
}

// onRemoveUser returns the steps that detach a user from everything that
// references it: both directions of every contact edge, its contact list
// and its group memberships.
func (s *Store) onRemoveUser(id string) []hawk.Step {
	var steps []hawk.Step

	if _, rec, err := s.findContacts(id); err == nil {
		for _, c := range rec.Contacts {
			steps = append(steps, s.severStep(id, c), s.severStep(c, id))
		}
		steps = append(steps, s.dropContactsStep(id))
	}

	for _, g := range s.groupsOf(id) {
		steps = append(steps, s.memberStep(g, id, false))
	}
	return steps
}

func (s *Store) dropUser(id string) error {
	i, _, err := s.findUser(id)
	if err != nil {
		return err
	}
	s.doc.Users = removeAt(s.doc.Users, i)
	return nil
}
