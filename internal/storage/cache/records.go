package cache

import (
	"bytes"

	"hawk-go/internal/hawk"
)

func (s *Store) AddUser(u *hawk.User) error {
	if u == nil {
		return hawk.ErrInvalidPtr
	}
	if err := s.requireOpen(); err != nil {
		return err
	}
	if !s.users.insert(u.UUID, u.Clone(), s.now()) {
		return hawk.ErrUserAlreadyExists
	}
	return nil
}

// UpdateUser replaces the cached user. The registration date of the cached
// record is kept.
func (s *Store) UpdateUser(u *hawk.User) error {
	if u == nil {
		return hawk.ErrInvalidPtr
	}
	if err := s.requireOpen(); err != nil {
		return err
	}
	ok := s.users.replace(u.UUID, s.now(), func(old *hawk.User) *hawk.User {
		c := u.Clone()
		c.RegistrationDate = old.RegistrationDate
		return c
	})
	if !ok {
		return hawk.ErrUserNotExists
	}
	return nil
}

func (s *Store) FindUserByUUID(id string) (*hawk.User, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	u, ok := s.users.get(id, s.now())
	if !ok {
		return nil, hawk.ErrUserNotExists
	}
	return u, nil
}

func (s *Store) FindUserByAuthentication(login string, passwordHash []byte) (*hawk.User, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	u, ok := s.users.find(func(u *hawk.User) bool { return u.Login == login }, s.now())
	if !ok {
		return nil, hawk.ErrUserNotExists
	}
	if !bytes.Equal(u.PasswordHash, passwordHash) {
		return nil, hawk.ErrUserPasswordIncorrect
	}
	return u, nil
}

// RemoveUser drops the user, its contact list and every cached reference
// to it.
func (s *Store) RemoveUser(id string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.users.remove(id)
	s.userContacts.remove(id)
	drop := func(_ string, set idSet) (idSet, bool) {
		next := set.without(id)
		return next, len(next) != len(set)
	}
	s.userContacts.rewrite(drop)
	s.groupUsers.rewrite(drop)
	return nil
}

func (s *Store) AddGroup(g *hawk.Group) error {
	if g == nil {
		return hawk.ErrInvalidPtr
	}
	if err := s.requireOpen(); err != nil {
		return err
	}
	if !s.groups.insert(g.UUID, g.Clone(), s.now()) {
		return hawk.ErrGroupAlreadyExists
	}
	return nil
}

// UpdateGroup replaces the cached group. The registration date of the
// cached record is kept.
func (s *Store) UpdateGroup(g *hawk.Group) error {
	if g == nil {
		return hawk.ErrInvalidPtr
	}
	if err := s.requireOpen(); err != nil {
		return err
	}
	ok := s.groups.replace(g.UUID, s.now(), func(old *hawk.Group) *hawk.Group {
		c := g.Clone()
		c.RegistrationDate = old.RegistrationDate
		return c
	})
	if !ok {
		return hawk.ErrGroupNotExists
	}
	return nil
}

func (s *Store) FindGroupByUUID(id string) (*hawk.Group, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	g, ok := s.groups.get(id, s.now())
	if !ok {
		return nil, hawk.ErrGroupNotExists
	}
	return g, nil
}

// RemoveGroup drops the group and its member list.
func (s *Store) RemoveGroup(id string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.groups.remove(id)
	s.groupUsers.remove(id)
	return nil
}

// Messages are not cached. Writes are accepted and ignored, reads always
// miss.

func (s *Store) AddMessage(*hawk.Message) error {
	return s.requireOpen()
}

func (s *Store) UpdateMessage(*hawk.Message) error {
	return s.requireOpen()
}

func (s *Store) FindMessage(string) (*hawk.Message, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return nil, hawk.ErrMessageNotExists
}

func (s *Store) FindMessages(string, hawk.TimeRange) ([]*hawk.Message, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return nil, hawk.ErrMessageNotExists
}

func (s *Store) RemoveMessage(string, string) error {
	return s.requireOpen()
}
