package jsonstore

import (
	"errors"
	"fmt"

	"hawk-go/internal/hawk"
)

func (s *Store) findGroup(id string) (int, *hawk.Group, error) {
	i, g, ok := scan(s, "group", s.doc.Groups, decodeGroup, func(g *hawk.Group) bool { return g.UUID == id })
	if !ok {
		return -1, nil, hawk.ErrGroupNotExists
	}
	return i, g, nil
}

// AddGroup stores a new group and its empty member list.
func (s *Store) AddGroup(g *hawk.Group) error {
	if g == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	if _, _, err := s.findGroup(g.UUID); !errors.Is(err, hawk.ErrGroupNotExists) {
		return fmt.Errorf("adding group %s: %w", g.UUID, hawk.ErrGroupUUIDAlreadyRegistered)
	}
	raw, err := encodeGroup(g)
	if err != nil {
		return fmt.Errorf("adding group %s: %w", g.UUID, err)
	}

	return hawk.WithCompensation(s.logger,
		hawk.Step{
			Name: "append group",
			Do: func() error {
				s.doc.Groups = append(s.doc.Groups, raw)
				return nil
			},
			Undo: func() error { return s.dropGroup(g.UUID) },
		},
		hawk.Step{
			Name: "create member list",
			Do:   func() error { return s.createMembers(g.UUID) },
		},
	)
}

// UpdateGroup overwrites the name of a group.
func (s *Store) UpdateGroup(g *hawk.Group) error {
	if g == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	i, old, err := s.findGroup(g.UUID)
	if err != nil {
		return fmt.Errorf("updating group %s: %w", g.UUID, err)
	}
	merged := g.Clone()
	merged.RegistrationDate = old.RegistrationDate
	raw, err := encodeGroup(merged)
	if err != nil {
		return fmt.Errorf("updating group %s: %w", g.UUID, err)
	}
	s.doc.Groups[i] = raw
	return nil
}

// FindGroupByUUID returns a fresh copy of the stored group.
func (s *Store) FindGroupByUUID(id string) (*hawk.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	_, g, err := s.findGroup(id)
	return g, err
}

// RemoveGroup deletes the messages and the member list of a group and then
// the group itself. Unknown groups are ignored.
func (s *Store) RemoveGroup(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	i, _, err := s.findGroup(id)
	if errors.Is(err, hawk.ErrGroupNotExists) {
		return nil
	}
	if err != nil {
		return err
	}
	raw := s.doc.Groups[i]

	err = hawk.WithCompensation(s.logger,
		s.dropGroupMessagesStep(id),
		s.dropMembersStep(id),
		hawk.Step{
			Name: "remove group record",
			Do:   func() error { return s.dropGroup(id) },
			Undo: func() error {
				s.doc.Groups = append(s.doc.Groups, raw)
				return nil
			},
		},
	)
	if err != nil {
		return fmt.Errorf("removing group %s: %w", id, err)
	}
	return nil
}

func (s *Store) dropGroup(id string) error {
	i, _, err := s.findGroup(id)
	if err != nil {
		return err
	}
	s.doc.Groups = removeAt(s.doc.Groups, i)
	return nil
}
