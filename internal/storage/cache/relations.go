package cache

import (
	"slices"

	"hawk-go/internal/hawk"
)

// Relation writes mirror a change the physical storage has already
// accepted, so they never fail on missing entries. Whichever sides of an
// edge are cached are updated; the rest is left for the next read.

// SetUserContacts stores the contact list of userID and patches the cached
// lists of the contacts that were added or removed.
func (s *Store) SetUserContacts(userID string, contacts []string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	next := newIDSet(contacts)
	prev, _ := s.userContacts.get(userID, s.now())
	s.userContacts.put(userID, next, s.now())

	s.userContacts.rewrite(func(owner string, set idSet) (idSet, bool) {
		switch {
		case owner == userID:
			return set, false
		case slices.Contains(next, owner):
			updated := set.with(userID)
			return updated, len(updated) != len(set)
		case slices.Contains(prev, owner):
			updated := set.without(userID)
			return updated, len(updated) != len(set)
		}
		return set, false
	})
	return nil
}

func (s *Store) AddUserContact(userID, contactID string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	now := s.now()
	s.userContacts.replace(userID, now, func(set idSet) idSet { return set.with(contactID) })
	s.userContacts.replace(contactID, now, func(set idSet) idSet { return set.with(userID) })
	return nil
}

func (s *Store) RemoveUserContact(userID, contactID string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	now := s.now()
	s.userContacts.replace(userID, now, func(set idSet) idSet { return set.without(contactID) })
	s.userContacts.replace(contactID, now, func(set idSet) idSet { return set.without(userID) })
	return nil
}

// RemoveUserContacts empties the cached list of userID and removes userID
// from every other cached list.
func (s *Store) RemoveUserContacts(userID string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.userContacts.rewrite(func(owner string, set idSet) (idSet, bool) {
		if owner == userID {
			return idSet{}, len(set) > 0
		}
		updated := set.without(userID)
		return updated, len(updated) != len(set)
	})
	return nil
}

func (s *Store) GetUserContactList(userID string) ([]string, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	set, ok := s.userContacts.get(userID, s.now())
	if !ok {
		return nil, hawk.ErrUserContactRelationNotExists
	}
	return slices.Clone(set), nil
}

func (s *Store) SetGroupUsers(groupID string, users []string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.groupUsers.put(groupID, newIDSet(users), s.now())
	return nil
}

func (s *Store) AddGroupUser(groupID, userID string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.groupUsers.replace(groupID, s.now(), func(set idSet) idSet { return set.with(userID) })
	return nil
}

func (s *Store) RemoveGroupUser(groupID, userID string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.groupUsers.replace(groupID, s.now(), func(set idSet) idSet { return set.without(userID) })
	return nil
}

func (s *Store) ClearGroupUsers(groupID string) error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.groupUsers.replace(groupID, s.now(), func(idSet) idSet { return idSet{} })
	return nil
}

func (s *Store) GetGroupUserList(groupID string) ([]string, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	set, ok := s.groupUsers.get(groupID, s.now())
	if !ok {
		return nil, hawk.ErrGroupUserRelationNotExists
	}
	return slices.Clone(set), nil
}

// GetUserGroups always misses: the reverse index is not cached.
func (s *Store) GetUserGroups(string) ([]string, error) {
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	return nil, hawk.ErrUserGroupsRelationNotExists
}
