package jsonstore

import (
	"errors"
	"fmt"
	"slices"

	"hawk-go/internal/hawk"
)

// Contact relation records

func (s *Store) findContacts(userID string) (int, *contactsRecord, error) {
	i, rec, ok := scan(s, "user contacts", s.doc.Relations.UserContacts, decodeContacts,
		func(r *contactsRecord) bool { return r.User == userID })
	if !ok {
		return -1, nil, hawk.ErrUserContactRelationNotExists
	}
	return i, rec, nil
}

func (s *Store) createContacts(userID string) error {
	if _, _, err := s.findContacts(userID); err == nil {
		return hawk.ErrUserContactRelationAlreadyExists
	}
	raw, err := encodeContacts(&contactsRecord{User: userID})
	if err != nil {
		return err
	}
	s.doc.Relations.UserContacts = append(s.doc.Relations.UserContacts, raw)
	return nil
}

func (s *Store) dropContactsStep(userID string) hawk.Step {
	var saved []byte
	return hawk.Step{
		Name: "drop contact list of " + userID,
		Do: func() error {
			i, _, err := s.findContacts(userID)
			if err != nil {
				return err
			}
			saved = s.doc.Relations.UserContacts[i]
			s.doc.Relations.UserContacts = removeAt(s.doc.Relations.UserContacts, i)
			return nil
		},
		Undo: func() error {
			s.doc.Relations.UserContacts = append(s.doc.Relations.UserContacts, saved)
			return nil
		},
	}
}

func (s *Store) saveContacts(i int, rec *contactsRecord) error {
	raw, err := encodeContacts(rec)
	if err != nil {
		return err
	}
	s.doc.Relations.UserContacts[i] = raw
	return nil
}

// addContactEdge adds the directed edge owner -> contact.
func (s *Store) addContactEdge(owner, contact string) error {
	i, rec, err := s.findContacts(owner)
	if err != nil {
		return err
	}
	if slices.Contains(rec.Contacts, contact) {
		return hawk.ErrUserContactAlreadyExists
	}
	rec.Contacts = append(rec.Contacts, contact)
	return s.saveContacts(i, rec)
}

// removeContactEdge removes the directed edge owner -> contact.
func (s *Store) removeContactEdge(owner, contact string) error {
	i, rec, err := s.findContacts(owner)
	if err != nil {
		return err
	}
	j := slices.Index(rec.Contacts, contact)
	if j < 0 {
		return hawk.ErrUserContactNotExists
	}
	rec.Contacts = slices.Delete(rec.Contacts, j, j+1)
	return s.saveContacts(i, rec)
}

// contactSteps returns the two directed edge changes that make up one
// symmetric contact change between a and b.
func (s *Store) contactSteps(a, b string, add bool) []hawk.Step {
	edge := func(owner, contact string) hawk.Step {
		do, undo := s.addContactEdge, s.removeContactEdge
		name := "add contact edge "
		if !add {
			do, undo = undo, do
			name = "remove contact edge "
		}
		return hawk.Step{
			Name: name + owner + "->" + contact,
			Do:   func() error { return do(owner, contact) },
			Undo: func() error { return undo(owner, contact) },
		}
	}
	return []hawk.Step{edge(a, b), edge(b, a)}
}

// severStep removes owner -> contact if present. Used when cascading a
// removal, where a missing edge is not a reason to fail.
func (s *Store) severStep(owner, contact string) hawk.Step {
	removed := false
	return hawk.Step{
		Name: "sever contact edge " + owner + "->" + contact,
		Do: func() error {
			err := s.removeContactEdge(owner, contact)
			switch {
			case err == nil:
				removed = true
				return nil
			case errors.Is(err, hawk.ErrUserContactNotExists), errors.Is(err, hawk.ErrUserContactRelationNotExists):
				s.logger.Warn("asymmetric contact edge", "owner", owner, "contact", contact)
				return nil
			}
			return err
		},
		Undo: func() error {
			if !removed {
				return nil
			}
			return s.addContactEdge(owner, contact)
		},
	}
}

func (s *Store) requireUsers(ids ...string) error {
	for _, id := range ids {
		if _, _, err := s.findUser(id); err != nil {
			return fmt.Errorf("user %s: %w", id, err)
		}
	}
	return nil
}

// AddUserContact makes userID and contactID contacts of each other.
func (s *Store) AddUserContact(userID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if userID == contactID {
		return fmt.Errorf("adding contact to %s: %w", userID, hawk.ErrIncorrectData)
	}
	if err := s.requireUsers(userID, contactID); err != nil {
		return err
	}
	return hawk.WithCompensation(s.logger, s.contactSteps(userID, contactID, true)...)
}

// RemoveUserContact unlinks userID and contactID in both directions.
func (s *Store) RemoveUserContact(userID, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if userID == contactID {
		return fmt.Errorf("removing contact from %s: %w", userID, hawk.ErrIncorrectData)
	}
	return hawk.WithCompensation(s.logger, s.contactSteps(userID, contactID, false)...)
}

// SetUserContacts replaces the contacts of userID. On failure the previous
// contacts are restored.
func (s *Store) SetUserContacts(userID string, contacts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := s.requireUsers(userID); err != nil {
		return err
	}
	_, rec, err := s.findContacts(userID)
	if err != nil {
		return err
	}

	want := dedup(contacts)
	var steps []hawk.Step
	for _, c := range rec.Contacts {
		if !slices.Contains(want, c) {
			steps = append(steps, s.contactSteps(userID, c, false)...)
		}
	}
	for _, c := range want {
		if slices.Contains(rec.Contacts, c) {
			continue
		}
		if c == userID {
			return fmt.Errorf("setting contacts of %s: %w", userID, hawk.ErrIncorrectData)
		}
		if err := s.requireUsers(c); err != nil {
			return err
		}
		steps = append(steps, s.contactSteps(userID, c, true)...)
	}
	return hawk.WithCompensation(s.logger, steps...)
}

// RemoveUserContacts unlinks userID from all of its contacts. The empty
// contact list remains.
func (s *Store) RemoveUserContacts(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	_, rec, err := s.findContacts(userID)
	if err != nil {
		return err
	}
	var steps []hawk.Step
	for _, c := range rec.Contacts {
		steps = append(steps, s.severStep(userID, c), s.severStep(c, userID))
	}
	return hawk.WithCompensation(s.logger, steps...)
}

// GetUserContactList returns the contacts of userID.
func (s *Store) GetUserContactList(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	if err := s.requireUsers(userID); err != nil {
		return nil, err
	}
	_, rec, err := s.findContacts(userID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.Contacts), nil
}

// Group membership records

func (s *Store) findMembers(groupID string) (int, *membersRecord, error) {
	i, rec, ok := scan(s, "group users", s.doc.Relations.GroupUsers, decodeMembers,
		func(r *membersRecord) bool { return r.Group == groupID })
	if !ok {
		return -1, nil, hawk.ErrGroupUserRelationNotExists
	}
	return i, rec, nil
}

func (s *Store) createMembers(groupID string) error {
	if _, _, err := s.findMembers(groupID); err == nil {
		return hawk.ErrGroupUserRelationAlreadyExists
	}
	raw, err := encodeMembers(&membersRecord{Group: groupID})
	if err != nil {
		return err
	}
	s.doc.Relations.GroupUsers = append(s.doc.Relations.GroupUsers, raw)
	return nil
}

func (s *Store) dropMembersStep(groupID string) hawk.Step {
	var saved []byte
	return hawk.Step{
		Name: "drop member list of " + groupID,
		Do: func() error {
			i, _, err := s.findMembers(groupID)
			if errors.Is(err, hawk.ErrGroupUserRelationNotExists) {
				return nil
			}
			if err != nil {
				return err
			}
			saved = s.doc.Relations.GroupUsers[i]
			s.doc.Relations.GroupUsers = removeAt(s.doc.Relations.GroupUsers, i)
			return nil
		},
		Undo: func() error {
			if saved != nil {
				s.doc.Relations.GroupUsers = append(s.doc.Relations.GroupUsers, saved)
			}
			return nil
		},
	}
}

func (s *Store) saveMembers(i int, rec *membersRecord) error {
	raw, err := encodeMembers(rec)
	if err != nil {
		return err
	}
	s.doc.Relations.GroupUsers[i] = raw
	return nil
}

func (s *Store) addMemberEdge(groupID, userID string) error {
	if err := s.requireUsers(userID); err != nil {
		return err
	}
	i, rec, err := s.findMembers(groupID)
	if err != nil {
		return err
	}
	if slices.Contains(rec.Users, userID) {
		return hawk.ErrGroupUserRelationAlreadyExists
	}
	rec.Users = append(rec.Users, userID)
	return s.saveMembers(i, rec)
}

func (s *Store) removeMemberEdge(groupID, userID string) error {
	i, rec, err := s.findMembers(groupID)
	if err != nil {
		return err
	}
	j := slices.Index(rec.Users, userID)
	if j < 0 {
		return hawk.ErrGroupUserRelationNotExists
	}
	rec.Users = slices.Delete(rec.Users, j, j+1)
	return s.saveMembers(i, rec)
}

func (s *Store) memberStep(groupID, userID string, add bool) hawk.Step {
	do, undo := s.addMemberEdge, s.removeMemberEdge
	name := "add member "
	if !add {
		do, undo = undo, do
		name = "remove member "
	}
	return hawk.Step{
		Name: name + userID + " of " + groupID,
		Do:   func() error { return do(groupID, userID) },
		Undo: func() error { return undo(groupID, userID) },
	}
}

// groupsOf lists the groups whose member list contains userID.
func (s *Store) groupsOf(userID string) []string {
	var groups []string
	for i, raw := range s.doc.Relations.GroupUsers {
		rec, err := decodeMembers(raw)
		if err != nil {
			s.logger.Warn("skipping corrupted record", "kind", "group users", "index", i, "error", err)
			continue
		}
		if slices.Contains(rec.Users, userID) {
			groups = append(groups, rec.Group)
		}
	}
	return groups
}

func (s *Store) requireGroup(groupID string) error {
	if _, _, err := s.findGroup(groupID); err != nil {
		return fmt.Errorf("group %s: %w", groupID, err)
	}
	return nil
}

// AddGroupUser adds userID to the members of groupID.
func (s *Store) AddGroupUser(groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := s.requireGroup(groupID); err != nil {
		return err
	}
	return s.addMemberEdge(groupID, userID)
}

// RemoveGroupUser removes userID from the members of groupID.
func (s *Store) RemoveGroupUser(groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := s.requireGroup(groupID); err != nil {
		return err
	}
	return s.removeMemberEdge(groupID, userID)
}

// SetGroupUsers clears the members of groupID and adds users one at a time.
// If any user cannot be added, the previous members are restored.
func (s *Store) SetGroupUsers(groupID string, users []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := s.requireGroup(groupID); err != nil {
		return err
	}
	_, rec, err := s.findMembers(groupID)
	if err != nil {
		return err
	}

	var steps []hawk.Step
	for _, u := range rec.Users {
		steps = append(steps, s.memberStep(groupID, u, false))
	}
	for _, u := range dedup(users) {
		steps = append(steps, s.memberStep(groupID, u, true))
	}
	if err := hawk.WithCompensation(s.logger, steps...); err != nil {
		return fmt.Errorf("setting members of %s: %w", groupID, err)
	}
	return nil
}

// ClearGroupUsers removes every member of groupID, restoring them all if
// one removal fails.
func (s *Store) ClearGroupUsers(groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	if err := s.requireGroup(groupID); err != nil {
		return err
	}
	_, rec, err := s.findMembers(groupID)
	if err != nil {
		return err
	}
	steps := make([]hawk.Step, 0, len(rec.Users))
	for _, u := range rec.Users {
		steps = append(steps, s.memberStep(groupID, u, false))
	}
	return hawk.WithCompensation(s.logger, steps...)
}

// GetGroupUserList returns the members of groupID.
func (s *Store) GetGroupUserList(groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	if err := s.requireGroup(groupID); err != nil {
		return nil, err
	}
	_, rec, err := s.findMembers(groupID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.Users), nil
}

// GetUserGroups returns the groups userID is a member of.
func (s *Store) GetUserGroups(userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	if err := s.requireUsers(userID); err != nil {
		return nil, err
	}
	groups := s.groupsOf(userID)
	if groups == nil {
		groups = []string{}
	}
	return groups, nil
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
