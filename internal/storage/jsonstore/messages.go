package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"hawk-go/internal/hawk"
)

func (s *Store) findMessage(id string) (int, *hawk.Message, error) {
	i, m, ok := scan(s, "message", s.doc.Messages, decodeMessage, func(m *hawk.Message) bool { return m.UUID == id })
	if !ok {
		return -1, nil, hawk.ErrMessageNotExists
	}
	return i, m, nil
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

	if _, _, err := s.findMessage(m.UUID); !errors.Is(err, hawk.ErrMessageNotExists) {
		return fmt.Errorf("adding message %s: %w", m.UUID, hawk.ErrMessageAlreadyExists)
	}
	if err := s.requireGroup(m.GroupUUID); err != nil {
		return fmt.Errorf("adding message %s: %w", m.UUID, err)
	}
	raw, err := encodeMessage(m)
	if err != nil {
		return fmt.Errorf("adding message %s: %w", m.UUID, err)
	}
	s.doc.Messages = append(s.doc.Messages, raw)
	return nil
}

// UpdateMessage replaces the payload of a message. Group and creation time
// are kept.
func (s *Store) UpdateMessage(m *hawk.Message) error {
	if m == nil {
		return hawk.ErrInvalidPtr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}

	i, old, err := s.findMessage(m.UUID)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", m.UUID, err)
	}
	merged := old.Clone()
	if err := merged.SetData(m.Data); err != nil {
		return fmt.Errorf("updating message %s: %w", m.UUID, err)
	}
	raw, err := encodeMessage(merged)
	if err != nil {
		return fmt.Errorf("updating message %s: %w", m.UUID, err)
	}
	s.doc.Messages[i] = raw
	return nil
}

// FindMessage returns a fresh copy of the stored message.
func (s *Store) FindMessage(id string) (*hawk.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}
	_, m, err := s.findMessage(id)
	return m, err
}

// FindMessages returns the messages of a group created within r, oldest
// first. No match is reported as ErrMessageNotExists.
func (s *Store) FindMessages(groupID string, r hawk.TimeRange) ([]*hawk.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return nil, err
	}

	var found []*hawk.Message
	for i, raw := range s.doc.Messages {
		m, err := decodeMessage(raw)
		if err != nil {
			s.logger.Warn("skipping corrupted record", "kind", "message", "index", i, "error", err)
			continue
		}
		if m.GroupUUID == groupID && r.Contains(m.CreateTime) {
			found = append(found, m)
		}
	}
	if len(found) == 0 {
		return nil, hawk.ErrMessageNotExists
	}
	slices.SortStableFunc(found, func(a, b *hawk.Message) int {
		return a.CreateTime.Compare(b.CreateTime)
	})
	return found, nil
}

// RemoveMessage deletes a message when both its UUID and group match.
func (s *Store) RemoveMessage(id, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOpen(); err != nil {
		return err
	}
	i, _, ok := scan(s, "message", s.doc.Messages, decodeMessage, func(m *hawk.Message) bool {
		return m.UUID == id && m.GroupUUID == groupID
	})
	if ok {
		s.doc.Messages = removeAt(s.doc.Messages, i)
	}
	return nil
}

// dropGroupMessagesStep removes every message of a group and puts them back
// on undo.
func (s *Store) dropGroupMessagesStep(groupID string) hawk.Step {
	var saved []json.RawMessage
	return hawk.Step{
		Name: "drop messages of " + groupID,
		Do: func() error {
			kept := make([]json.RawMessage, 0, len(s.doc.Messages))
			for _, raw := range s.doc.Messages {
				m, err := decodeMessage(raw)
				if err == nil && m.GroupUUID == groupID {
					saved = append(saved, raw)
					continue
				}
				kept = append(kept, raw)
			}
			s.doc.Messages = kept
			return nil
		},
		Undo: func() error {
			s.doc.Messages = append(s.doc.Messages, saved...)
			return nil
		},
	}
}
