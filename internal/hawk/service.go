package hawk

import (
	"errors"
	"fmt"
	"time"
)

// ChatService builds domain records and drives a Storage on behalf of the
// CLI and other callers. It stamps identities and timestamps; consistency
// rules stay in the storage.
type ChatService struct {
	storage Storage
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewChatService creates a ChatService. logger may be nil.
func NewChatService(storage Storage, logger Logger, clock Clock, idgen IDGenerator) *ChatService {
	return &ChatService{
		storage: storage,
		logger:  LoggerOrNop(logger),
		clock:   clock,
		idgen:   idgen,
	}
}

// Storage returns the underlying storage.
func (s *ChatService) Storage() Storage {
	return s.storage
}

// RegisterUser creates a user with a fresh UUID and the current time as its
// registration date.
func (s *ChatService) RegisterUser(login, password, name string, sex Sex, birthday time.Time) (*User, error) {
	if login == "" {
		return nil, fmt.Errorf("registering user: %w", ErrUserLoginCorrupted)
	}
	u := &User{
		UUID:             s.idgen.New(),
		RegistrationDate: StorageTime(s.clock),
		Login:            login,
		PasswordHash:     HashPassword(password),
		Name:             name,
		Sex:              sex,
		Birthday:         birthday,
	}
	if err := s.storage.AddUser(u); err != nil {
		return nil, fmt.Errorf("registering user %s: %w", login, err)
	}
	s.logger.Info("user registered", "uuid", u.UUID, "login", login)
	return u, nil
}

// Authenticate returns the user matching login and plaintext password.
func (s *ChatService) Authenticate(login, password string) (*User, error) {
	u, err := s.storage.FindUserByAuthentication(login, HashPassword(password))
	if err != nil {
		if errors.Is(err, ErrUserPasswordIncorrect) {
			s.logger.Warn("authentication rejected", "login", login)
		}
		return nil, fmt.Errorf("authenticating %s: %w", login, err)
	}
	return u, nil
}

// acquireUser reads a user for a read-modify-write. When the storage hands
// out leases the record stays pinned until release is called.
func (s *ChatService) acquireUser(id string) (*User, Release, error) {
	if l, ok := s.storage.(Leaser); ok {
		return l.AcquireUser(id)
	}
	u, err := s.storage.FindUserByUUID(id)
	return u, func() {}, err
}

// acquireGroup is acquireUser for groups.
func (s *ChatService) acquireGroup(id string) (*Group, Release, error) {
	if l, ok := s.storage.(Leaser); ok {
		return l.AcquireGroup(id)
	}
	g, err := s.storage.FindGroupByUUID(id)
	return g, func() {}, err
}

// UpdateProfile changes the name, sex and birthday of a user. The stored
// record is cloned first; cached records are shared.
func (s *ChatService) UpdateProfile(id, name string, sex Sex, birthday time.Time) (*User, error) {
	u, release, err := s.acquireUser(id)
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", id, err)
	}
	defer release()
	u = u.Clone()
	u.Name = name
	u.Sex = sex
	u.Birthday = birthday
	if err := s.storage.UpdateUser(u); err != nil {
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}
	return u, nil
}

// ChangePassword replaces the password hash of a user.
func (s *ChatService) ChangePassword(id, password string) error {
	u, release, err := s.acquireUser(id)
	if err != nil {
		return fmt.Errorf("finding user %s: %w", id, err)
	}
	defer release()
	u = u.Clone()
	u.PasswordHash = HashPassword(password)
	if err := s.storage.UpdateUser(u); err != nil {
		return fmt.Errorf("updating password of %s: %w", id, err)
	}
	return nil
}

// CreateGroup creates a group and sets its members. When the members cannot
// be applied the group is removed again.
func (s *ChatService) CreateGroup(name string, members ...string) (*Group, error) {
	g := &Group{
		UUID:             s.idgen.New(),
		RegistrationDate: StorageTime(s.clock),
		Name:             name,
	}
	err := WithCompensation(s.logger,
		Step{
			Name: "add group",
			Do:   func() error { return s.storage.AddGroup(g) },
			Undo: func() error { return s.storage.RemoveGroup(g.UUID) },
		},
		Step{
			Name: "set members",
			Do: func() error {
				if len(members) == 0 {
					return nil
				}
				return s.storage.SetGroupUsers(g.UUID, members)
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating group %q: %w", name, err)
	}
	s.logger.Info("group created", "uuid", g.UUID, "name", name, "members", len(members))
	return g, nil
}

// RenameGroup changes the name of a group.
func (s *ChatService) RenameGroup(id, name string) error {
	g, release, err := s.acquireGroup(id)
	if err != nil {
		return fmt.Errorf("finding group %s: %w", id, err)
	}
	defer release()
	g = g.Clone()
	g.Name = name
	if err := s.storage.UpdateGroup(g); err != nil {
		return fmt.Errorf("renaming group %s: %w", id, err)
	}
	return nil
}

// PostMessage appends a message to a group.
func (s *ChatService) PostMessage(groupID string, data MessageData) (*Message, error) {
	m := &Message{
		UUID:       s.idgen.New(),
		GroupUUID:  groupID,
		CreateTime: StorageTime(s.clock),
	}
	if err := m.SetData(data); err != nil {
		return nil, fmt.Errorf("posting message: %w", err)
	}
	if err := s.storage.AddMessage(m); err != nil {
		return nil, fmt.Errorf("posting message to %s: %w", groupID, err)
	}
	return m, nil
}

// History returns the messages of a group within r, oldest first.
// Unlike Storage.FindMessages, an empty history is not an error.
func (s *ChatService) History(groupID string, r TimeRange) ([]*Message, error) {
	msgs, err := s.storage.FindMessages(groupID, r)
	if errors.Is(err, ErrMessageNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", groupID, err)
	}
	return msgs, nil
}

// AddContact links two users in both directions.
func (s *ChatService) AddContact(userID, contactID string) error {
	if err := s.storage.AddUserContact(userID, contactID); err != nil {
		return fmt.Errorf("adding contact %s to %s: %w", contactID, userID, err)
	}
	return nil
}

// RemoveContact unlinks two users.
func (s *ChatService) RemoveContact(userID, contactID string) error {
	if err := s.storage.RemoveUserContact(userID, contactID); err != nil {
		return fmt.Errorf("removing contact %s from %s: %w", contactID, userID, err)
	}
	return nil
}

// Contacts resolves the contact list of a user into user records.
// Contacts that can no longer be found are logged and skipped.
func (s *ChatService) Contacts(userID string) ([]*User, error) {
	ids, err := s.storage.GetUserContactList(userID)
	if err != nil {
		return nil, fmt.Errorf("listing contacts of %s: %w", userID, err)
	}
	return s.resolveUsers(ids), nil
}

// Members resolves the member list of a group into user records.
func (s *ChatService) Members(groupID string) ([]*User, error) {
	ids, err := s.storage.GetGroupUserList(groupID)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", groupID, err)
	}
	return s.resolveUsers(ids), nil
}

// UserGroups resolves the groups a user belongs to.
func (s *ChatService) UserGroups(userID string) ([]*Group, error) {
	ids, err := s.storage.GetUserGroups(userID)
	if err != nil {
		return nil, fmt.Errorf("listing groups of %s: %w", userID, err)
	}
	groups := make([]*Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.storage.FindGroupByUUID(id)
		if err != nil {
			s.logger.Warn("skipping unresolved group", "uuid", id, "error", err)
			continue
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *ChatService) resolveUsers(ids []string) []*User {
	users := make([]*User, 0, len(ids))
	for _, id := range ids {
		u, err := s.storage.FindUserByUUID(id)
		if err != nil {
			s.logger.Warn("skipping unresolved user", "uuid", id, "error", err)
			continue
		}
		users = append(users, u)
	}
	return users
}

// FindUser returns the user with the given UUID.
func (s *ChatService) FindUser(id string) (*User, error) {
	u, err := s.storage.FindUserByUUID(id)
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", id, err)
	}
	return u, nil
}

// RemoveUser deletes a user with its contacts and memberships.
func (s *ChatService) RemoveUser(id string) error {
	if err := s.storage.RemoveUser(id); err != nil {
		return fmt.Errorf("removing user %s: %w", id, err)
	}
	s.logger.Info("user removed", "uuid", id)
	return nil
}

// FindGroup returns the group with the given UUID.
func (s *ChatService) FindGroup(id string) (*Group, error) {
	g, err := s.storage.FindGroupByUUID(id)
	if err != nil {
		return nil, fmt.Errorf("finding group %s: %w", id, err)
	}
	return g, nil
}

// RemoveGroup deletes a group with its membership and messages.
func (s *ChatService) RemoveGroup(id string) error {
	if err := s.storage.RemoveGroup(id); err != nil {
		return fmt.Errorf("removing group %s: %w", id, err)
	}
	s.logger.Info("group removed", "uuid", id)
	return nil
}

// SetMembers replaces the members of a group.
func (s *ChatService) SetMembers(groupID string, members []string) error {
	if err := s.storage.SetGroupUsers(groupID, members); err != nil {
		return fmt.Errorf("setting members of %s: %w", groupID, err)
	}
	return nil
}

// AddMember adds a user to a group.
func (s *ChatService) AddMember(groupID, userID string) error {
	if err := s.storage.AddGroupUser(groupID, userID); err != nil {
		return fmt.Errorf("adding %s to %s: %w", userID, groupID, err)
	}
	return nil
}

// RemoveMember removes a user from a group.
func (s *ChatService) RemoveMember(groupID, userID string) error {
	if err := s.storage.RemoveGroupUser(groupID, userID); err != nil {
		return fmt.Errorf("removing %s from %s: %w", userID, groupID, err)
	}
	return nil
}

// ClearMembers removes every member of a group.
func (s *ChatService) ClearMembers(groupID string) error {
	if err := s.storage.ClearGroupUsers(groupID); err != nil {
		return fmt.Errorf("clearing members of %s: %w", groupID, err)
	}
	return nil
}

// RemoveMessage deletes a message of a group.
func (s *ChatService) RemoveMessage(id, groupID string) error {
	if err := s.storage.RemoveMessage(id, groupID); err != nil {
		return fmt.Errorf("removing message %s: %w", id, err)
	}
	return nil
}
