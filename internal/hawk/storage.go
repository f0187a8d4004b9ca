package hawk

import "io"

// Storage persists users, groups, messages and their relations.
// Every data operation fails with ErrNotOpen while the storage is closed.
// Implementations return errors from the hawk.Error set, possibly wrapped;
// use errors.Is to inspect them.
type Storage interface {
	// Open makes the storage ready for use. Opening an already open storage
	// closes it first.
	Open() error

	// IsOpen reports whether Open has succeeded and Close has not been called.
	IsOpen() bool

	// Close releases the storage. Physical stores flush their state.
	Close()

	// User operations

	// AddUser stores a new user. Fails if the UUID or login is taken.
	AddUser(u *User) error

	// UpdateUser overwrites the mutable fields of an existing user.
	UpdateUser(u *User) error

	// FindUserByUUID returns the user with the given UUID or ErrUserNotExists.
	FindUserByUUID(id string) (*User, error)

	// FindUserByAuthentication returns the user whose login and password hash
	// match. A known login with a different hash yields ErrUserPasswordIncorrect.
	FindUserByAuthentication(login string, passwordHash []byte) (*User, error)

	// RemoveUser deletes a user together with its contact and membership
	// relations. Removing an unknown user is not an error.
	RemoveUser(id string) error

	// Group operations

	// AddGroup stores a new group with an empty member list.
	AddGroup(g *Group) error

	// UpdateGroup overwrites the mutable fields of an existing group.
	UpdateGroup(g *Group) error

	// FindGroupByUUID returns the group with the given UUID or ErrGroupNotExists.
	FindGroupByUUID(id string) (*Group, error)

	// RemoveGroup deletes a group, its membership and its messages.
	// Removing an unknown group is not an error.
	RemoveGroup(id string) error

	// Message operations

	// AddMessage stores a message into an existing group.
	AddMessage(m *Message) error

	// UpdateMessage replaces the payload of an existing message.
	UpdateMessage(m *Message) error

	// FindMessage returns the message with the given UUID.
	FindMessage(id string) (*Message, error)

	// FindMessages returns the messages of a group created within r, oldest
	// first. An empty result is reported as ErrMessageNotExists.
	FindMessages(groupID string, r TimeRange) ([]*Message, error)

	// RemoveMessage deletes the message if both UUIDs match.
	// Removing an unknown message is not an error.
	RemoveMessage(id, groupID string) error

	// Contact relations. Contacts are symmetric: adding B to A also adds A to B.

	// SetUserContacts replaces the contact list of a user.
	SetUserContacts(userID string, contacts []string) error

	// AddUserContact links two users. Self-contact yields ErrIncorrectData.
	AddUserContact(userID, contactID string) error

	// RemoveUserContact unlinks two users.
	RemoveUserContact(userID, contactID string) error

	// RemoveUserContacts unlinks a user from all of its contacts.
	RemoveUserContacts(userID string) error

	// GetUserContactList returns the contact UUIDs of a user.
	GetUserContactList(userID string) ([]string, error)

	// Group membership relations.

	// SetGroupUsers replaces the member list of a group. Either all members
	// are applied or the previous list is kept.
	SetGroupUsers(groupID string, users []string) error

	// AddGroupUser adds a user to a group.
	AddGroupUser(groupID, userID string) error

	// RemoveGroupUser removes a user from a group.
	RemoveGroupUser(groupID, userID string) error

	// ClearGroupUsers removes every member of a group.
	ClearGroupUsers(groupID string) error

	// GetGroupUserList returns the member UUIDs of a group.
	GetGroupUserList(groupID string) ([]string, error)

	// GetUserGroups returns the UUIDs of the groups a user belongs to.
	GetUserGroups(userID string) ([]string, error)
}

// Release returns a lease taken on a cached record. Calling it more than
// once has no further effect.
type Release func()

// Leaser pins shared records against eviction while a caller works on them.
type Leaser interface {
	// AcquireUser returns the cached user and pins it until release is called.
	// A pinned entry is never evicted.
	AcquireUser(id string) (*User, Release, error)

	// AcquireGroup is AcquireUser for groups.
	AcquireGroup(id string) (*Group, Release, error)
}

// CacheStorage is a Storage kept in memory with time based eviction.
// Records returned by a CacheStorage are shared between callers and must
// not be modified; clone them first.
type CacheStorage interface {
	Storage
	Leaser
}

// Snapshotter is implemented by storages that can export their durable state.
type Snapshotter interface {
	// WriteSnapshot writes a consistent copy of the backing data to w.
	WriteSnapshot(w io.Writer) error

	// Path returns the backing file that a snapshot restores into.
	Path() string
}
