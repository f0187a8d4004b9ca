// Package storage combines a physical hawk.Storage with an optional cache.
// Reads are served from the cache when possible and fall through to the
// physical storage on a miss. Writes go to the physical storage first and
// are then mirrored into the cache.
package storage

import (
	"errors"
	"fmt"
	"io"

	"hawk-go/internal/hawk"
)

// Combined is a cache-aside, write-through hawk.CacheStorage.
type Combined struct {
	hard   hawk.Storage
	cache  hawk.CacheStorage
	logger hawk.Logger
}

var (
	_ hawk.CacheStorage = (*Combined)(nil)
	_ hawk.Snapshotter  = (*Combined)(nil)
)

// NewCombined creates a Combined over hard. cache may be nil, in which case
// every call goes straight to hard.
func NewCombined(hard hawk.Storage, cache hawk.CacheStorage, logger hawk.Logger) *Combined {
	return &Combined{
		hard:   hard,
		cache:  cache,
		logger: hawk.LoggerOrNop(logger),
	}
}

// Physical returns the physical storage.
func (c *Combined) Physical() hawk.Storage { return c.hard }

// Cache returns the cache, or nil when caching is disabled.
func (c *Combined) Cache() hawk.CacheStorage { return c.cache }

func (c *Combined) Open() error {
	c.Close()
	if err := c.hard.Open(); err != nil {
		return fmt.Errorf("opening physical storage: %w", err)
	}
	if c.cache != nil {
		if err := c.cache.Open(); err != nil {
			c.Close()
			return fmt.Errorf("opening cache: %w", err)
		}
	}
	return nil
}

func (c *Combined) IsOpen() bool {
	return c.hard.IsOpen() && (c.cache == nil || c.cache.IsOpen())
}

func (c *Combined) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
	c.hard.Close()
}

// WriteSnapshot exports the physical storage.
func (c *Combined) WriteSnapshot(w io.Writer) error {
	snap, ok := c.hard.(hawk.Snapshotter)
	if !ok {
		return fmt.Errorf("storage %T cannot be snapshotted: %w", c.hard, errors.ErrUnsupported)
	}
	return snap.WriteSnapshot(w)
}

// Path returns the backing file of the physical storage.
func (c *Combined) Path() string {
	if snap, ok := c.hard.(hawk.Snapshotter); ok {
		return snap.Path()
	}
	return ""
}

// mirror logs a cache write that failed after the physical write succeeded.
func (c *Combined) mirror(op, id string, err error) {
	if err != nil {
		c.logger.Warn("cache update failed", "op", op, "id", id, "error", err)
	}
}

// readThrough returns the cached value unless the cache reports miss, in
// which case the physical value is handed to fill and the entry now held by
// the cache is returned. Callers get the same record on the miss and on the
// hits that follow it. The physical value is returned only when the cache
// cannot hold it.
func readThrough[T any](c *Combined, miss hawk.Error, fromCache, fromHard func() (T, error), fill func(T) error) (T, error) {
	if c.cache != nil {
		v, err := fromCache()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, miss) {
			return v, err
		}
	}
	v, err := fromHard()
	if err != nil {
		return v, err
	}
	if c.cache == nil || fill == nil {
		return v, nil
	}
	if err := fill(v); err != nil {
		c.logger.Warn("cache fill failed", "error", err)
		return v, nil
	}
	if cached, err := fromCache(); err == nil {
		return cached, nil
	}
	return v, nil
}

// Users

func (c *Combined) AddUser(u *hawk.User) error {
	if err := c.hard.AddUser(u); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("add user", u.UUID, c.cache.AddUser(u))
	}
	return nil
}

func (c *Combined) UpdateUser(u *hawk.User) error {
	if err := c.hard.UpdateUser(u); err != nil {
		return err
	}
	if c.cache == nil {
		return nil
	}
	if err := c.cache.UpdateUser(u); err != nil {
		if aerr := c.cache.AddUser(u); aerr != nil {
			c.mirror("update user", u.UUID, errors.Join(err, aerr))
			c.mirror("evict user", u.UUID, c.cache.RemoveUser(u.UUID))
		}
	}
	return nil
}

func (c *Combined) FindUserByUUID(id string) (*hawk.User, error) {
	return readThrough(c, hawk.ErrUserNotExists,
		func() (*hawk.User, error) { return c.cache.FindUserByUUID(id) },
		func() (*hawk.User, error) { return c.hard.FindUserByUUID(id) },
		c.fillUser)
}

func (c *Combined) FindUserByAuthentication(login string, passwordHash []byte) (*hawk.User, error) {
	return readThrough(c, hawk.ErrUserNotExists,
		func() (*hawk.User, error) { return c.cache.FindUserByAuthentication(login, passwordHash) },
		func() (*hawk.User, error) { return c.hard.FindUserByAuthentication(login, passwordHash) },
		c.fillUser)
}

func (c *Combined) fillUser(u *hawk.User) error {
	err := c.cache.AddUser(u)
	if errors.Is(err, hawk.ErrUserAlreadyExists) {
		return nil
	}
	return err
}

func (c *Combined) RemoveUser(id string) error {
	if err := c.hard.RemoveUser(id); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("remove user", id, c.cache.RemoveUser(id))
	}
	return nil
}

// AcquireUser returns the user pinned in the cache, loading it from the
// physical storage on a miss.
func (c *Combined) AcquireUser(id string) (*hawk.User, hawk.Release, error) {
	if c.cache == nil {
		u, err := c.hard.FindUserByUUID(id)
		if err != nil {
			return nil, nil, err
		}
		return u, func() {}, nil
	}
	u, release, err := c.cache.AcquireUser(id)
	if !errors.Is(err, hawk.ErrUserNotExists) {
		return u, release, err
	}
	hard, err := c.hard.FindUserByUUID(id)
	if err != nil {
		return nil, nil, err
	}
	if err := c.fillUser(hard); err != nil {
		return nil, nil, fmt.Errorf("caching user %s: %w", id, err)
	}
	return c.cache.AcquireUser(id)
}

// Groups

func (c *Combined) AddGroup(g *hawk.Group) error {
	if err := c.hard.AddGroup(g); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("add group", g.UUID, c.cache.AddGroup(g))
	}
	return nil
}

func (c *Combined) UpdateGroup(g *hawk.Group) error {
	if err := c.hard.UpdateGroup(g); err != nil {
		return err
	}
	if c.cache == nil {
		return nil
	}
	if err := c.cache.UpdateGroup(g); err != nil {
		if aerr := c.cache.AddGroup(g); aerr != nil {
			c.mirror("update group", g.UUID, errors.Join(err, aerr))
			c.mirror("evict group", g.UUID, c.cache.RemoveGroup(g.UUID))
		}
	}
	return nil
}

func (c *Combined) FindGroupByUUID(id string) (*hawk.Group, error) {
	return readThrough(c, hawk.ErrGroupNotExists,
		func() (*hawk.Group, error) { return c.cache.FindGroupByUUID(id) },
		func() (*hawk.Group, error) { return c.hard.FindGroupByUUID(id) },
		c.fillGroup)
}

func (c *Combined) fillGroup(g *hawk.Group) error {
	err := c.cache.AddGroup(g)
	if errors.Is(err, hawk.ErrGroupAlreadyExists) {
		return nil
	}
	return err
}

func (c *Combined) RemoveGroup(id string) error {
	if err := c.hard.RemoveGroup(id); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("remove group", id, c.cache.RemoveGroup(id))
	}
	return nil
}

// AcquireGroup is AcquireUser for groups.
func (c *Combined) AcquireGroup(id string) (*hawk.Group, hawk.Release, error) {
	if c.cache == nil {
		g, err := c.hard.FindGroupByUUID(id)
		if err != nil {
			return nil, nil, err
		}
		return g, func() {}, nil
	}
	g, release, err := c.cache.AcquireGroup(id)
	if !errors.Is(err, hawk.ErrGroupNotExists) {
		return g, release, err
	}
	hard, err := c.hard.FindGroupByUUID(id)
	if err != nil {
		return nil, nil, err
	}
	if err := c.fillGroup(hard); err != nil {
		return nil, nil, fmt.Errorf("caching group %s: %w", id, err)
	}
	return c.cache.AcquireGroup(id)
}

// Messages

func (c *Combined) AddMessage(m *hawk.Message) error {
	if err := c.hard.AddMessage(m); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("add message", m.UUID, c.cache.AddMessage(m))
	}
	return nil
}

func (c *Combined) UpdateMessage(m *hawk.Message) error {
	if err := c.hard.UpdateMessage(m); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("update message", m.UUID, c.cache.UpdateMessage(m))
	}
	return nil
}

func (c *Combined) FindMessage(id string) (*hawk.Message, error) {
	return readThrough(c, hawk.ErrMessageNotExists,
		func() (*hawk.Message, error) { return c.cache.FindMessage(id) },
		func() (*hawk.Message, error) { return c.hard.FindMessage(id) },
		func(m *hawk.Message) error { return c.cache.AddMessage(m) })
}

func (c *Combined) FindMessages(groupID string, r hawk.TimeRange) ([]*hawk.Message, error) {
	return readThrough(c, hawk.ErrMessageNotExists,
		func() ([]*hawk.Message, error) { return c.cache.FindMessages(groupID, r) },
		func() ([]*hawk.Message, error) { return c.hard.FindMessages(groupID, r) },
		nil)
}

func (c *Combined) RemoveMessage(id, groupID string) error {
	if err := c.hard.RemoveMessage(id, groupID); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("remove message", id, c.cache.RemoveMessage(id, groupID))
	}
	return nil
}

// Contacts

func (c *Combined) SetUserContacts(userID string, contacts []string) error {
	if err := c.hard.SetUserContacts(userID, contacts); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("set contacts", userID, c.cache.SetUserContacts(userID, contacts))
	}
	return nil
}

func (c *Combined) AddUserContact(userID, contactID string) error {
	if err := c.hard.AddUserContact(userID, contactID); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("add contact", userID, c.cache.AddUserContact(userID, contactID))
	}
	return nil
}

func (c *Combined) RemoveUserContact(userID, contactID string) error {
	if err := c.hard.RemoveUserContact(userID, contactID); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("remove contact", userID, c.cache.RemoveUserContact(userID, contactID))
	}
	return nil
}

func (c *Combined) RemoveUserContacts(userID string) error {
	if err := c.hard.RemoveUserContacts(userID); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("remove contacts", userID, c.cache.RemoveUserContacts(userID))
	}
	return nil
}

func (c *Combined) GetUserContactList(userID string) ([]string, error) {
	return readThrough(c, hawk.ErrUserContactRelationNotExists,
		func() ([]string, error) { return c.cache.GetUserContactList(userID) },
		func() ([]string, error) { return c.hard.GetUserContactList(userID) },
		func(ids []string) error { return c.cache.SetUserContacts(userID, ids) })
}

// Membership

func (c *Combined) SetGroupUsers(groupID string, users []string) error {
	if err := c.hard.SetGroupUsers(groupID, users); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("set members", groupID, c.cache.SetGroupUsers(groupID, users))
	}
	return nil
}

func (c *Combined) AddGroupUser(groupID, userID string) error {
	if err := c.hard.AddGroupUser(groupID, userID); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("add member", groupID, c.cache.AddGroupUser(groupID, userID))
	}
	return nil
}

func (c *Combined) RemoveGroupUser(groupID, userID string) error {
	if err := c.hard.RemoveGroupUser(groupID, userID); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("remove member", groupID, c.cache.RemoveGroupUser(groupID, userID))
	}
	return nil
}

func (c *Combined) ClearGroupUsers(groupID string) error {
	if err := c.hard.ClearGroupUsers(groupID); err != nil {
		return err
	}
	if c.cache != nil {
		c.mirror("clear members", groupID, c.cache.ClearGroupUsers(groupID))
	}
	return nil
}

func (c *Combined) GetGroupUserList(groupID string) ([]string, error) {
	return readThrough(c, hawk.ErrGroupUserRelationNotExists,
		func() ([]string, error) { return c.cache.GetGroupUserList(groupID) },
		func() ([]string, error) { return c.hard.GetGroupUserList(groupID) },
		func(ids []string) error { return c.cache.SetGroupUsers(groupID, ids) })
}

// GetUserGroups is never cached.
func (c *Combined) GetUserGroups(userID string) ([]string, error) {
	return readThrough(c, hawk.ErrUserGroupsRelationNotExists,
		func() ([]string, error) { return c.cache.GetUserGroups(userID) },
		func() ([]string, error) { return c.hard.GetUserGroups(userID) },
		nil)
}
