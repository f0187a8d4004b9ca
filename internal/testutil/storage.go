package testutil

import (
	"bytes"
	"errors"
	"slices"
	"testing"
	"time"

	"hawk-go/internal/hawk"
)

// OpenStorage returns an opened, empty storage. The callee registers its own
// cleanup.
type OpenStorage func(t *testing.T) hawk.Storage

// RunStorageSuite exercises the behaviour every hawk.Storage implementation
// shares. Each subtest gets a fresh storage from open.
func RunStorageSuite(t *testing.T, open OpenStorage) {
	t.Helper()

	t.Run("closed storage rejects operations", func(t *testing.T) { testClosed(t, open) })
	t.Run("bootstrap administrator", func(t *testing.T) { testAdmin(t, open) })
	t.Run("users", func(t *testing.T) { testUsers(t, open) })
	t.Run("contacts", func(t *testing.T) { testContacts(t, open) })
	t.Run("groups", func(t *testing.T) { testGroups(t, open) })
	t.Run("membership", func(t *testing.T) { testMembership(t, open) })
	t.Run("membership rollback", func(t *testing.T) { testMembershipRollback(t, open) })
	t.Run("messages", func(t *testing.T) { testMessages(t, open) })
	t.Run("remove user cascades", func(t *testing.T) { testRemoveUser(t, open) })
	t.Run("remove group cascades", func(t *testing.T) { testRemoveGroup(t, open) })
	t.Run("end to end", func(t *testing.T) { testScenario(t, open) })
}

// MustAddUsers adds users or fails the test.
func MustAddUsers(t *testing.T, s hawk.Storage, users ...*hawk.User) {
	t.Helper()
	for _, u := range users {
		if err := s.AddUser(u); err != nil {
			t.Fatalf("AddUser(%s) error = %v", u.UUID, err)
		}
	}
}

// MustAddGroups adds groups or fails the test.
func MustAddGroups(t *testing.T, s hawk.Storage, groups ...*hawk.Group) {
	t.Helper()
	for _, g := range groups {
		if err := s.AddGroup(g); err != nil {
			t.Fatalf("AddGroup(%s) error = %v", g.UUID, err)
		}
	}
}

// AssertIDs compares two id lists ignoring order.
func AssertIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	got = slices.Sorted(slices.Values(got))
	want = slices.Sorted(slices.Values(want))
	if !slices.Equal(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

// AssertErr fails unless errors.Is(err, want).
func AssertErr(t *testing.T, op string, err error, want hawk.Error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Errorf("%s error = %v, want %v", op, err, want)
	}
}

func contacts(t *testing.T, s hawk.Storage, id string) []string {
	t.Helper()
	got, err := s.GetUserContactList(id)
	if err != nil {
		t.Fatalf("GetUserContactList(%s) error = %v", id, err)
	}
	return got
}

func members(t *testing.T, s hawk.Storage, id string) []string {
	t.Helper()
	got, err := s.GetGroupUserList(id)
	if err != nil {
		t.Fatalf("GetGroupUserList(%s) error = %v", id, err)
	}
	return got
}

func userGroups(t *testing.T, s hawk.Storage, id string) []string {
	t.Helper()
	got, err := s.GetUserGroups(id)
	if err != nil {
		t.Fatalf("GetUserGroups(%s) error = %v", id, err)
	}
	return got
}

func testClosed(t *testing.T, open OpenStorage) {
	s := open(t)
	if !s.IsOpen() {
		t.Fatal("IsOpen() = false after open")
	}
	s.Close()
	if s.IsOpen() {
		t.Fatal("IsOpen() = true after Close()")
	}

	AssertErr(t, "AddUser()", s.AddUser(NewUser("u-1", "alice")), hawk.ErrNotOpen)
	_, err := s.FindUserByUUID("u-1")
	AssertErr(t, "FindUserByUUID()", err, hawk.ErrNotOpen)
	AssertErr(t, "AddGroup()", s.AddGroup(NewGroup("g-1")), hawk.ErrNotOpen)
	_, err = s.FindMessages("g-1", hawk.TimeRange{To: time.Now()})
	AssertErr(t, "FindMessages()", err, hawk.ErrNotOpen)
	_, err = s.GetUserContactList("u-1")
	AssertErr(t, "GetUserContactList()", err, hawk.ErrNotOpen)
}

func testAdmin(t *testing.T, open OpenStorage) {
	s := open(t)

	admin, err := s.FindUserByAuthentication(hawk.AdminLogin, hawk.HashPassword(hawk.AdminPassword))
	if err != nil {
		t.Fatalf("FindUserByAuthentication(admin) error = %v", err)
	}
	if admin.Name != hawk.AdminName {
		t.Errorf("admin.Name = %q, want %q", admin.Name, hawk.AdminName)
	}
	if admin.Sex != hawk.SexNotSpecified {
		t.Errorf("admin.Sex = %v, want %v", admin.Sex, hawk.SexNotSpecified)
	}
	if !admin.Birthday.IsZero() {
		t.Errorf("admin.Birthday = %v, want zero", admin.Birthday)
	}
	if got := contacts(t, s, admin.UUID); len(got) != 0 {
		t.Errorf("admin contacts = %v, want none", got)
	}
}

func testUsers(t *testing.T, open OpenStorage) {
	s := open(t)
	alice := NewUser("u-alice", "alice")
	alice.Sex = hawk.SexFemale
	alice.Birthday = time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)
	MustAddUsers(t, s, alice, NewUser("u-bob", "bob"))

	t.Run("find by uuid", func(t *testing.T) {
		got, err := s.FindUserByUUID("u-alice")
		if err != nil {
			t.Fatalf("FindUserByUUID() error = %v", err)
		}
		if got.Login != "alice" || got.Sex != hawk.SexFemale {
			t.Errorf("FindUserByUUID() = %+v", got)
		}
		if !got.RegistrationDate.Equal(alice.RegistrationDate) {
			t.Errorf("RegistrationDate = %v, want %v", got.RegistrationDate, alice.RegistrationDate)
		}
		if !got.Birthday.Equal(alice.Birthday) {
			t.Errorf("Birthday = %v, want %v", got.Birthday, alice.Birthday)
		}
		if !bytes.Equal(got.PasswordHash, alice.PasswordHash) {
			t.Errorf("PasswordHash = %x, want %x", got.PasswordHash, alice.PasswordHash)
		}

		_, err = s.FindUserByUUID("u-nobody")
		AssertErr(t, "FindUserByUUID(missing)", err, hawk.ErrUserNotExists)
	})

	t.Run("authentication", func(t *testing.T) {
		got, err := s.FindUserByAuthentication("bob", hawk.HashPassword("secret-bob"))
		if err != nil {
			t.Fatalf("FindUserByAuthentication() error = %v", err)
		}
		if got.UUID != "u-bob" {
			t.Errorf("UUID = %q, want %q", got.UUID, "u-bob")
		}

		_, err = s.FindUserByAuthentication("bob", hawk.HashPassword("wrong"))
		AssertErr(t, "FindUserByAuthentication(wrong password)", err, hawk.ErrUserPasswordIncorrect)

		_, err = s.FindUserByAuthentication("carol", hawk.HashPassword("secret-carol"))
		AssertErr(t, "FindUserByAuthentication(unknown login)", err, hawk.ErrUserNotExists)
	})

	t.Run("uniqueness", func(t *testing.T) {
		dupUUID := NewUser("u-alice", "someone-else")
		AssertErr(t, "AddUser(duplicate uuid)", s.AddUser(dupUUID), hawk.ErrUserUUIDAlreadyRegistered)

		dupLogin := NewUser("u-alice-2", "alice")
		AssertErr(t, "AddUser(duplicate login)", s.AddUser(dupLogin), hawk.ErrUserLoginAlreadyRegistered)

		dupLogin.PasswordHash = hawk.HashPassword("other")
		AssertErr(t, "AddUser(duplicate login, other password)", s.AddUser(dupLogin), hawk.ErrUserLoginAlreadyRegistered)

		AssertErr(t, "AddUser(nil)", s.AddUser(nil), hawk.ErrInvalidPtr)
	})

	t.Run("update", func(t *testing.T) {
		u, err := s.FindUserByUUID("u-bob")
		if err != nil {
			t.Fatalf("FindUserByUUID() error = %v", err)
		}
		u = u.Clone()
		u.Name = "Robert"
		u.Sex = hawk.SexMale
		u.RegistrationDate = BaseTime.Add(time.Hour)
		if err := s.UpdateUser(u); err != nil {
			t.Fatalf("UpdateUser() error = %v", err)
		}

		got, err := s.FindUserByUUID("u-bob")
		if err != nil {
			t.Fatalf("FindUserByUUID() error = %v", err)
		}
		if got.Name != "Robert" || got.Sex != hawk.SexMale {
			t.Errorf("after update = %+v", got)
		}
		if !got.RegistrationDate.Equal(BaseTime) {
			t.Errorf("RegistrationDate = %v, want unchanged %v", got.RegistrationDate, BaseTime)
		}

		taken := got.Clone()
		taken.Login = "alice"
		AssertErr(t, "UpdateUser(taken login)", s.UpdateUser(taken), hawk.ErrUserLoginAlreadyRegistered)

		AssertErr(t, "UpdateUser(missing)", s.UpdateUser(NewUser("u-nobody", "nobody")), hawk.ErrUserNotExists)
	})
}

func testContacts(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddUsers(t, s, NewUser("a", "a"), NewUser("b", "b"), NewUser("c", "c"))

	if err := s.AddUserContact("a", "b"); err != nil {
		t.Fatalf("AddUserContact() error = %v", err)
	}
	AssertIDs(t, "contacts(a)", contacts(t, s, "a"), []string{"b"})
	AssertIDs(t, "contacts(b)", contacts(t, s, "b"), []string{"a"})

	AssertErr(t, "AddUserContact(self)", s.AddUserContact("a", "a"), hawk.ErrIncorrectData)
	AssertErr(t, "AddUserContact(duplicate)", s.AddUserContact("b", "a"), hawk.ErrUserContactAlreadyExists)
	AssertErr(t, "AddUserContact(unknown)", s.AddUserContact("a", "ghost"), hawk.ErrUserNotExists)
	AssertErr(t, "RemoveUserContact(missing)", s.RemoveUserContact("a", "c"), hawk.ErrUserContactNotExists)
	AssertErr(t, "RemoveUserContact(self)", s.RemoveUserContact("a", "a"), hawk.ErrIncorrectData)

	// A failed call leaves both sides untouched.
	AssertIDs(t, "contacts(a)", contacts(t, s, "a"), []string{"b"})
	AssertIDs(t, "contacts(c)", contacts(t, s, "c"), nil)

	t.Run("set", func(t *testing.T) {
		if err := s.SetUserContacts("a", []string{"b", "c", "c"}); err != nil {
			t.Fatalf("SetUserContacts() error = %v", err)
		}
		AssertIDs(t, "contacts(a)", contacts(t, s, "a"), []string{"b", "c"})
		AssertIDs(t, "contacts(c)", contacts(t, s, "c"), []string{"a"})

		if err := s.SetUserContacts("a", []string{"c"}); err != nil {
			t.Fatalf("SetUserContacts() error = %v", err)
		}
		AssertIDs(t, "contacts(a)", contacts(t, s, "a"), []string{"c"})
		AssertIDs(t, "contacts(b)", contacts(t, s, "b"), nil)

		AssertErr(t, "SetUserContacts(self)", s.SetUserContacts("a", []string{"a"}), hawk.ErrIncorrectData)
		AssertErr(t, "SetUserContacts(unknown)", s.SetUserContacts("a", []string{"b", "ghost"}), hawk.ErrUserNotExists)
		AssertIDs(t, "contacts(a)", contacts(t, s, "a"), []string{"c"})
	})

	t.Run("remove all", func(t *testing.T) {
		if err := s.SetUserContacts("a", []string{"b", "c"}); err != nil {
			t.Fatalf("SetUserContacts() error = %v", err)
		}
		if err := s.RemoveUserContacts("a"); err != nil {
			t.Fatalf("RemoveUserContacts() error = %v", err)
		}
		for _, id := range []string{"a", "b", "c"} {
			AssertIDs(t, "contacts("+id+")", contacts(t, s, id), nil)
		}
	})

	t.Run("unknown owner", func(t *testing.T) {
		_, err := s.GetUserContactList("ghost")
		if err == nil {
			t.Fatal("GetUserContactList(ghost) error = nil")
		}
	})
}

func testGroups(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddGroups(t, s, NewGroup("g-1"))

	AssertErr(t, "AddGroup(duplicate)", s.AddGroup(NewGroup("g-1")), hawk.ErrGroupUUIDAlreadyRegistered)
	AssertErr(t, "AddGroup(nil)", s.AddGroup(nil), hawk.ErrInvalidPtr)

	g, err := s.FindGroupByUUID("g-1")
	if err != nil {
		t.Fatalf("FindGroupByUUID() error = %v", err)
	}
	if g.Name != "group g-1" {
		t.Errorf("Name = %q, want %q", g.Name, "group g-1")
	}
	if got := members(t, s, "g-1"); len(got) != 0 {
		t.Errorf("members of new group = %v, want none", got)
	}

	renamed := g.Clone()
	renamed.Name = "renamed"
	if err := s.UpdateGroup(renamed); err != nil {
		t.Fatalf("UpdateGroup() error = %v", err)
	}
	g, err = s.FindGroupByUUID("g-1")
	if err != nil {
		t.Fatalf("FindGroupByUUID() error = %v", err)
	}
	if g.Name != "renamed" {
		t.Errorf("Name = %q, want %q", g.Name, "renamed")
	}

	AssertErr(t, "UpdateGroup(missing)", s.UpdateGroup(NewGroup("g-x")), hawk.ErrGroupNotExists)
	_, err = s.FindGroupByUUID("g-x")
	AssertErr(t, "FindGroupByUUID(missing)", err, hawk.ErrGroupNotExists)
}

func testMembership(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddUsers(t, s, NewUser("a", "a"), NewUser("b", "b"))
	MustAddGroups(t, s, NewGroup("g-1"), NewGroup("g-2"))

	if err := s.AddGroupUser("g-1", "a"); err != nil {
		t.Fatalf("AddGroupUser() error = %v", err)
	}
	if err := s.AddGroupUser("g-2", "a"); err != nil {
		t.Fatalf("AddGroupUser() error = %v", err)
	}
	AssertIDs(t, "members(g-1)", members(t, s, "g-1"), []string{"a"})
	AssertIDs(t, "groups(a)", userGroups(t, s, "a"), []string{"g-1", "g-2"})
	AssertIDs(t, "groups(b)", userGroups(t, s, "b"), nil)

	AssertErr(t, "AddGroupUser(duplicate)", s.AddGroupUser("g-1", "a"), hawk.ErrGroupUserRelationAlreadyExists)
	AssertErr(t, "AddGroupUser(unknown user)", s.AddGroupUser("g-1", "ghost"), hawk.ErrUserNotExists)
	AssertErr(t, "AddGroupUser(unknown group)", s.AddGroupUser("g-x", "a"), hawk.ErrGroupNotExists)
	AssertErr(t, "RemoveGroupUser(missing)", s.RemoveGroupUser("g-1", "b"), hawk.ErrGroupUserRelationNotExists)
	_, err := s.GetUserGroups("ghost")
	AssertErr(t, "GetUserGroups(unknown)", err, hawk.ErrUserNotExists)

	if err := s.SetGroupUsers("g-1", []string{"a", "b", "b"}); err != nil {
		t.Fatalf("SetGroupUsers() error = %v", err)
	}
	AssertIDs(t, "members(g-1)", members(t, s, "g-1"), []string{"a", "b"})
	AssertIDs(t, "groups(b)", userGroups(t, s, "b"), []string{"g-1"})

	if err := s.RemoveGroupUser("g-1", "a"); err != nil {
		t.Fatalf("RemoveGroupUser() error = %v", err)
	}
	AssertIDs(t, "members(g-1)", members(t, s, "g-1"), []string{"b"})
	AssertIDs(t, "groups(a)", userGroups(t, s, "a"), []string{"g-2"})

	if err := s.ClearGroupUsers("g-1"); err != nil {
		t.Fatalf("ClearGroupUsers() error = %v", err)
	}
	AssertIDs(t, "members(g-1)", members(t, s, "g-1"), nil)
	AssertIDs(t, "groups(b)", userGroups(t, s, "b"), nil)
}

func testMembershipRollback(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddUsers(t, s, NewUser("a", "a"), NewUser("b", "b"), NewUser("c", "c"))
	MustAddGroups(t, s, NewGroup("g-1"))
	if err := s.SetGroupUsers("g-1", []string{"a", "b"}); err != nil {
		t.Fatalf("SetGroupUsers() error = %v", err)
	}

	err := s.SetGroupUsers("g-1", []string{"c", "ghost"})
	AssertErr(t, "SetGroupUsers(unknown member)", err, hawk.ErrUserNotExists)

	AssertIDs(t, "members(g-1)", members(t, s, "g-1"), []string{"a", "b"})
	AssertIDs(t, "groups(c)", userGroups(t, s, "c"), nil)
	AssertIDs(t, "groups(a)", userGroups(t, s, "a"), []string{"g-1"})
}

func testMessages(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddGroups(t, s, NewGroup("g-1"), NewGroup("g-2"))

	for _, m := range []*hawk.Message{
		NewTextMessage("m-3", "g-1", 3*time.Minute, "third"),
		NewTextMessage("m-1", "g-1", 1*time.Minute, "first"),
		NewTextMessage("m-2", "g-1", 2*time.Minute, "second"),
		NewTextMessage("m-x", "g-2", 2*time.Minute, "elsewhere"),
	} {
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage(%s) error = %v", m.UUID, err)
		}
	}

	ids := func(ms []*hawk.Message) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.UUID
		}
		return out
	}

	tests := []struct {
		name string
		r    hawk.TimeRange
		want []string
	}{
		{"all", hawk.TimeRange{From: BaseTime, To: BaseTime.Add(time.Hour)}, []string{"m-1", "m-2", "m-3"}},
		{"inclusive bounds", hawk.TimeRange{From: BaseTime.Add(time.Minute), To: BaseTime.Add(2 * time.Minute)}, []string{"m-1", "m-2"}},
		{"single instant", hawk.TimeRange{From: BaseTime.Add(3 * time.Minute), To: BaseTime.Add(3 * time.Minute)}, []string{"m-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindMessages("g-1", tt.r)
			if err != nil {
				t.Fatalf("FindMessages() error = %v", err)
			}
			if !slices.Equal(ids(got), tt.want) {
				t.Errorf("FindMessages() = %v, want %v", ids(got), tt.want)
			}
		})
	}

	_, err := s.FindMessages("g-1", hawk.TimeRange{From: BaseTime.Add(time.Hour), To: BaseTime.Add(2 * time.Hour)})
	AssertErr(t, "FindMessages(empty range)", err, hawk.ErrMessageNotExists)

	AssertErr(t, "AddMessage(duplicate)", s.AddMessage(NewTextMessage("m-1", "g-1", 0, "again")), hawk.ErrMessageAlreadyExists)
	AssertErr(t, "AddMessage(unknown group)", s.AddMessage(NewTextMessage("m-9", "g-x", 0, "lost")), hawk.ErrGroupNotExists)
	AssertErr(t, "AddMessage(nil)", s.AddMessage(nil), hawk.ErrInvalidPtr)
	empty := NewTextMessage("m-8", "g-1", 0, "")
	empty.Data = hawk.MessageData{}
	AssertErr(t, "AddMessage(empty payload)", s.AddMessage(empty), hawk.ErrIncorrectData)

	t.Run("update", func(t *testing.T) {
		edit := NewTextMessage("m-1", "g-2", time.Hour, "")
		edit.Data = hawk.MessageData{Type: hawk.MessageImage, Bytes: []byte{0x89, 0x50, 0x4e, 0x47}}
		if err := s.UpdateMessage(edit); err != nil {
			t.Fatalf("UpdateMessage() error = %v", err)
		}
		got, err := s.FindMessage("m-1")
		if err != nil {
			t.Fatalf("FindMessage() error = %v", err)
		}
		if got.GroupUUID != "g-1" || !got.CreateTime.Equal(BaseTime.Add(time.Minute)) {
			t.Errorf("UpdateMessage() moved the message: %+v", got)
		}
		if got.Data.Type != hawk.MessageImage || !bytes.Equal(got.Data.Bytes, edit.Data.Bytes) {
			t.Errorf("Data = %+v, want %+v", got.Data, edit.Data)
		}

		AssertErr(t, "UpdateMessage(missing)", s.UpdateMessage(NewTextMessage("m-9", "g-1", 0, "x")), hawk.ErrMessageNotExists)
	})

	t.Run("remove", func(t *testing.T) {
		if err := s.RemoveMessage("m-2", "g-2"); err != nil {
			t.Fatalf("RemoveMessage(wrong group) error = %v", err)
		}
		if _, err := s.FindMessage("m-2"); err != nil {
			t.Fatalf("FindMessage() after mismatched remove error = %v", err)
		}
		if err := s.RemoveMessage("m-2", "g-1"); err != nil {
			t.Fatalf("RemoveMessage() error = %v", err)
		}
		_, err := s.FindMessage("m-2")
		AssertErr(t, "FindMessage(removed)", err, hawk.ErrMessageNotExists)
		if err := s.RemoveMessage("m-2", "g-1"); err != nil {
			t.Errorf("RemoveMessage(again) error = %v", err)
		}
	})
}

func testRemoveUser(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddUsers(t, s, NewUser("a", "a"), NewUser("b", "b"), NewUser("c", "c"))
	MustAddGroups(t, s, NewGroup("g-1"))
	if err := s.SetUserContacts("a", []string{"b", "c"}); err != nil {
		t.Fatalf("SetUserContacts() error = %v", err)
	}
	if err := s.SetGroupUsers("g-1", []string{"a", "b"}); err != nil {
		t.Fatalf("SetGroupUsers() error = %v", err)
	}

	if err := s.RemoveUser("a"); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}

	_, err := s.FindUserByUUID("a")
	AssertErr(t, "FindUserByUUID(removed)", err, hawk.ErrUserNotExists)
	_, err = s.FindUserByAuthentication("a", hawk.HashPassword("secret-a"))
	AssertErr(t, "FindUserByAuthentication(removed)", err, hawk.ErrUserNotExists)
	AssertIDs(t, "contacts(b)", contacts(t, s, "b"), nil)
	AssertIDs(t, "contacts(c)", contacts(t, s, "c"), nil)
	AssertIDs(t, "members(g-1)", members(t, s, "g-1"), []string{"b"})

	if err := s.RemoveUser("a"); err != nil {
		t.Errorf("RemoveUser(again) error = %v", err)
	}

	// The login is free again.
	MustAddUsers(t, s, NewUser("a-2", "a"))
}

func testRemoveGroup(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddUsers(t, s, NewUser("a", "a"))
	MustAddGroups(t, s, NewGroup("g-1"), NewGroup("g-2"))
	if err := s.AddGroupUser("g-1", "a"); err != nil {
		t.Fatalf("AddGroupUser() error = %v", err)
	}
	if err := s.AddGroupUser("g-2", "a"); err != nil {
		t.Fatalf("AddGroupUser() error = %v", err)
	}
	for _, m := range []*hawk.Message{
		NewTextMessage("m-1", "g-1", time.Minute, "one"),
		NewTextMessage("m-2", "g-2", time.Minute, "two"),
	} {
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}

	if err := s.RemoveGroup("g-1"); err != nil {
		t.Fatalf("RemoveGroup() error = %v", err)
	}

	_, err := s.FindGroupByUUID("g-1")
	AssertErr(t, "FindGroupByUUID(removed)", err, hawk.ErrGroupNotExists)
	_, err = s.FindMessage("m-1")
	AssertErr(t, "FindMessage(of removed group)", err, hawk.ErrMessageNotExists)
	if _, err := s.FindMessage("m-2"); err != nil {
		t.Errorf("FindMessage(other group) error = %v", err)
	}
	AssertIDs(t, "groups(a)", userGroups(t, s, "a"), []string{"g-2"})

	if err := s.RemoveGroup("g-1"); err != nil {
		t.Errorf("RemoveGroup(again) error = %v", err)
	}
}

// testScenario walks through a short session: two users meet, open a group
// and talk, then one of them leaves.
func testScenario(t *testing.T, open OpenStorage) {
	s := open(t)
	MustAddUsers(t, s, NewUser("u-1", "ann"), NewUser("u-2", "ben"))

	ann, err := s.FindUserByAuthentication("ann", hawk.HashPassword("secret-ann"))
	if err != nil {
		t.Fatalf("FindUserByAuthentication() error = %v", err)
	}
	if err := s.AddUserContact(ann.UUID, "u-2"); err != nil {
		t.Fatalf("AddUserContact() error = %v", err)
	}

	MustAddGroups(t, s, NewGroup("g-chat"))
	if err := s.SetGroupUsers("g-chat", []string{"u-1", "u-2"}); err != nil {
		t.Fatalf("SetGroupUsers() error = %v", err)
	}
	for i, text := range []string{"hi", "hello", "bye"} {
		m := NewTextMessage("m-"+text, "g-chat", time.Duration(i)*time.Second, text)
		if err := s.AddMessage(m); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}

	history, err := s.FindMessages("g-chat", hawk.TimeRange{From: BaseTime, To: BaseTime.Add(time.Minute)})
	if err != nil {
		t.Fatalf("FindMessages() error = %v", err)
	}
	var texts []string
	for _, m := range history {
		texts = append(texts, string(m.Data.Bytes))
	}
	if want := []string{"hi", "hello", "bye"}; !slices.Equal(texts, want) {
		t.Errorf("history = %v, want %v", texts, want)
	}

	if err := s.RemoveUser("u-2"); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	AssertIDs(t, "contacts(u-1)", contacts(t, s, "u-1"), nil)
	AssertIDs(t, "members(g-chat)", members(t, s, "g-chat"), []string{"u-1"})
	if _, err := s.FindMessages("g-chat", hawk.TimeRange{From: BaseTime, To: BaseTime.Add(time.Minute)}); err != nil {
		t.Errorf("FindMessages() after member left error = %v", err)
	}
}
