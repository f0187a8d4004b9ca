package hawk_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hawk-go/internal/hawk"
	"hawk-go/internal/storage"
	"hawk-go/internal/storage/cache"
	"hawk-go/internal/storage/jsonstore"
	"hawk-go/internal/testutil"
)

type serviceFixture struct {
	svc   *hawk.ChatService
	clock *testutil.StubClock
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := testutil.FixedClock()
	store := jsonstore.New(filepath.Join(t.TempDir(), "hawk.json"), nil, clock, testutil.NewPrefixedIDGenerator("admin"))
	if err := store.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(store.Close)
	return &serviceFixture{
		svc:   hawk.NewChatService(store, nil, clock, testutil.NewStubIDGenerator()),
		clock: clock,
	}
}

func (f *serviceFixture) register(t *testing.T, login string) *hawk.User {
	t.Helper()
	u, err := f.svc.RegisterUser(login, "pw-"+login, login, hawk.SexNotSpecified, time.Time{})
	if err != nil {
		t.Fatalf("RegisterUser(%s) error = %v", login, err)
	}
	return u
}

func TestChatService_RegisterAndAuthenticate(t *testing.T) {
	f := newServiceFixture(t)

	u := f.register(t, "alice")
	if u.UUID != "id-1" {
		t.Errorf("UUID = %q, want %q", u.UUID, "id-1")
	}
	if !u.RegistrationDate.Equal(f.clock.Now()) {
		t.Errorf("RegistrationDate = %v, want %v", u.RegistrationDate, f.clock.Now())
	}

	got, err := f.svc.Authenticate("alice", "pw-alice")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.UUID != u.UUID {
		t.Errorf("Authenticate() UUID = %q, want %q", got.UUID, u.UUID)
	}

	if _, err := f.svc.Authenticate("alice", "nope"); !errors.Is(err, hawk.ErrUserPasswordIncorrect) {
		t.Errorf("Authenticate(wrong) error = %v, want %v", err, hawk.ErrUserPasswordIncorrect)
	}
	if _, err := f.svc.RegisterUser("alice", "x", "x", hawk.SexMale, time.Time{}); !errors.Is(err, hawk.ErrUserLoginAlreadyRegistered) {
		t.Errorf("RegisterUser(duplicate) error = %v, want %v", err, hawk.ErrUserLoginAlreadyRegistered)
	}
	if _, err := f.svc.RegisterUser("", "x", "x", hawk.SexMale, time.Time{}); !errors.Is(err, hawk.ErrUserLoginCorrupted) {
		t.Errorf("RegisterUser(empty login) error = %v, want %v", err, hawk.ErrUserLoginCorrupted)
	}
}

func TestChatService_Profile(t *testing.T) {
	f := newServiceFixture(t)
	u := f.register(t, "bob")

	birthday := time.Date(1985, 3, 2, 0, 0, 0, 0, time.UTC)
	if _, err := f.svc.UpdateProfile(u.UUID, "Bobby", hawk.SexMale, birthday); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if err := f.svc.ChangePassword(u.UUID, "new"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	got, err := f.svc.Authenticate("bob", "new")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if got.Name != "Bobby" || got.Sex != hawk.SexMale || !got.Birthday.Equal(birthday) {
		t.Errorf("profile = %+v", got)
	}
}

func TestChatService_GroupsAndMessages(t *testing.T) {
	f := newServiceFixture(t)
	a := f.register(t, "a")
	b := f.register(t, "b")

	g, err := f.svc.CreateGroup("team", a.UUID, b.UUID)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	members, err := f.svc.Members(g.UUID)
	if err != nil {
		t.Fatalf("Members() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("len(Members()) = %d, want 2", len(members))
	}

	if err := f.svc.RenameGroup(g.UUID, "crew"); err != nil {
		t.Fatalf("RenameGroup() error = %v", err)
	}
	groups, err := f.svc.UserGroups(a.UUID)
	if err != nil {
		t.Fatalf("UserGroups() error = %v", err)
	}
	if len(groups) != 1 || groups[0].Name != "crew" {
		t.Errorf("UserGroups() = %+v", groups)
	}

	window := hawk.TimeRange{From: f.clock.Now(), To: f.clock.Now().Add(time.Hour)}
	history, err := f.svc.History(g.UUID, window)
	if err != nil || history != nil {
		t.Fatalf("History(empty) = %v, %v; want nil, nil", history, err)
	}

	for _, text := range []string{"one", "two"} {
		f.clock.Advance(time.Second)
		if _, err := f.svc.PostMessage(g.UUID, hawk.MessageData{Type: hawk.MessageText, Bytes: []byte(text)}); err != nil {
			t.Fatalf("PostMessage() error = %v", err)
		}
	}
	if _, err := f.svc.PostMessage(g.UUID, hawk.MessageData{}); !errors.Is(err, hawk.ErrIncorrectData) {
		t.Errorf("PostMessage(empty) error = %v, want %v", err, hawk.ErrIncorrectData)
	}

	history, err = f.svc.History(g.UUID, window)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || string(history[0].Data.Bytes) != "one" {
		t.Errorf("History() = %+v", history)
	}
}

func TestChatService_CreateGroupRollsBack(t *testing.T) {
	f := newServiceFixture(t)
	a := f.register(t, "a")

	_, err := f.svc.CreateGroup("broken", a.UUID, "ghost")
	if !errors.Is(err, hawk.ErrUserNotExists) {
		t.Fatalf("CreateGroup() error = %v, want %v", err, hawk.ErrUserNotExists)
	}
	groups, err := f.svc.UserGroups(a.UUID)
	if err != nil {
		t.Fatalf("UserGroups() error = %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("group survived failed creation: %+v", groups)
	}
}

func TestChatService_Contacts(t *testing.T) {
	f := newServiceFixture(t)
	a := f.register(t, "a")
	b := f.register(t, "b")

	if err := f.svc.AddContact(a.UUID, b.UUID); err != nil {
		t.Fatalf("AddContact() error = %v", err)
	}
	contacts, err := f.svc.Contacts(b.UUID)
	if err != nil {
		t.Fatalf("Contacts() error = %v", err)
	}
	if len(contacts) != 1 || contacts[0].Login != "a" {
		t.Errorf("Contacts(b) = %+v", contacts)
	}

	if err := f.svc.RemoveContact(b.UUID, a.UUID); err != nil {
		t.Fatalf("RemoveContact() error = %v", err)
	}
	contacts, err = f.svc.Contacts(a.UUID)
	if err != nil {
		t.Fatalf("Contacts() error = %v", err)
	}
	if len(contacts) != 0 {
		t.Errorf("Contacts(a) = %+v, want none", contacts)
	}
}

func TestChatService_Membership(t *testing.T) {
	f := newServiceFixture(t)
	a := f.register(t, "a")
	b := f.register(t, "b")
	g, err := f.svc.CreateGroup("team")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	if err := f.svc.AddMember(g.UUID, a.UUID); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	if err := f.svc.AddMember(g.UUID, a.UUID); !errors.Is(err, hawk.ErrGroupUserRelationAlreadyExists) {
		t.Errorf("AddMember(again) error = %v, want %v", err, hawk.ErrGroupUserRelationAlreadyExists)
	}
	if err := f.svc.SetMembers(g.UUID, []string{a.UUID, b.UUID}); err != nil {
		t.Fatalf("SetMembers() error = %v", err)
	}
	if err := f.svc.RemoveMember(g.UUID, a.UUID); err != nil {
		t.Fatalf("RemoveMember() error = %v", err)
	}
	members, err := f.svc.Members(g.UUID)
	if err != nil || len(members) != 1 || members[0].UUID != b.UUID {
		t.Errorf("Members() = %+v, %v; want [b]", members, err)
	}
	if err := f.svc.ClearMembers(g.UUID); err != nil {
		t.Fatalf("ClearMembers() error = %v", err)
	}
	if members, _ := f.svc.Members(g.UUID); len(members) != 0 {
		t.Errorf("Members() after ClearMembers() = %+v", members)
	}
}

func TestChatService_Removal(t *testing.T) {
	f := newServiceFixture(t)
	a := f.register(t, "a")
	g, err := f.svc.CreateGroup("team", a.UUID)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	m, err := f.svc.PostMessage(g.UUID, hawk.MessageData{Type: hawk.MessageText, Bytes: []byte("hi")})
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}

	if err := f.svc.RemoveMessage(m.UUID, g.UUID); err != nil {
		t.Fatalf("RemoveMessage() error = %v", err)
	}
	window := hawk.TimeRange{From: f.clock.Now().Add(-time.Hour), To: f.clock.Now().Add(time.Hour)}
	if history, err := f.svc.History(g.UUID, window); err != nil || len(history) != 0 {
		t.Errorf("History() = %v, %v; want empty", history, err)
	}

	if err := f.svc.RemoveGroup(g.UUID); err != nil {
		t.Fatalf("RemoveGroup() error = %v", err)
	}
	if _, err := f.svc.FindGroup(g.UUID); !errors.Is(err, hawk.ErrGroupNotExists) {
		t.Errorf("FindGroup() error = %v, want %v", err, hawk.ErrGroupNotExists)
	}

	if err := f.svc.RemoveUser(a.UUID); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	if _, err := f.svc.FindUser(a.UUID); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("FindUser() error = %v, want %v", err, hawk.ErrUserNotExists)
	}
}

// sweepingStorage evicts everything idle in the cache right before each
// update reaches the storage and records whether the record being updated
// was still cached at that point.
type sweepingStorage struct {
	*storage.Combined
	clock       *testutil.StubClock
	cache       *cache.Store
	userPinned  bool
	groupPinned bool
}

func (s *sweepingStorage) UpdateUser(u *hawk.User) error {
	s.clock.Advance(time.Hour)
	s.cache.Sweep()
	_, err := s.cache.FindUserByUUID(u.UUID)
	s.userPinned = err == nil
	return s.Combined.UpdateUser(u)
}

func (s *sweepingStorage) UpdateGroup(g *hawk.Group) error {
	s.clock.Advance(time.Hour)
	s.cache.Sweep()
	_, err := s.cache.FindGroupByUUID(g.UUID)
	s.groupPinned = err == nil
	return s.Combined.UpdateGroup(g)
}

func TestChatService_UpdatesHoldLeases(t *testing.T) {
	clock := testutil.FixedClock()
	c := cache.New(time.Minute, time.Hour, nil, clock)
	hard := jsonstore.New(filepath.Join(t.TempDir(), "hawk.json"), nil, clock, testutil.NewPrefixedIDGenerator("admin"))
	combined := storage.NewCombined(hard, c, nil)
	if err := combined.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(combined.Close)

	st := &sweepingStorage{Combined: combined, clock: clock, cache: c}
	svc := hawk.NewChatService(st, nil, clock, testutil.NewStubIDGenerator())
	u, err := svc.RegisterUser("a", "pw", "A", hawk.SexNotSpecified, time.Time{})
	if err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}
	g, err := svc.CreateGroup("team")
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	if _, err := svc.UpdateProfile(u.UUID, "Anna", hawk.SexFemale, time.Time{}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if !st.userPinned {
		t.Error("user was evicted while UpdateProfile held it")
	}
	st.userPinned = false
	if err := svc.ChangePassword(u.UUID, "new"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if !st.userPinned {
		t.Error("user was evicted while ChangePassword held it")
	}
	if err := svc.RenameGroup(g.UUID, "crew"); err != nil {
		t.Fatalf("RenameGroup() error = %v", err)
	}
	if !st.groupPinned {
		t.Error("group was evicted while RenameGroup held it")
	}

	// The leases are gone once the operations return.
	clock.Advance(time.Hour)
	c.Sweep()
	if got := c.Stats(); got.Users != 0 || got.Groups != 0 {
		t.Errorf("Stats() after release and lifetime = %+v, want no users or groups", got)
	}
	if _, err := svc.Authenticate("a", "new"); err != nil {
		t.Errorf("Authenticate() after updates error = %v", err)
	}
}
