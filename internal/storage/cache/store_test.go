package cache

import (
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"hawk-go/internal/hawk"
	"hawk-go/internal/testutil"
)

const testLifetime = time.Minute

// newTestCache returns an open cache whose sweeper effectively never ticks,
// so tests drive eviction through Sweep.
func newTestCache(t *testing.T) (*Store, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	s := New(testLifetime, time.Hour, nil, clock)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s, clock
}

func TestLifecycle(t *testing.T) {
	s := New(0, 0, nil, nil)
	if s.lifetime != DefaultLifetime || s.interval != DefaultSweepInterval {
		t.Errorf("defaults = %v/%v, want %v/%v", s.lifetime, s.interval, DefaultLifetime, DefaultSweepInterval)
	}
	if s.IsOpen() {
		t.Fatal("IsOpen() = true before Open()")
	}
	if err := s.AddUser(testutil.NewUser("a", "a")); !errors.Is(err, hawk.ErrNotOpen) {
		t.Errorf("AddUser() on closed cache error = %v, want %v", err, hawk.ErrNotOpen)
	}
	s.Close()

	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if !s.IsOpen() {
		t.Fatal("IsOpen() = false after Open()")
	}
	if err := s.AddUser(testutil.NewUser("a", "a")); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	s.Close()
	if s.IsOpen() {
		t.Error("IsOpen() = true after Close()")
	}
	if got := s.Stats(); got != (Stats{}) {
		t.Errorf("Stats() after Close() = %+v, want empty", got)
	}
}

func TestUsers(t *testing.T) {
	s, _ := newTestCache(t)
	u := testutil.NewUser("a", "alice")
	if err := s.AddUser(u); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if err := s.AddUser(u); !errors.Is(err, hawk.ErrUserAlreadyExists) {
		t.Errorf("AddUser(duplicate) error = %v, want %v", err, hawk.ErrUserAlreadyExists)
	}

	first, err := s.FindUserByUUID("a")
	if err != nil {
		t.Fatalf("FindUserByUUID() error = %v", err)
	}
	if first == u {
		t.Error("cache stored the caller's pointer")
	}
	second, err := s.FindUserByAuthentication("alice", u.PasswordHash)
	if err != nil {
		t.Fatalf("FindUserByAuthentication() error = %v", err)
	}
	if first != second {
		t.Error("lookups returned different records for the same entry")
	}

	if _, err := s.FindUserByAuthentication("alice", hawk.HashPassword("wrong")); !errors.Is(err, hawk.ErrUserPasswordIncorrect) {
		t.Errorf("FindUserByAuthentication(wrong) error = %v, want %v", err, hawk.ErrUserPasswordIncorrect)
	}
	if _, err := s.FindUserByAuthentication("bob", u.PasswordHash); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("FindUserByAuthentication(miss) error = %v, want %v", err, hawk.ErrUserNotExists)
	}

	upd := u.Clone()
	upd.Name = "Alice"
	upd.RegistrationDate = time.Time{}
	if err := s.UpdateUser(upd); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}
	got, _ := s.FindUserByUUID("a")
	if got.Name != "Alice" || !got.RegistrationDate.Equal(u.RegistrationDate) {
		t.Errorf("after UpdateUser() = %+v", got)
	}
	if err := s.UpdateUser(testutil.NewUser("b", "b")); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("UpdateUser(miss) error = %v, want %v", err, hawk.ErrUserNotExists)
	}

	if err := s.RemoveUser("a"); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	if _, err := s.FindUserByUUID("a"); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("FindUserByUUID(removed) error = %v, want %v", err, hawk.ErrUserNotExists)
	}
	if err := s.RemoveUser("a"); err != nil {
		t.Errorf("RemoveUser(again) error = %v", err)
	}
}

func TestGroupsAndMessages(t *testing.T) {
	s, _ := newTestCache(t)
	if err := s.AddGroup(testutil.NewGroup("g")); err != nil {
		t.Fatalf("AddGroup() error = %v", err)
	}
	if err := s.AddGroup(testutil.NewGroup("g")); !errors.Is(err, hawk.ErrGroupAlreadyExists) {
		t.Errorf("AddGroup(duplicate) error = %v, want %v", err, hawk.ErrGroupAlreadyExists)
	}
	if err := s.SetGroupUsers("g", []string{"a"}); err != nil {
		t.Fatalf("SetGroupUsers() error = %v", err)
	}
	if err := s.RemoveGroup("g"); err != nil {
		t.Fatalf("RemoveGroup() error = %v", err)
	}
	if _, err := s.FindGroupByUUID("g"); !errors.Is(err, hawk.ErrGroupNotExists) {
		t.Errorf("FindGroupByUUID(removed) error = %v, want %v", err, hawk.ErrGroupNotExists)
	}
	if _, err := s.GetGroupUserList("g"); !errors.Is(err, hawk.ErrGroupUserRelationNotExists) {
		t.Errorf("GetGroupUserList(removed) error = %v, want %v", err, hawk.ErrGroupUserRelationNotExists)
	}

	m := testutil.NewTextMessage("m", "g", 0, "hi")
	if err := s.AddMessage(m); err != nil {
		t.Errorf("AddMessage() error = %v", err)
	}
	if _, err := s.FindMessage("m"); !errors.Is(err, hawk.ErrMessageNotExists) {
		t.Errorf("FindMessage() error = %v, want %v", err, hawk.ErrMessageNotExists)
	}
	if _, err := s.FindMessages("g", hawk.TimeRange{To: testutil.BaseTime}); !errors.Is(err, hawk.ErrMessageNotExists) {
		t.Errorf("FindMessages() error = %v, want %v", err, hawk.ErrMessageNotExists)
	}
	if _, err := s.GetUserGroups("a"); !errors.Is(err, hawk.ErrUserGroupsRelationNotExists) {
		t.Errorf("GetUserGroups() error = %v, want %v", err, hawk.ErrUserGroupsRelationNotExists)
	}
}

func TestRelationsUpdateCachedSides(t *testing.T) {
	s, _ := newTestCache(t)
	list := func(id string) []string {
		t.Helper()
		got, err := s.GetUserContactList(id)
		if err != nil {
			t.Fatalf("GetUserContactList(%s) error = %v", id, err)
		}
		return slices.Sorted(slices.Values(got))
	}

	if err := s.SetUserContacts("a", nil); err != nil {
		t.Fatal(err)
	}
	if err := s.SetUserContacts("b", nil); err != nil {
		t.Fatal(err)
	}

	// c is not cached; only a's side is recorded.
	if err := s.AddUserContact("a", "c"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetUserContactList("c"); !errors.Is(err, hawk.ErrUserContactRelationNotExists) {
		t.Errorf("GetUserContactList(c) error = %v, want %v", err, hawk.ErrUserContactRelationNotExists)
	}

	if err := s.SetUserContacts("a", []string{"b", "c"}); err != nil {
		t.Fatal(err)
	}
	if got, want := list("a"), []string{"b", "c"}; !slices.Equal(got, want) {
		t.Errorf("contacts(a) = %v, want %v", got, want)
	}
	if got, want := list("b"), []string{"a"}; !slices.Equal(got, want) {
		t.Errorf("contacts(b) = %v, want %v", got, want)
	}

	if err := s.SetUserContacts("a", []string{"c"}); err != nil {
		t.Fatal(err)
	}
	if got := list("b"); len(got) != 0 {
		t.Errorf("contacts(b) = %v, want none", got)
	}

	if err := s.RemoveUser("c"); err != nil {
		t.Fatal(err)
	}
	if got := list("a"); len(got) != 0 {
		t.Errorf("contacts(a) after RemoveUser(c) = %v, want none", got)
	}
}

func TestSweepEvictsIdleEntries(t *testing.T) {
	s, clock := newTestCache(t)
	if err := s.AddUser(testutil.NewUser("a", "a")); err != nil {
		t.Fatal(err)
	}
	if err := s.SetGroupUsers("g", []string{"a"}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(testLifetime - time.Second)
	if n := s.Sweep(); n != 0 {
		t.Fatalf("Sweep() before lifetime evicted %d entries", n)
	}

	// A read refreshes the access time.
	if _, err := s.FindUserByUUID("a"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)
	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep() evicted %d entries, want 1 (the member list)", n)
	}
	if got := s.Stats(); got.Users != 1 || got.GroupUsers != 0 {
		t.Errorf("Stats() = %+v", got)
	}

	clock.Advance(testLifetime)
	s.Sweep()
	if _, err := s.FindUserByUUID("a"); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("FindUserByUUID() after eviction error = %v, want %v", err, hawk.ErrUserNotExists)
	}
}

func TestLeasePinsEntry(t *testing.T) {
	s, clock := newTestCache(t)
	if err := s.AddGroup(testutil.NewGroup("g")); err != nil {
		t.Fatal(err)
	}

	g, release, err := s.AcquireGroup("g")
	if err != nil {
		t.Fatalf("AcquireGroup() error = %v", err)
	}

	clock.Advance(10 * testLifetime)
	s.Sweep()
	again, err := s.FindGroupByUUID("g")
	if err != nil {
		t.Fatalf("leased group was evicted: %v", err)
	}
	if again != g {
		t.Error("FindGroupByUUID() returned a different record while leased")
	}

	release()
	release()
	clock.Advance(testLifetime / 2)
	s.Sweep()
	if _, err := s.FindGroupByUUID("g"); err != nil {
		t.Fatalf("group evicted before lifetime after release: %v", err)
	}

	clock.Advance(testLifetime)
	s.Sweep()
	if _, err := s.FindGroupByUUID("g"); !errors.Is(err, hawk.ErrGroupNotExists) {
		t.Errorf("FindGroupByUUID() after release and lifetime error = %v, want %v", err, hawk.ErrGroupNotExists)
	}

	if _, _, err := s.AcquireUser("nobody"); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("AcquireUser(miss) error = %v, want %v", err, hawk.ErrUserNotExists)
	}
}

func TestConcurrentAccess(t *testing.T) {
	clock := testutil.FixedClock()
	s := New(time.Nanosecond, time.Millisecond, nil, clock)
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := testutil.NewUser("u", "u")
			for j := 0; j < 200; j++ {
				_ = s.AddUser(u)
				if _, release, err := s.AcquireUser("u"); err == nil {
					release()
				}
				_ = s.AddUserContact("u", "v")
				_, _ = s.GetUserContactList("u")
				if i%2 == 0 {
					clock.Advance(time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()
}
