package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hawk-go/internal/hawk"
	"hawk-go/internal/testutil"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	return New(path, nil, testutil.FixedClock(), testutil.NewPrefixedIDGenerator("admin"))
}

func openTestStore(t *testing.T) hawk.Storage {
	t.Helper()
	s := newTestStore(t, filepath.Join(t.TempDir(), "hawk.json"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStorageSuite(t *testing.T) {
	testutil.RunStorageSuite(t, openTestStore)
}

func TestOpen_BootstrapsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hawk.json")
	s := newTestStore(t, path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default document not written: %v", err)
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		t.Fatalf("default document is not JSON: %v", err)
	}
	for _, key := range []string{"VERSION", "USERS", "GROUPS", "MESSAGES", "RELATIONS"} {
		if _, ok := top[key]; !ok {
			t.Errorf("default document lacks %s", key)
		}
	}
	if got := string(top["VERSION"]); got != `"0.0.0.1"` {
		t.Errorf("VERSION = %s, want %q", got, FormatVersion)
	}

	admin, err := s.FindUserByUUID("admin-1")
	if err != nil {
		t.Fatalf("FindUserByUUID(admin-1) error = %v", err)
	}
	if admin.Login != hawk.AdminLogin {
		t.Errorf("admin.Login = %q, want %q", admin.Login, hawk.AdminLogin)
	}
	if !admin.RegistrationDate.Equal(testutil.FixedClock().Now()) {
		t.Errorf("admin.RegistrationDate = %v", admin.RegistrationDate)
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hawk.json")
	s := newTestStore(t, path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	testutil.MustAddUsers(t, s, testutil.NewUser("a", "a"), testutil.NewUser("b", "b"))
	testutil.MustAddGroups(t, s, testutil.NewGroup("g"))
	if err := s.AddUserContact("a", "b"); err != nil {
		t.Fatalf("AddUserContact() error = %v", err)
	}
	if err := s.AddGroupUser("g", "a"); err != nil {
		t.Fatalf("AddGroupUser() error = %v", err)
	}
	if err := s.AddMessage(testutil.NewTextMessage("m", "g", 0, "hello")); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	s.Close()

	reopened := newTestStore(t, path)
	if err := reopened.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.FindUserByAuthentication("b", hawk.HashPassword("secret-b")); err != nil {
		t.Errorf("FindUserByAuthentication() after reopen error = %v", err)
	}
	got, err := reopened.GetUserContactList("b")
	if err != nil || len(got) != 1 || got[0] != "a" {
		t.Errorf("GetUserContactList(b) = %v, %v; want [a]", got, err)
	}
	groups, err := reopened.GetUserGroups("a")
	if err != nil || len(groups) != 1 || groups[0] != "g" {
		t.Errorf("GetUserGroups(a) = %v, %v; want [g]", groups, err)
	}
	m, err := reopened.FindMessage("m")
	if err != nil {
		t.Fatalf("FindMessage() error = %v", err)
	}
	if string(m.Data.Bytes) != "hello" {
		t.Errorf("message data = %q, want %q", m.Data.Bytes, "hello")
	}
	// Bootstrap runs only for a missing file.
	if _, err := reopened.FindUserByUUID("admin-2"); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("a second administrator was created: %v", err)
	}
}

func TestOpen_Failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    hawk.Error
	}{
		{"not json", "{not json", hawk.ErrReadFileFail},
		{"top level array", "[]", hawk.ErrReadFileFail},
		{"missing version", `{"USERS":[],"GROUPS":[],"MESSAGES":[]}`, hawk.ErrIncorrectVersion},
		{"null version", `{"VERSION":null,"USERS":[],"GROUPS":[],"MESSAGES":[]}`, hawk.ErrIncorrectVersion},
		{"numeric version", `{"VERSION":1,"USERS":[],"GROUPS":[],"MESSAGES":[]}`, hawk.ErrIncorrectVersion},
		{"missing section", `{"VERSION":"0.0.0.1","USERS":[],"GROUPS":[]}`, hawk.ErrIncorrectData},
		{"section not array", `{"VERSION":"0.0.0.1","USERS":{},"GROUPS":[],"MESSAGES":[]}`, hawk.ErrIncorrectData},
		{"corrupted user", `{"VERSION":"0.0.0.1","USERS":[{"UUID":5}],"GROUPS":[],"MESSAGES":[]}`, hawk.ErrUserUUIDCorrupted},
		{"corrupted relation", `{"VERSION":"0.0.0.1","USERS":[],"GROUPS":[],"MESSAGES":[],"RELATIONS":{"GROUP_USERS":[{"group_UUID":"g","users":[1]}]}}`, hawk.ErrGroupUsersCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hawk.json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			s := newTestStore(t, path)
			err := s.Open()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Open() error = %v, want %v", err, tt.want)
			}
			if s.IsOpen() {
				t.Error("IsOpen() = true after failed Open()")
			}
		})
	}
}

func TestOpen_Directory(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	if err := s.Open(); !errors.Is(err, hawk.ErrObjectNotFile) {
		t.Fatalf("Open() error = %v, want %v", err, hawk.ErrObjectNotFile)
	}
}

func TestOpen_WithoutRelations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hawk.json")
	content := `{"VERSION":"0.0.0.1","USERS":[],"GROUPS":[{"UUID":"g","registration_date":"2024-01-15T10:30:00.000Z","name":"old"}],"MESSAGES":[]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	s := newTestStore(t, path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := s.GetGroupUserList("g"); !errors.Is(err, hawk.ErrGroupUserRelationNotExists) {
		t.Errorf("GetGroupUserList() error = %v, want %v", err, hawk.ErrGroupUserRelationNotExists)
	}
}

func TestDocumentEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hawk.json")
	s := newTestStore(t, path)
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	testutil.MustAddGroups(t, s, testutil.NewGroup("g"))
	if err := s.AddMessage(testutil.NewTextMessage("m", "g", 0, "AB")); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	defer s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	compact := new(bytes.Buffer)
	if err := json.Compact(compact, data); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"data":[65,66]`,
		`"registration_date":"2024-01-15T10:30:00.000Z"`,
		`"GROUP_UUID":"g"`,
		`"GROUP_USERS":[{"group_UUID":"g","users":[]}]`,
	} {
		if !strings.Contains(compact.String(), want) {
			t.Errorf("document lacks %s:\n%s", want, compact)
		}
	}
}

func TestCorruptedRecordIsSkipped(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "hawk.json"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	testutil.MustAddUsers(t, s, testutil.NewUser("a", "a"))

	s.mu.Lock()
	s.doc.Users = append([]json.RawMessage{json.RawMessage(`{"UUID":"a","login":7}`)}, s.doc.Users...)
	s.mu.Unlock()

	u, err := s.FindUserByUUID("a")
	if err != nil {
		t.Fatalf("FindUserByUUID() error = %v", err)
	}
	if u.Login != "a" {
		t.Errorf("Login = %q, want %q", u.Login, "a")
	}
}

func TestWriteSnapshot(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "hawk.json"))
	var buf bytes.Buffer
	if err := s.WriteSnapshot(&buf); !errors.Is(err, hawk.ErrNotOpen) {
		t.Fatalf("WriteSnapshot() on closed store error = %v, want %v", err, hawk.ErrNotOpen)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	testutil.MustAddUsers(t, s, testutil.NewUser("a", "a"))

	if err := s.WriteSnapshot(&buf); err != nil {
		t.Fatalf("WriteSnapshot() error = %v", err)
	}
	doc, err := parseDocument(buf.Bytes())
	if err != nil {
		t.Fatalf("snapshot does not parse: %v", err)
	}
	if len(doc.Users) != 2 {
		t.Errorf("snapshot users = %d, want 2", len(doc.Users))
	}
}

func TestCompensationRestoresUserOnFailure(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "hawk.json"))
	if err := s.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	// A stray contact list for a user that does not exist yet makes the
	// second step of AddUser fail.
	s.mu.Lock()
	if err := s.createContacts("a"); err != nil {
		t.Fatal(err)
	}
	s.mu.Unlock()

	err := s.AddUser(testutil.NewUser("a", "a"))
	if !errors.Is(err, hawk.ErrUserContactRelationAlreadyExists) {
		t.Fatalf("AddUser() error = %v, want %v", err, hawk.ErrUserContactRelationAlreadyExists)
	}
	if _, err := s.FindUserByUUID("a"); !errors.Is(err, hawk.ErrUserNotExists) {
		t.Errorf("user record survived the failed AddUser: %v", err)
	}
}
