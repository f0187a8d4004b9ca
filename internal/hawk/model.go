package hawk

import (
	"bytes"
	"crypto/md5"
	"time"
)

// Sex is the stored gender of a user.
type Sex uint8

const (
	SexNotSpecified Sex = iota
	SexMale
	SexFemale
)

func (s Sex) String() string {
	switch s {
	case SexMale:
		return "male"
	case SexFemale:
		return "female"
	default:
		return "not specified"
	}
}

// ParseSex converts a CLI or config spelling into a Sex.
func ParseSex(s string) (Sex, error) {
	switch s {
	case "", "none", "not specified", "unspecified":
		return SexNotSpecified, nil
	case "male", "m":
		return SexMale, nil
	case "female", "f":
		return SexFemale, nil
	}
	return SexNotSpecified, ErrIncorrectData
}

// MessageType identifies the payload carried by a message.
type MessageType uint8

const (
	MessageEmpty MessageType = iota
	MessageText
	MessageImage
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageImage:
		return "image"
	default:
		return "empty"
	}
}

// User is a registered account. UUID and RegistrationDate never change
// after the user has been added to storage.
type User struct {
	UUID             string
	RegistrationDate time.Time
	Login            string
	PasswordHash     []byte
	Name             string
	Sex              Sex
	Birthday         time.Time // zero when unknown
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = bytes.Clone(u.PasswordHash)
	return &c
}

// Group is a named chat room. Membership is kept by storage as a relation.
type Group struct {
	UUID             string
	RegistrationDate time.Time
	Name             string
}

// Clone returns a copy of g.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// MessageData is the typed payload of a message.
type MessageData struct {
	Type  MessageType
	Bytes []byte
}

// Message belongs to exactly one group. UUID, GroupUUID and CreateTime are
// fixed at creation.
type Message struct {
	UUID       string
	GroupUUID  string
	CreateTime time.Time
	Data       MessageData
}

// SetData replaces the payload. An empty payload type is rejected.
func (m *Message) SetData(d MessageData) error {
	if d.Type == MessageEmpty {
		return ErrIncorrectData
	}
	m.Data = MessageData{Type: d.Type, Bytes: bytes.Clone(d.Bytes)}
	return nil
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	c.Data.Bytes = bytes.Clone(m.Data.Bytes)
	return &c
}

// TimeRange is an inclusive interval of time.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies within the range, bounds included.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// HashPassword returns the stored form of a plaintext password.
func HashPassword(password string) []byte {
	sum := md5.Sum([]byte(password))
	return sum[:]
}

// Admin account created when a new storage is initialized.
const (
	AdminLogin    = "Admin"
	AdminName     = "Admin"
	AdminPassword = "password"
)

// NewAdminUser builds the bootstrap administrator.
func NewAdminUser(id string, now time.Time) *User {
	return &User{
		UUID:             id,
		RegistrationDate: now,
		Login:            AdminLogin,
		PasswordHash:     HashPassword(AdminPassword),
		Name:             AdminName,
		Sex:              SexNotSpecified,
	}
}
