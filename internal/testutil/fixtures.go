package testutil

import (
	"time"

	"hawk-go/internal/hawk"
)

// BaseTime is the registration time given to fixtures.
var BaseTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// NewUser returns a user whose password is "secret-<login>".
func NewUser(id, login string) *hawk.User {
	return &hawk.User{
		UUID:             id,
		RegistrationDate: BaseTime,
		Login:            login,
		PasswordHash:     hawk.HashPassword("secret-" + login),
		Name:             login,
		Sex:              hawk.SexNotSpecified,
	}
}

// NewGroup returns a group named after its id.
func NewGroup(id string) *hawk.Group {
	return &hawk.Group{UUID: id, RegistrationDate: BaseTime, Name: "group " + id}
}

// NewTextMessage returns a text message created at BaseTime + offset.
func NewTextMessage(id, groupID string, offset time.Duration, text string) *hawk.Message {
	return &hawk.Message{
		UUID:       id,
		GroupUUID:  groupID,
		CreateTime: BaseTime.Add(offset),
		Data:       hawk.MessageData{Type: hawk.MessageText, Bytes: []byte(text)},
	}
}
