package jsonstore

import (
	"encoding/json"
	"fmt"

	"hawk-go/internal/hawk"
	"hawk-go/internal/validator"
)

type userRecord struct {
	UUID             string          `json:"UUID"`
	RegistrationDate string          `json:"registration_date"`
	Login            string          `json:"login"`
	PasswordHash     validator.Bytes `json:"password_hash"`
	Name             string          `json:"name"`
	Sex              uint8           `json:"sex"`
	Birthday         string          `json:"birthday"`
}

type groupRecord struct {
	UUID             string `json:"UUID"`
	RegistrationDate string `json:"registration_date"`
	Name             string `json:"name"`
}

type messageRecord struct {
	UUID             string          `json:"UUID"`
	GroupUUID        string          `json:"GROUP_UUID"`
	RegistrationDate string          `json:"registration_date"`
	Type             uint8           `json:"type"`
	Data             validator.Bytes `json:"data"`
}

type contactsRecord struct {
	User     string   `json:"user_UUID"`
	Contacts []string `json:"contacts"`
}

type membersRecord struct {
	Group string   `json:"group_UUID"`
	Users []string `json:"users"`
}

// materialize validates raw with check and then decodes it into dst.
// A record that passes validation but still fails to decode is reported
// with fallback.
func materialize(raw json.RawMessage, check func(validator.Record) error, fallback error, dst any) error {
	rec, err := validator.Decode(raw)
	if err != nil {
		return err
	}
	if err := check(rec); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fallback
	}
	return nil
}

func decodeUser(raw json.RawMessage) (*hawk.User, error) {
	var r userRecord
	if err := materialize(raw, validator.CheckUser, hawk.ErrUserSexCorrupted, &r); err != nil {
		return nil, err
	}
	reg, err := validator.ParseTime(r.RegistrationDate)
	if err != nil {
		return nil, hawk.ErrUserRegistrationDateCorrupted
	}
	birthday, err := validator.ParseTime(r.Birthday)
	if err != nil {
		return nil, hawk.ErrUserBirthdayCorrupted
	}
	return &hawk.User{
		UUID:             r.UUID,
		RegistrationDate: reg,
		Login:            r.Login,
		PasswordHash:     []byte(r.PasswordHash),
		Name:             r.Name,
		Sex:              hawk.Sex(r.Sex),
		Birthday:         birthday,
	}, nil
}

func encodeUser(u *hawk.User) (json.RawMessage, error) {
	switch {
	case u.UUID == "":
		return nil, hawk.ErrUserUUIDCorrupted
	case u.Login == "":
		return nil, hawk.ErrUserLoginCorrupted
	}
	return encode(userRecord{
		UUID:             u.UUID,
		RegistrationDate: validator.FormatTime(u.RegistrationDate),
		Login:            u.Login,
		PasswordHash:     validator.Bytes(u.PasswordHash),
		Name:             u.Name,
		Sex:              uint8(u.Sex),
		Birthday:         validator.FormatOptionalTime(u.Birthday),
	}, validator.CheckUser)
}

func decodeGroup(raw json.RawMessage) (*hawk.Group, error) {
	var r groupRecord
	if err := materialize(raw, validator.CheckGroup, hawk.ErrGroupNameCorrupted, &r); err != nil {
		return nil, err
	}
	reg, err := validator.ParseTime(r.RegistrationDate)
	if err != nil {
		return nil, hawk.ErrGroupRegistrationDateCorrupted
	}
	return &hawk.Group{UUID: r.UUID, RegistrationDate: reg, Name: r.Name}, nil
}

func encodeGroup(g *hawk.Group) (json.RawMessage, error) {
	if g.UUID == "" {
		return nil, hawk.ErrGroupUUIDCorrupted
	}
	return encode(groupRecord{
		UUID:             g.UUID,
		RegistrationDate: validator.FormatTime(g.RegistrationDate),
		Name:             g.Name,
	}, validator.CheckGroup)
}

func decodeMessage(raw json.RawMessage) (*hawk.Message, error) {
	var r messageRecord
	if err := materialize(raw, validator.CheckMessage, hawk.ErrMessageTypeCorrupted, &r); err != nil {
		return nil, err
	}
	created, err := validator.ParseTime(r.RegistrationDate)
	if err != nil {
		return nil, hawk.ErrMessageRegistrationDateCorrupted
	}
	return &hawk.Message{
		UUID:       r.UUID,
		GroupUUID:  r.GroupUUID,
		CreateTime: created,
		Data:       hawk.MessageData{Type: hawk.MessageType(r.Type), Bytes: []byte(r.Data)},
	}, nil
}

func encodeMessage(m *hawk.Message) (json.RawMessage, error) {
	switch {
	case m.UUID == "":
		return nil, hawk.ErrMessageUUIDCorrupted
	case m.GroupUUID == "":
		return nil, hawk.ErrMessageGroupUUIDCorrupted
	case m.Data.Type == hawk.MessageEmpty:
		return nil, hawk.ErrIncorrectData
	}
	return encode(messageRecord{
		UUID:             m.UUID,
		GroupUUID:        m.GroupUUID,
		RegistrationDate: validator.FormatTime(m.CreateTime),
		Type:             uint8(m.Data.Type),
		Data:             validator.Bytes(m.Data.Bytes),
	}, validator.CheckMessage)
}

func decodeContacts(raw json.RawMessage) (*contactsRecord, error) {
	var r contactsRecord
	if err := materialize(raw, validator.CheckUserContacts, hawk.ErrUserContactsCorrupted, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func decodeMembers(raw json.RawMessage) (*membersRecord, error) {
	var r membersRecord
	if err := materialize(raw, validator.CheckGroupUsers, hawk.ErrGroupUsersCorrupted, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func encodeContacts(r *contactsRecord) (json.RawMessage, error) {
	if r.Contacts == nil {
		r.Contacts = []string{}
	}
	return encode(r, validator.CheckUserContacts)
}

func encodeMembers(r *membersRecord) (json.RawMessage, error) {
	if r.Users == nil {
		r.Users = []string{}
	}
	return encode(r, validator.CheckGroupUsers)
}

// encode serializes v and runs the matching check over the result so that
// nothing is written that a later load would reject.
func encode(v any, check func(validator.Record) error) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	rec, err := validator.Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := check(rec); err != nil {
		return nil, err
	}
	return raw, nil
}
