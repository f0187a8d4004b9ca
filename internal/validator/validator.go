// Package validator checks serialized storage records before they are
// materialized into domain types.
//
// A record is one JSON object decoded into a generic map and checked against
// the JSON schema of its kind. Each check returns nil or the hawk.Error of
// the damaged field, so a store can log exactly what is damaged and skip the
// record. When several fields are damaged the one declared first in the
// record layout is reported, not the last.
package validator

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"hawk-go/internal/hawk"

	"github.com/xeipuuv/gojsonschema"
)

// Record is a decoded JSON object. Numbers are kept as json.Number.
type Record map[string]any

// Record keys.
const (
	KeyUUID             = "UUID"
	KeyRegistrationDate = "registration_date"

	KeyUserLogin    = "login"
	KeyUserPassword = "password_hash"
	KeyUserName     = "name"
	KeyUserSex      = "sex"
	KeyUserBirthday = "birthday"

	KeyGroupName = "name"

	KeyMessageGroupUUID = "GROUP_UUID"
	KeyMessageType      = "type"
	KeyMessageData      = "data"

	KeyRelationUser     = "user_UUID"
	KeyRelationContacts = "contacts"
	KeyRelationGroup    = "group_UUID"
	KeyRelationUsers    = "users"
)

// TimeLayout is the stored timestamp format: ISO-8601 with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Decode parses one JSON object into a Record.
func Decode(raw []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return nil, hawk.ErrIncorrectData
	}
	return rec, nil
}

//go:embed schemas/*.json
var schemaFiles embed.FS

// field ties a record key to the error reported when it is damaged.
type field struct {
	key  string
	code hawk.Error
}

// recordSchema is the compiled schema of one record kind plus its fields in
// layout order.
type recordSchema struct {
	schema *gojsonschema.Schema
	fields []field
}

func mustCompile(name string, fields ...field) *recordSchema {
	data, err := schemaFiles.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("validator: reading schema %s: %v", name, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		panic(fmt.Sprintf("validator: compiling schema %s: %v", name, err))
	}
	return &recordSchema{schema: schema, fields: fields}
}

var (
	userSchema = mustCompile("user.json",
		field{KeyUUID, hawk.ErrUserUUIDCorrupted},
		field{KeyRegistrationDate, hawk.ErrUserRegistrationDateCorrupted},
		field{KeyUserLogin, hawk.ErrUserLoginCorrupted},
		field{KeyUserPassword, hawk.ErrUserPasswordHashCorrupted},
		field{KeyUserName, hawk.ErrUserNameCorrupted},
		field{KeyUserSex, hawk.ErrUserSexCorrupted},
		field{KeyUserBirthday, hawk.ErrUserBirthdayCorrupted},
	)
	groupSchema = mustCompile("group.json",
		field{KeyUUID, hawk.ErrGroupUUIDCorrupted},
		field{KeyRegistrationDate, hawk.ErrGroupRegistrationDateCorrupted},
		field{KeyGroupName, hawk.ErrGroupNameCorrupted},
	)
	messageSchema = mustCompile("message.json",
		field{KeyUUID, hawk.ErrMessageUUIDCorrupted},
		field{KeyMessageGroupUUID, hawk.ErrMessageGroupUUIDCorrupted},
		field{KeyRegistrationDate, hawk.ErrMessageRegistrationDateCorrupted},
		field{KeyMessageType, hawk.ErrMessageTypeCorrupted},
		field{KeyMessageData, hawk.ErrMessageDataCorrupted},
	)
	userContactsSchema = mustCompile("user_contacts.json",
		field{KeyRelationUser, hawk.ErrUserUUIDCorrupted},
		field{KeyRelationContacts, hawk.ErrUserContactsCorrupted},
	)
	groupUsersSchema = mustCompile("group_users.json",
		field{KeyRelationGroup, hawk.ErrGroupUUIDCorrupted},
		field{KeyRelationUsers, hawk.ErrGroupUsersCorrupted},
	)
)

// check validates rec and maps the failures to the code of the earliest
// damaged field.
func (s *recordSchema) check(rec Record) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(rec))
	if err != nil {
		return hawk.ErrIncorrectData
	}
	if result.Valid() {
		return nil
	}
	damaged := make(map[string]bool)
	for _, re := range result.Errors() {
		damaged[failedKey(re)] = true
	}
	for _, f := range s.fields {
		if damaged[f.key] {
			return f.code
		}
	}
	return hawk.ErrIncorrectData
}

// failedKey returns the top-level record key a schema error is about.
// Missing keys are reported against the object itself.
func failedKey(re gojsonschema.ResultError) string {
	if re.Type() == "required" {
		if p, ok := re.Details()["property"].(string); ok {
			return p
		}
	}
	key, _, _ := strings.Cut(re.Field(), ".")
	return key
}

// CheckUser validates a user record.
func CheckUser(rec Record) error { return userSchema.check(rec) }

// CheckGroup validates a group record. Legacy member arrays are ignored.
func CheckGroup(rec Record) error { return groupSchema.check(rec) }

// CheckMessage validates a message record.
func CheckMessage(rec Record) error { return messageSchema.check(rec) }

// CheckUserContacts validates a user-contacts relation record.
func CheckUserContacts(rec Record) error { return userContactsSchema.check(rec) }

// CheckGroupUsers validates a group-users relation record.
func CheckGroupUsers(rec Record) error { return groupUsersSchema.check(rec) }
