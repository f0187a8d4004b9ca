package jsonstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hawk-go/internal/hawk"
	"hawk-go/internal/validator"
)

// FormatVersion is written into every new document.
const FormatVersion = "0.0.0.1"

// document mirrors the file on disk. Records are kept serialized and are
// validated each time they are materialized.
type document struct {
	Version   string            `json:"VERSION"`
	Users     []json.RawMessage `json:"USERS"`
	Groups    []json.RawMessage `json:"GROUPS"`
	Messages  []json.RawMessage `json:"MESSAGES"`
	Relations relations         `json:"RELATIONS"`
}

type relations struct {
	UserContacts []json.RawMessage `json:"USER_CONTACTS"`
	GroupUsers   []json.RawMessage `json:"GROUP_USERS"`
}

// newDefaultDocument builds the document of a fresh storage: one
// administrator with an empty contact list and nothing else.
func newDefaultDocument(admin *hawk.User) (*document, error) {
	doc := &document{
		Version:  FormatVersion,
		Users:    []json.RawMessage{},
		Groups:   []json.RawMessage{},
		Messages: []json.RawMessage{},
		Relations: relations{
			UserContacts: []json.RawMessage{},
			GroupUsers:   []json.RawMessage{},
		},
	}
	rawAdmin, err := encodeUser(admin)
	if err != nil {
		return nil, fmt.Errorf("encoding admin user: %w", err)
	}
	rawContacts, err := encodeContacts(&contactsRecord{User: admin.UUID})
	if err != nil {
		return nil, fmt.Errorf("encoding admin contacts: %w", err)
	}
	doc.Users = append(doc.Users, rawAdmin)
	doc.Relations.UserContacts = append(doc.Relations.UserContacts, rawContacts)
	return doc, nil
}

// parseDocument decodes and structurally checks a document read from disk.
// Any damaged record rejects the whole document.
func parseDocument(data []byte) (*document, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, hawk.ErrReadFileFail
	}

	var version string
	if raw, ok := top["VERSION"]; !ok || isNull(raw) || json.Unmarshal(raw, &version) != nil {
		return nil, hawk.ErrIncorrectVersion
	}

	doc := &document{Version: version}
	sections := []struct {
		key   string
		dst   *[]json.RawMessage
		check func(validator.Record) error
	}{
		{"USERS", &doc.Users, validator.CheckUser},
		{"GROUPS", &doc.Groups, validator.CheckGroup},
		{"MESSAGES", &doc.Messages, validator.CheckMessage},
	}
	for _, sec := range sections {
		if err := parseSection(top[sec.key], sec.key, sec.dst, sec.check); err != nil {
			return nil, err
		}
	}

	// Documents written before relations existed have no RELATIONS section.
	if raw, ok := top["RELATIONS"]; ok && !isNull(raw) {
		var rel map[string]json.RawMessage
		if err := json.Unmarshal(raw, &rel); err != nil {
			return nil, fmt.Errorf("RELATIONS: %w", hawk.ErrIncorrectData)
		}
		if err := parseOptionalSection(rel["USER_CONTACTS"], "USER_CONTACTS", &doc.Relations.UserContacts, validator.CheckUserContacts); err != nil {
			return nil, err
		}
		if err := parseOptionalSection(rel["GROUP_USERS"], "GROUP_USERS", &doc.Relations.GroupUsers, validator.CheckGroupUsers); err != nil {
			return nil, err
		}
	}
	if doc.Relations.UserContacts == nil {
		doc.Relations.UserContacts = []json.RawMessage{}
	}
	if doc.Relations.GroupUsers == nil {
		doc.Relations.GroupUsers = []json.RawMessage{}
	}
	return doc, nil
}

func parseSection(raw json.RawMessage, name string, dst *[]json.RawMessage, check func(validator.Record) error) error {
	if raw == nil || isNull(raw) {
		return fmt.Errorf("%s: %w", name, hawk.ErrIncorrectData)
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("%s: %w", name, hawk.ErrIncorrectData)
	}
	for i, r := range records {
		rec, err := validator.Decode(r)
		if err != nil {
			return fmt.Errorf("%s[%d]: %w", name, i, hawk.ErrIncorrectData)
		}
		if err := check(rec); err != nil {
			return fmt.Errorf("%s[%d]: %w: %w", name, i, hawk.ErrIncorrectData, err)
		}
	}
	*dst = records
	return nil
}

func parseOptionalSection(raw json.RawMessage, name string, dst *[]json.RawMessage, check func(validator.Record) error) error {
	if raw == nil {
		*dst = []json.RawMessage{}
		return nil
	}
	return parseSection(raw, name, dst, check)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// readDocument loads the document at path.
func readDocument(path string) (*document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w: %w", path, hawk.ErrOpenFileFail, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w: %w", path, hawk.ErrReadFileFail, err)
	}
	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}

// writeDocument stores doc at path through a temp file and rename so a
// crash never leaves a half written document behind.
func writeDocument(path string, doc *document) error {
	data, err := marshalDocument(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w: %w", hawk.ErrWriteFileFail, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".hawk-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w: %w", hawk.ErrWriteFileFail, err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing document: %w: %w", hawk.ErrWriteFileFail, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w: %w", hawk.ErrWriteFileFail, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w: %w", path, hawk.ErrWriteFileFail, err)
	}

	success = true
	return nil
}

func marshalDocument(doc *document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w: %w", hawk.ErrWriteFileFail, err)
	}
	return append(data, '\n'), nil
}
