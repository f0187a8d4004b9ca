package validator

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bytes is binary data serialized as an array of byte values instead of
// the base64 string encoding/json uses for []byte.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	vals := make([]uint16, len(b))
	for i, c := range b {
		vals[i] = uint16(c)
	}
	return json.Marshal(vals)
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var vals []uint16
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v > 0xff {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// FormatTime renders t in the stored layout, in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FormatOptionalTime renders the zero time as an empty string.
func FormatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return FormatTime(t)
}

// ParseTime parses a stored timestamp. An empty string yields the zero time.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
