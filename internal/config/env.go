package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ApplyEnv overrides cfg with the HAWK_* environment variables that are set.
// Unset variables leave the file values in place.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Duration is a time.Duration written as a Go duration string ("15m") in
// TOML and environment variables.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}
