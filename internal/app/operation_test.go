package app

import (
	"testing"
	"time"
)

func TestNewOperation(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 250_000_000, time.UTC)

	tests := []struct {
		name    string
		command string
		args    []string
		want    string
	}{
		{name: "with args", command: "user add", args: []string{"alice"}, want: "user add alice"},
		{name: "without args", command: "backup", want: "backup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.command, tt.args, now)

			if op.ID != "20240115T103000.250Z" {
				t.Errorf("ID = %q, want %q", op.ID, "20240115T103000.250Z")
			}
			if op.Status != "success" {
				t.Errorf("Status = %q, want %q", op.Status, "success")
			}
			if got := op.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("restore", nil, time.Now())
	op.Fail()
	if op.Status != "error" {
		t.Errorf("Status = %q, want %q", op.Status, "error")
	}
}
