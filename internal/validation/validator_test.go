package validation

import (
	"errors"
	"strings"
	"testing"
)

type settings struct {
	Name          string `validate:"nonempty"`
	CheckInterval string `validate:"required,cronspec"`
	Max           int    `validate:"gte=0"`
}

func TestValidCron(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"*/30 * * * *", true},
		{"0 9 * * 1-5", true},
		{"@hourly", true},
		{"@every 15m", true},
		{"", false},
		{"every day", false},
		{"* * * * * *", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			if got := ValidCron(tt.expr); got != tt.want {
				t.Errorf("ValidCron(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestStruct(t *testing.T) {
	v := New()

	if err := Struct(v, settings{Name: "ok", CheckInterval: "@daily"}); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	err := Struct(v, settings{Name: "  ", CheckInterval: "bogus", Max: -1})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(verr.Messages) != 3 {
		t.Errorf("expected 3 messages, got %v", verr.Messages)
	}
	if !strings.Contains(err.Error(), "cronspec") {
		t.Errorf("error should name the cronspec rule: %v", err)
	}
}

func TestStructNilValidator(t *testing.T) {
	if err := Struct(nil, settings{Name: "x", CheckInterval: "@daily"}); err != nil {
		t.Errorf("Struct(nil, valid) = %v", err)
	}
}
