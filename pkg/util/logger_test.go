package util

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		def      zerolog.Level
		expected zerolog.Level
	}{
		{name: "debug", input: "debug", def: zerolog.ErrorLevel, expected: zerolog.DebugLevel},
		{name: "upper case info", input: "INFO", def: zerolog.ErrorLevel, expected: zerolog.InfoLevel},
		{name: "warning alias", input: "warning", def: zerolog.ErrorLevel, expected: zerolog.WarnLevel},
		{name: "padded error", input: " error ", def: zerolog.InfoLevel, expected: zerolog.ErrorLevel},
		{name: "unknown falls back", input: "verbose", def: zerolog.InfoLevel, expected: zerolog.InfoLevel},
		{name: "empty falls back", input: "", def: zerolog.WarnLevel, expected: zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input, tt.def); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}
