package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntsToFloats(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1/3", "1.0/3.0"},
		{"3.14", "3.14"},
		{"2 + 40", "2.0 + 40.0"},
		{"1.5*2", "1.5*2.0"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, intsToFloats(tt.input), "input %q", tt.input)
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
		ok    bool
	}{
		{"addition", "2+40", "42", true},
		{"float division", "1/4", "0.25", true},
		{"integer result trimmed", "6/3", "2", true},
		{"not math", "firefox", "", false},
		{"division by zero", "1/0", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := evaluate(tt.query)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
