// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		envSet   bool
		want     string
	}{
		{name: "environment variable set", envValue: "from-env", envSet: true, want: "from-env"},
		{name: "environment variable not set", want: "default"},
		{name: "environment variable empty string", envValue: "", envSet: true, want: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv("TEST_LP_STRING", tt.envValue)
			}
			assert.Equal(t, tt.want, ParseString("TEST_LP_STRING", "default"))
		})
	}
}

func TestParseString_SensitiveKey(t *testing.T) {
	t.Setenv("TEST_LP_PASSWORD", "secret123")
	assert.Equal(t, "secret123", ParseString("TEST_LP_PASSWORD", "default"))
	assert.True(t, isSensitiveKey("LIONPLAYER_REDIS_PASSWORD"))
	assert.False(t, isSensitiveKey("LIONPLAYER_REDIS_ADDR"))
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{name: "valid", value: "42", want: 42},
		{name: "negative", value: "-3", want: -3},
		{name: "invalid falls back", value: "forty", want: 7},
		{name: "empty falls back", value: "", want: 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_LP_INT", tt.value)
			assert.Equal(t, tt.want, ParseInt("TEST_LP_INT", 7))
		})
	}
}

func TestParseInt64(t *testing.T) {
	t.Setenv("TEST_LP_INT64", "12000000000")
	assert.Equal(t, int64(12_000_000_000), ParseInt64("TEST_LP_INT64", 1))

	t.Setenv("TEST_LP_INT64", "1.5")
	assert.Equal(t, int64(1), ParseInt64("TEST_LP_INT64", 1))
}

func TestParseFloat(t *testing.T) {
	t.Setenv("TEST_LP_FLOAT", "2.5")
	assert.Equal(t, 2.5, ParseFloat("TEST_LP_FLOAT", 1))

	t.Setenv("TEST_LP_FLOAT", "abc")
	assert.Equal(t, 1.0, ParseFloat("TEST_LP_FLOAT", 1))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "seconds", value: "5s", want: 5 * time.Second},
		{name: "milliseconds", value: "250ms", want: 250 * time.Millisecond},
		{name: "bare number is invalid", value: "5", want: time.Minute},
		{name: "garbage", value: "soon", want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_LP_DURATION", tt.value)
			assert.Equal(t, tt.want, ParseDuration("TEST_LP_DURATION", time.Minute))
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_LP_BOOL", tt.value)
			assert.Equal(t, tt.want, ParseBool("TEST_LP_BOOL", tt.def))
		})
	}
}
