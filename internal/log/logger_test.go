// SPDX-License-Identifier: MIT
package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	level := GetLevel()
	t.Cleanup(func() {
		SetOutput(prev)
		SetLevel(level)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"Warn", LevelWarn, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"fatal", LevelFatal, true},
		{"verbose", LevelInfo, false},
		{"", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	Errorf("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, "[WARN]  warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestSetLevelString(t *testing.T) {
	captureOutput(t)

	require.NoError(t, SetLevelString("debug"))
	assert.Equal(t, LevelDebug, GetLevel())

	assert.Error(t, SetLevelString("loud"))
	assert.Equal(t, LevelDebug, GetLevel(), "unknown names leave the level alone")
}

func TestFatalfExits(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelFatal)

	var code int
	prevExit := exit
	exit = func(c int) { code = c }
	defer func() { exit = prevExit }()

	Fatalf("cannot open %s", "device")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "[FATAL] cannot open device")
}
