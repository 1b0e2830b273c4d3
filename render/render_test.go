package render

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter(t *testing.T) {
	var buf bytes.Buffer

	r := NewWriter(&buf)
	require.NoError(t, r.Render("B 50% | 12:00"))
	require.NoError(t, r.Render(""))

	assert.Equal(t, "B 50% | 12:00\n\n", buf.String())
}

// fakeXSetRoot writes a script that appends its arguments to a log file.
func fakeXSetRoot(t *testing.T, exitCode int) (*XSetRoot, string) {
	t.Helper()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "calls")
	script := filepath.Join(dir, "xsetroot")

	content := "#!/bin/sh\necho \"$@\" >> " + logPath + "\necho 'unable to open display' >&2\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

	r := NewXSetRoot()
	r.command = script

	return r, logPath
}

func TestXSetRoot_SetsName(t *testing.T) {
	r, logPath := fakeXSetRoot(t, 0)

	require.NoError(t, r.Render("B 50%"))
	require.NoError(t, r.Render("B 50%"))
	require.NoError(t, r.Render("B 49%"))

	calls, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "-name B 50%\n-name B 49%\n", string(calls))
}

func TestXSetRoot_Failure(t *testing.T) {
	r, logPath := fakeXSetRoot(t, 1)

	err := r.Render("B 50%")
	assert.ErrorContains(t, err, "unable to open display")

	// A failed render is retried.
	assert.Error(t, r.Render("B 50%"))

	calls, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "-name B 50%\n-name B 50%\n", string(calls))
}
