package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, fn func() error) (stdout, stderr string, err error) {
	t.Helper()
	oldOut, oldErr := os.Stdout, os.Stderr
	defer func() {
		os.Stdout, os.Stderr = oldOut, oldErr
	}()

	outR, outW, _ := os.Pipe()
	errR, errW, _ := os.Pipe()
	os.Stdout, os.Stderr = outW, errW

	doneOut := make(chan struct{})
	var bufOut bytes.Buffer
	go func() { io.Copy(&bufOut, outR); close(doneOut) }()

	doneErr := make(chan struct{})
	var bufErr bytes.Buffer
	go func() { io.Copy(&bufErr, errR); close(doneErr) }()

	err = fn()
	outW.Close()
	errW.Close()
	<-doneOut
	<-doneErr
	stdout, stderr = bufOut.String(), bufErr.String()
	return
}

func TestHelp(t *testing.T) {
	out, _, err := captureOutput(t, func() error {
		return run([]string{"help", "serve"})
	})
	require.NoError(t, err)
	require.Contains(t, out, "serve FLAGS")
}

func TestMissingCommand(t *testing.T) {
	_, stderr, err := captureOutput(t, func() error {
		return run(nil)
	})
	require.Error(t, err)
	require.Contains(t, stderr, "COMMANDS")
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := captureOutput(t, func() error {
		return run([]string{"frobnicate"})
	})
	require.ErrorContains(t, err, "unknown command")
}

func TestServeRequiresUpstream(t *testing.T) {
	_, stderr, err := captureOutput(t, func() error {
		return run([]string{"serve"})
	})
	require.ErrorContains(t, err, "-upstream.url is required")
	require.Contains(t, stderr, "serve FLAGS")
}

func TestIntrospectRequiresUpstream(t *testing.T) {
	_, _, err := captureOutput(t, func() error {
		return run([]string{"introspect"})
	})
	require.ErrorContains(t, err, "-upstream.url is required")
}

func TestHeaderFlag(t *testing.T) {
	var h headerFlag
	require.NoError(t, h.Set("Authorization: Bearer abc"))
	require.NoError(t, h.Set("X-Env:prod"))
	require.Equal(t, "Bearer abc", h["Authorization"])
	require.Equal(t, "prod", h["X-Env"])
	require.Error(t, h.Set("no-colon"))
	require.Error(t, h.Set(": empty-name"))
}
