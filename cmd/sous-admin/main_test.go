package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintUsageListsEveryCommand(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w
	err = printUsage()
	require.NoError(t, err)

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	outStr := string(output)
	require.Contains(t, outStr, "Usage: sous-admin")
	for name := range commands() {
		require.Contains(t, outStr, name)
	}
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "exact", truncate("exact", 5))

	long := strings.Repeat("x", 80)
	got := truncate(long, 60)
	require.Len(t, got, 60)
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestConfirmActionSkipsPromptWithYes(t *testing.T) {
	require.NoError(t, confirmAction(true, "drop everything"))
}
