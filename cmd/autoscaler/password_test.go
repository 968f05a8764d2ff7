package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	hashPasswordCmd.SetOut(&out)
	hashPasswordCmd.SetIn(strings.NewReader("Sup3r-secret\n"))

	require.NoError(t, hashPasswordCmd.RunE(hashPasswordCmd, nil))
	assert.True(t, strings.HasPrefix(out.String(), "$2a$"))

	require.Error(t, hashPasswordCmd.RunE(hashPasswordCmd, []string{""}))
	require.ErrorContains(t, hashPasswordCmd.RunE(hashPasswordCmd, []string{"short"}), "at least 8")
}
