package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	// --- Arrange ---
	var stdout, stderr bytes.Buffer

	// --- Act ---
	code := run(context.Background(), []string{"--help"}, &stdout, &stderr)

	// --- Assert ---
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "prime")
	assert.Contains(t, stdout.String(), "clean")
}

func TestRun_ManifestErrorExitsWithTwo(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	invalidHCL := `
		part "a" {
			plugin = "nil"
		// Missing closing brace here
	`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapforge.hcl"), []byte(invalidHCL), 0o600))
	var stdout, stderr bytes.Buffer

	// --- Act ---
	code := run(context.Background(), []string{"prime", "-d", dir}, &stdout, &stderr)

	// --- Assert ---
	assert.Equal(t, 2, code)
	assert.NotEmpty(t, stderr.String())
}

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()
	manifest := `
project "p" {}
part "a" {
  plugin = "nil"
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "snapforge.hcl"), []byte(manifest), 0o600))
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"prime", "-d", dir, "--log-level", "error"}, &stdout, &stderr)

	assert.Equal(t, 0, code, stderr.String())
}
