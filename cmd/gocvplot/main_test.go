package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--version"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "gocvplot version")
}

func TestRun_Error(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"plot", "--config", filepath.Join(t.TempDir(), "none.yaml")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error: ")
}
