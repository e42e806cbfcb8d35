package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_BadFlag(t *testing.T) {
	assert.Error(t, run(context.Background(), []string{"-port", "80"}))
}

func TestRun_UnusableDatabase(t *testing.T) {
	// A directory cannot be opened as a database file.
	err := run(context.Background(), []string{"-db", t.TempDir(), "-addr", "127.0.0.1:0"})
	assert.Error(t, err)
}
