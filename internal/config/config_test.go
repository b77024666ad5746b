// Copyright (C) 2026 The queryexec Authors.
// All rights reserved. This file is part of queryexec.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMissingFileKeepsDefaults(t *testing.T) {
	Keys = ProgramConfig{DefaultPageSize: 100}
	require.NoError(t, Init(filepath.Join(t.TempDir(), "does-not-exist.json")))
	assert.Equal(t, 100, Keys.DefaultPageSize)
}

func TestInitMergesFileOverDefaults(t *testing.T) {
	Keys = ProgramConfig{DefaultPageSize: 100, MaxGroupCount: 0}
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"defaultPageSize": 25, "maxGroupCount": 10}`), 0o644))

	require.NoError(t, Init(path))
	assert.Equal(t, 25, Keys.DefaultPageSize)
	assert.Equal(t, 10, Keys.MaxGroupCount)
}

func TestInitRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"notAKey": 1}`), 0o644))
	assert.Error(t, Init(path))
}
