package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s := Default()
	s.Drafts = true
	s.OldestFirst = false
	s.MergeMethod = MergeSquash
	s.Repo = "acme/widgets"
	s.DebugPort = 9222

	require.NoError(t, Save(path, s))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, got, "every non-default field survives the round trip")
}

func TestSave_OmitsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := Default()
	s.WIP = true

	require.NoError(t, Save(path, s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	assert.Equal(t, map[string]any{"wip": true}, m, "only the non-default field is written")
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestLoad_DefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"skipped":true}`), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.True(t, got.Skipped)
	assert.True(t, got.Review, "omitted fields reload to documented defaults")
	assert.Equal(t, ApproveManual, got.ApproveMode)
	assert.Equal(t, 20, got.AttachTimeout)
}

func TestValidate(t *testing.T) {
	s := Default()
	s.MergeMethod = "yolo"
	assert.Error(t, s.Validate())

	s = Default()
	s.ApproveMode = "sometimes"
	assert.Error(t, s.Validate())

	assert.NoError(t, Default().Validate())
}
