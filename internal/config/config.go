// Package config holds the process-wide settings: loaded once at startup
// from file, environment and flags (flags highest), mutated interactively,
// and optionally written back with default-valued fields omitted.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type MergeMethod string

const (
	MergeNone   MergeMethod = "none"
	MergeMerge  MergeMethod = "merge"
	MergeSquash MergeMethod = "squash"
	MergeRebase MergeMethod = "rebase"
)

func (m MergeMethod) Valid() bool {
	switch m {
	case MergeNone, MergeMerge, MergeSquash, MergeRebase:
		return true
	}
	return false
}

type ApproveMode string

const (
	ApproveManual ApproveMode = "manual"
	ApproveAuto   ApproveMode = "auto"
	ApproveAlways ApproveMode = "always"
)

func (m ApproveMode) Valid() bool {
	switch m {
	case ApproveManual, ApproveAuto, ApproveAlways:
		return true
	}
	return false
}

// Settings is the full flag surface. Keys double as flag names, JSON
// settings-file keys and RUNDOWN_* environment suffixes.
type Settings struct {
	Review      bool `mapstructure:"review" json:"review"`
	Action      bool `mapstructure:"action" json:"action"`
	Drafts      bool `mapstructure:"drafts" json:"drafts"`
	WIP         bool `mapstructure:"wip" json:"wip"`
	Skipped     bool `mapstructure:"skipped" json:"skipped"`
	OldestFirst bool `mapstructure:"oldest-first" json:"oldest-first"`

	MergeMethod MergeMethod `mapstructure:"merge-method" json:"merge-method"`
	ApproveMode ApproveMode `mapstructure:"approve-mode" json:"approve-mode"`

	Repo           string `mapstructure:"repo" json:"repo"`
	Project        string `mapstructure:"project" json:"project"`
	MaintainerTeam string `mapstructure:"maintainer-team" json:"maintainer-team"`
	Bot            string `mapstructure:"bot" json:"bot"`

	Browser       string `mapstructure:"browser" json:"browser"`
	UserDataDir   string `mapstructure:"user-data-dir" json:"user-data-dir"`
	Profile       string `mapstructure:"profile" json:"profile"`
	DebugPort     int    `mapstructure:"debug-port" json:"debug-port"`
	AttachTimeout int    `mapstructure:"attach-timeout" json:"attach-timeout"` // seconds
}

// Default returns the documented defaults. Fields equal to these are
// omitted when the settings file is written.
func Default() Settings {
	return Settings{
		Review:        true,
		Action:        true,
		OldestFirst:   true,
		MergeMethod:   MergeNone,
		ApproveMode:   ApproveManual,
		Bot:           "review-bot",
		AttachTimeout: 20,
	}
}

// BindDefaults registers the documented defaults on a viper instance so
// file/env/flag layering resolves against them.
func BindDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("review", d.Review)
	v.SetDefault("action", d.Action)
	v.SetDefault("drafts", d.Drafts)
	v.SetDefault("wip", d.WIP)
	v.SetDefault("skipped", d.Skipped)
	v.SetDefault("oldest-first", d.OldestFirst)
	v.SetDefault("merge-method", string(d.MergeMethod))
	v.SetDefault("approve-mode", string(d.ApproveMode))
	v.SetDefault("repo", d.Repo)
	v.SetDefault("project", d.Project)
	v.SetDefault("maintainer-team", d.MaintainerTeam)
	v.SetDefault("bot", d.Bot)
	v.SetDefault("browser", d.Browser)
	v.SetDefault("user-data-dir", d.UserDataDir)
	v.SetDefault("profile", d.Profile)
	v.SetDefault("debug-port", d.DebugPort)
	v.SetDefault("attach-timeout", d.AttachTimeout)
}

// FromViper resolves the merged configuration into Settings.
func FromViper(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("resolve settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s Settings) Validate() error {
	if !s.MergeMethod.Valid() {
		return fmt.Errorf("invalid merge-method %q (merge|squash|rebase|none)", s.MergeMethod)
	}
	if !s.ApproveMode.Valid() {
		return fmt.Errorf("invalid approve-mode %q (manual|auto|always)", s.ApproveMode)
	}
	if s.AttachTimeout <= 0 {
		return fmt.Errorf("attach-timeout must be positive, got %d", s.AttachTimeout)
	}
	return nil
}

// Load reads a JSON settings file into Settings layered over defaults.
// A missing file yields the defaults.
func Load(path string) (Settings, error) {
	v := viper.New()
	BindDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	return FromViper(v)
}

// Save writes the settings file, omitting fields that equal the documented
// defaults so the file stays minimal and forward-compatible. The write is
// temp-then-rename.
func Save(path string, s Settings) error {
	full, err := json.Marshal(s)
	if err != nil {
		return err
	}
	defRaw, err := json.Marshal(Default())
	if err != nil {
		return err
	}

	var set, def map[string]json.RawMessage
	if err := json.Unmarshal(full, &set); err != nil {
		return err
	}
	if err := json.Unmarshal(defRaw, &def); err != nil {
		return err
	}
	for k, v := range set {
		if d, ok := def[k]; ok && string(d) == string(v) {
			delete(set, k)
		}
	}

	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// DefaultDir is where the settings and skip-list files live.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "rundown")
}
