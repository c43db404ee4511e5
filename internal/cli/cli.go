// Package cli wires flags, environment and the settings file into one
// resolved configuration, runs the startup checks that must fail fast, and
// hands the assembled collaborators to the interactive loop.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rundown/internal/browser"
	"rundown/internal/config"
	"rundown/internal/github"
	"rundown/internal/queue"
	"rundown/internal/rundown"
	"rundown/internal/source"
)

// Process exit codes. Scripts key off these.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitAuth      = 2
	ExitNoColumn  = 3
	ExitNoBrowser = 4
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func fail(code int, err error) error {
	return &exitError{code: code, err: err}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rundown:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return ExitError
	}
	return ExitOK
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath    string
		saveConfig bool
	)

	cmd := &cobra.Command{
		Use:   "rundown",
		Short: "Triage a project board's pull requests one decision at a time",
		Long: `rundown walks the Review and Action columns of a project board,
opening each pull request in a debugger-attached browser and blocking on
one operator decision per item: approve, merge, skip or defer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" {
				cfgPath = filepath.Join(config.DefaultDir(), "settings.json")
			}
			settings, err := resolveSettings(cmd, cfgPath)
			if err != nil {
				return err
			}
			if saveConfig {
				if err := config.Save(cfgPath, settings); err != nil {
					return err
				}
				fmt.Println("wrote", cfgPath)
				return nil
			}
			return run(cmd.Context(), settings, cfgPath)
		},
	}

	d := config.Default()
	f := cmd.Flags()
	f.Bool("review", d.Review, "include the Review column")
	f.Bool("action", d.Action, "include the Action column")
	f.Bool("drafts", d.Drafts, "include draft pull requests")
	f.Bool("wip", d.WIP, "include work-in-progress pull requests")
	f.Bool("skipped", d.Skipped, "include previously skipped pull requests")
	f.Bool("oldest-first", d.OldestFirst, "walk each column oldest first")
	f.String("merge-method", string(d.MergeMethod), "default merge strategy (merge|squash|rebase|none)")
	f.String("approve-mode", string(d.ApproveMode), "pre-merge approval behaviour (manual|auto|always)")
	f.String("repo", d.Repo, "repository as owner/name")
	f.String("project", d.Project, "project board number or name")
	f.String("maintainer-team", d.MaintainerTeam, "org team whose reviews count as maintainer approval")
	f.String("bot", d.Bot, "login of the metadata bot")
	f.String("browser", d.Browser, "browser executable override")
	f.String("user-data-dir", d.UserDataDir, "browser user data directory")
	f.String("profile", d.Profile, "browser profile directory")
	f.Int("debug-port", d.DebugPort, "devtools debug port (0 picks a free port)")
	f.Int("attach-timeout", d.AttachTimeout, "seconds to wait for the browser debug port")
	f.StringVar(&cfgPath, "config", "", "settings file (default "+filepath.Join(config.DefaultDir(), "settings.json")+")")
	f.BoolVar(&saveConfig, "save-config", false, "write the resolved settings and exit")

	return cmd
}

// resolveSettings layers, lowest to highest: documented defaults, the
// settings file, RUNDOWN_* environment variables, command-line flags.
func resolveSettings(cmd *cobra.Command, cfgPath string) (config.Settings, error) {
	v := viper.New()
	config.BindDefaults(v)

	v.SetConfigFile(cfgPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return config.Settings{}, fmt.Errorf("read settings %s: %w", cfgPath, err)
		}
	}

	v.SetEnvPrefix("RUNDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return config.Settings{}, err
	}
	return config.FromViper(v)
}

func run(ctx context.Context, settings config.Settings, cfgPath string) error {
	src, err := github.New(settings)
	if err != nil {
		return err
	}
	if err := src.CheckAuth(ctx); err != nil {
		return fail(ExitAuth, err)
	}

	columns, err := src.Columns(ctx, []string{rundown.ColumnReview, rundown.ColumnAction})
	if err != nil {
		if errors.Is(err, source.ErrColumnNotFound) {
			return fail(ExitNoColumn, err)
		}
		return err
	}

	b, err := browser.Launch(ctx, browser.Options{
		Path:        settings.Browser,
		UserDataDir: settings.UserDataDir,
		Profile:     settings.Profile,
		DebugPort:   settings.DebugPort,
		AttachWait:  time.Duration(settings.AttachTimeout) * time.Second,
	})
	if err != nil {
		if errors.Is(err, browser.ErrNotFound) {
			return fail(ExitNoBrowser, err)
		}
		return err
	}

	skipPath := filepath.Join(filepath.Dir(cfgPath), "skipped.json")
	skips, err := queue.LoadSkipRegistry(skipPath, time.Now())
	if err != nil {
		return err
	}

	viewer, err := src.Viewer(ctx)
	if err != nil {
		return fail(ExitAuth, err)
	}

	m := rundown.New(rundown.Deps{
		Source:       src,
		Browser:      b,
		Settings:     &settings,
		SettingsPath: cfgPath,
		SkipPath:     skipPath,
		Skips:        skips,
		Columns:      columns,
		Viewer:       viewer,
		Now:          time.Now,
	})

	p := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		b.Close()
		return err
	}
	return nil
}
