// Package browser drives a Chromium-family browser through its DevTools
// HTTP debug surface. Only three operations are needed — open a URL, reset
// to a blank page, close — so the plain /json endpoints suffice and no
// protocol client is involved.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// ErrNotFound means no browser executable could be located; fatal at
// startup.
var ErrNotFound = errors.New("browser executable not found")

// candidates are probed in order when no explicit path is configured.
var candidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

type Options struct {
	Path        string // executable override; probed candidates otherwise
	UserDataDir string
	Profile     string
	DebugPort   int // 0 picks a random free port
	AttachWait  time.Duration
}

// Chrome is one attached browser. If Launch started the process, Close
// tears it down; attaching to an already-running debug port leaves the
// process alone.
type Chrome struct {
	base     string
	client   *http.Client
	cmd      *exec.Cmd
	tabID    string
	launched bool
}

// Launch locates the executable, starts it with a debug port (unless one
// is already listening there) and waits for the DevTools endpoint to come
// up within the attach timeout.
func Launch(ctx context.Context, opts Options) (*Chrome, error) {
	port := opts.DebugPort
	if port == 0 {
		p, err := freePort()
		if err != nil {
			return nil, err
		}
		port = p
	}

	c := &Chrome{
		base:   fmt.Sprintf("http://127.0.0.1:%d", port),
		client: &http.Client{Timeout: 5 * time.Second},
	}

	// an already-listening port means a browser is there to attach to
	if c.alive() {
		return c, nil
	}

	path, err := locate(opts.Path)
	if err != nil {
		return nil, err
	}

	args := []string{
		"--remote-debugging-port=" + strconv.Itoa(port),
		"--no-first-run",
		"--no-default-browser-check",
	}
	if opts.UserDataDir != "" {
		args = append(args, "--user-data-dir="+opts.UserDataDir)
	}
	if opts.Profile != "" {
		args = append(args, "--profile-directory="+opts.Profile)
	}
	args = append(args, "about:blank")

	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	c.cmd = cmd
	c.launched = true

	wait := opts.AttachWait
	if wait <= 0 {
		wait = 20 * time.Second
	}
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if c.alive() {
			return c, nil
		}
		select {
		case <-ctx.Done():
			c.Close()
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	c.Close()
	return nil, fmt.Errorf("browser did not expose debug port %d within %s", port, wait)
}

func locate(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err == nil {
			return override, nil
		}
		if p, err := exec.LookPath(override); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, override)
	}
	for _, cand := range candidates {
		if p, err := exec.LookPath(cand); err == nil {
			return p, nil
		}
	}
	return "", ErrNotFound
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func (c *Chrome) alive() bool {
	resp, err := c.client.Get(c.base + "/json/version")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type tab struct {
	ID string `json:"id"`
}

// Navigate opens the URL in a fresh tab and closes the tab of the previous
// navigation, so the rundown always owns exactly one tab.
func (c *Chrome) Navigate(target string) error {
	// newer Chromium requires PUT for /json/new
	req, err := http.NewRequest(http.MethodPut, c.base+"/json/new?"+url.QueryEscape(target), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("navigate: devtools returned %s", resp.Status)
	}
	var opened tab
	if err := json.NewDecoder(resp.Body).Decode(&opened); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if c.tabID != "" {
		c.closeTab(c.tabID)
	}
	c.tabID = opened.ID
	return nil
}

// Reset points the owned tab back at a blank page.
func (c *Chrome) Reset() error {
	return c.Navigate("about:blank")
}

func (c *Chrome) closeTab(id string) {
	resp, err := c.client.Get(c.base + "/json/close/" + id)
	if err == nil {
		resp.Body.Close()
	}
}

// Close releases the tab and, when this process launched the browser,
// terminates it.
func (c *Chrome) Close() error {
	if c.tabID != "" {
		c.closeTab(c.tabID)
		c.tabID = ""
	}
	if c.launched && c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_, _ = c.cmd.Process.Wait()
	}
	return nil
}
