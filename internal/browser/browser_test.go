package browser

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevtools mimics the /json endpoints of a debugger-attached browser.
type fakeDevtools struct {
	mu     sync.Mutex
	nextID int
	open   map[string]bool
	navs   []string
}

func (f *fakeDevtools) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Browser":"fake"}`)
	})
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		f.nextID++
		id := fmt.Sprintf("tab-%d", f.nextID)
		f.open[id] = true
		f.navs = append(f.navs, r.URL.RawQuery)
		f.mu.Unlock()
		fmt.Fprintf(w, `{"id":%q,"url":""}`, id)
	})
	mux.HandleFunc("/json/close/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/json/close/")
		f.mu.Lock()
		delete(f.open, id)
		f.mu.Unlock()
		fmt.Fprint(w, "Target is closing")
	})
	return mux
}

func newFake(t *testing.T) (*fakeDevtools, *Chrome) {
	t.Helper()
	f := &fakeDevtools{open: map[string]bool{}}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, &Chrome{base: srv.URL, client: srv.Client()}
}

func TestNavigate_OwnsSingleTab(t *testing.T) {
	f, c := newFake(t)

	require.NoError(t, c.Navigate("https://example.com/pull/1"))
	require.NoError(t, c.Navigate("https://example.com/pull/2"))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.open, 1, "previous tab closed on each navigation")
	assert.Len(t, f.navs, 2)
}

func TestReset_NavigatesBlank(t *testing.T) {
	f, c := newFake(t)
	require.NoError(t, c.Navigate("https://example.com/pull/1"))
	require.NoError(t, c.Reset())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.navs[len(f.navs)-1], "about%3Ablank")
}

func TestClose_ReleasesTab(t *testing.T) {
	f, c := newFake(t)
	require.NoError(t, c.Navigate("https://example.com/pull/1"))
	require.NoError(t, c.Close())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.open)
}

func TestAlive(t *testing.T) {
	_, c := newFake(t)
	assert.True(t, c.alive())
}
