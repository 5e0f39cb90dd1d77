package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu      sync.Mutex
	headers []string
}

func (c *capture) record(r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = append(c.headers, r.Header.Get("Authorization"))
}

func (c *capture) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.headers) == 0 {
		return ""
	}
	return c.headers[len(c.headers)-1]
}

func newTestServer(t *testing.T, seen *capture) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen.record(r)
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/api/master/info", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": "1.20.2", "authServerUrl": "//id.example.org/auth"})
	})
	r.Head("/auth/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	r.Route("/api/{realm}", func(r chi.Router) {
		r.Get("/user/user", func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			writeJSON(w, map[string]any{"id": "u1", "realm": chi.URLParam(r, "realm"), "username": "smartcity"})
		})
		r.Get("/user/userRoles", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, []map[string]any{{"id": "1", "name": "read:assets"}, {"id": "2", "name": ""}, {"id": "3", "name": "write:assets"}})
		})
		r.Get("/user/userRealmRoles", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		r.Get("/model/assetInfos", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, []any{map[string]any{"assetDescriptor": map[string]string{"name": "ThingAsset"}}})
		})
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		})
	})
	r.Get("/consoleappconfig/{file}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "file") != "smartcity.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"realm":"smartcity","initialRoute":"assets","menuEnabled":true,"primaryColor":"#4d9d2a","custom":{"x":1}}`))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientURLs(t *testing.T) {
	c := NewClient("https://demo.openremote.io/", "smartcity")
	assert.Equal(t, "https://demo.openremote.io", c.ManagerURL())
	assert.Equal(t, "https://demo.openremote.io/api/smartcity/", c.APIBaseURL())
}

func TestFetchInfo(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "master")

	info, err := c.FetchInfo(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "1.20.2", info.Version)
	assert.Equal(t, "//id.example.org/auth", info.AuthServerURL)
}

func TestFetchInfoUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, "master")

	_, err := c.FetchInfo(t.Context())
	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))
}

func TestReachable(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "master")
	c.SetAuthorizer(func() string { return "Bearer session" })

	assert.NoError(t, c.Reachable(t.Context(), srv.URL+"/auth/health/ready"), "any response counts")
	assert.Empty(t, seen.last(), "health probes carry no session credentials")

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	assert.Error(t, c.Reachable(t.Context(), closed.URL+"/auth/health/ready"))
}

func TestInterceptorAddsMissingHeader(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "smartcity")

	_, err := c.CurrentUser(t.Context(), "")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	c.SetAuthorizer(func() string { return "Bearer session" })
	user, err := c.CurrentUser(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, "smartcity", user.Username)
	assert.Equal(t, "smartcity", user.Realm)
	assert.Equal(t, "Bearer session", seen.last())
}

func TestInterceptorNeverOverridesExplicitHeader(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "smartcity")
	c.SetAuthorizer(func() string { return "Bearer session" })

	_, err := c.CurrentUser(t.Context(), "Basic YWRtaW46c2VjcmV0")
	require.NoError(t, err)
	assert.Equal(t, "Basic YWRtaW46c2VjcmV0", seen.last())
}

func TestInterceptorSkipsEmptyHeader(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "smartcity")
	c.SetAuthorizer(func() string { return "" })

	_, err := c.AssetInfos(t.Context())
	require.NoError(t, err)
	assert.Empty(t, seen.last())

	c.SetAuthorizer(nil)
	_, err = c.AssetInfos(t.Context())
	require.NoError(t, err)
	assert.Empty(t, seen.last())
}

func TestRoles(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "smartcity")

	roles, err := c.CurrentUserRoles(t.Context(), "Basic x")
	require.NoError(t, err)
	assert.Equal(t, []string{"read:assets", "write:assets"}, RoleNames(roles))

	_, err = c.CurrentUserRealmRoles(t.Context(), "Basic x")
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Contains(t, se.Error(), "/user/userRealmRoles")
}

func TestConsoleAppConfig(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "smartcity")

	cfg, err := c.ConsoleAppConfig(t.Context(), "smartcity")
	require.NoError(t, err)
	assert.Equal(t, "assets", cfg.InitialRoute)
	assert.True(t, cfg.MenuEnabled)
	assert.Equal(t, "#4d9d2a", cfg.PrimaryColor)
	assert.Contains(t, string(cfg.Raw), `"custom"`)

	_, err = c.ConsoleAppConfig(t.Context(), "master")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestTimeout(t *testing.T) {
	seen := &capture{}
	srv := newTestServer(t, seen)
	c := NewClient(srv.URL, "smartcity")
	assert.Zero(t, c.Timeout())

	c.SetTimeout(20 * time.Millisecond)
	start := time.Now()
	err := c.getJSON(t.Context(), c.APIBaseURL()+"slow", "", nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestIsUnauthorized(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"401", &StatusError{Code: http.StatusUnauthorized}, true},
		{"403", &StatusError{Code: http.StatusForbidden}, true},
		{"wrapped 403", errors.Join(errors.New("login"), &StatusError{Code: http.StatusForbidden}), true},
		{"500", &StatusError{Code: http.StatusInternalServerError}, false},
		{"transport", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUnauthorized(tt.err))
		})
	}
}
