package identity

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/EmOne/openremote/pkg/rest"
)

type fakeUsers struct {
	valid      string
	failWith   error
	calls      atomic.Int32
	block      chan struct{}
	realmRoles []rest.Role
}

func (f *fakeUsers) CurrentUser(ctx context.Context, authorization string) (*rest.User, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	if authorization != f.valid {
		return nil, &rest.StatusError{Code: http.StatusUnauthorized, Status: "401 Unauthorized"}
	}
	return &rest.User{Username: "admin", FirstName: "Ada", LastName: "Admin"}, nil
}

func (f *fakeUsers) CurrentUserRoles(context.Context, string) ([]rest.Role, error) {
	return []rest.Role{{Name: "read:assets"}, {Name: "write:assets"}}, nil
}

func (f *fakeUsers) CurrentUserRealmRoles(context.Context, string) ([]rest.Role, error) {
	return f.realmRoles, nil
}

// "admin:secret"
const adminSecretHeader = "Basic YWRtaW46c2VjcmV0"

func scriptedProvider(results ...BasicLoginResult) (BasicLoginProvider, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context, username, password string) (BasicLoginResult, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(results) {
			return BasicLoginResult{Cancel: true}, nil
		}
		return results[i], nil
	}, &calls
}

func TestBasicInitializeRequiresProvider(t *testing.T) {
	s := NewBasic(BasicConfig{ClientID: "openremote", Users: &fakeUsers{}})
	assert.ErrorIs(t, s.Initialize(t.Context()), ErrNoLoginProvider)
}

func TestBasicLoginRetriesOnUnauthorized(t *testing.T) {
	users := &fakeUsers{valid: adminSecretHeader, realmRoles: []rest.Role{{Name: "admin"}}}
	provider, prompts := scriptedProvider(
		BasicLoginResult{Username: "admin", Password: "wrong"},
		BasicLoginResult{Username: "admin", Password: "secret"},
	)

	s := NewBasic(BasicConfig{ClientID: "openremote", LoginProvider: provider, Users: users})
	require.NoError(t, s.Initialize(t.Context()))

	ok, err := s.Authenticate(t.Context())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), prompts.Load())
	assert.Equal(t, int32(2), users.calls.Load())

	assert.True(t, s.Authenticated())
	assert.Equal(t, "admin", s.Username())
	assert.Equal(t, "Ada Admin", s.DisplayName())
	assert.Equal(t, adminSecretHeader, s.AuthorizationHeader())
	assert.True(t, s.Roles().Has("write:assets", "openremote"))
	assert.False(t, s.Roles().Has("write:assets", "account"))
	assert.Equal(t, []string{"admin"}, s.RealmRoles())
}

func TestBasicLoginCancel(t *testing.T) {
	provider, _ := scriptedProvider(BasicLoginResult{Cancel: true})
	s := NewBasic(BasicConfig{LoginProvider: provider, Users: &fakeUsers{valid: adminSecretHeader}})

	ok, err := s.Authenticate(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, s.Authenticated())
}

func TestBasicLoginSkipsIncompleteCredentials(t *testing.T) {
	users := &fakeUsers{valid: adminSecretHeader}
	provider, prompts := scriptedProvider(
		BasicLoginResult{Username: "admin"},
		BasicLoginResult{Username: "admin", Password: "secret"},
	)
	s := NewBasic(BasicConfig{LoginProvider: provider, Users: users})

	ok, err := s.Authenticate(t.Context())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), prompts.Load())
	assert.Equal(t, int32(1), users.calls.Load())
}

func TestBasicLoginAbortsOnUnexpectedFailure(t *testing.T) {
	users := &fakeUsers{failWith: &rest.StatusError{Code: http.StatusInternalServerError, Status: "500 Internal Server Error"}}
	provider, prompts := scriptedProvider(
		BasicLoginResult{Username: "admin", Password: "secret"},
		BasicLoginResult{Username: "admin", Password: "secret"},
	)
	s := NewBasic(BasicConfig{LoginProvider: provider, Users: users})

	ok, err := s.Authenticate(t.Context())
	require.NoError(t, err, "failures are never surfaced as errors")
	assert.False(t, ok)
	assert.Equal(t, int32(1), prompts.Load())
}

func TestBasicLoginUsesPresetCredentials(t *testing.T) {
	var seen []string
	provider := func(ctx context.Context, username, password string) (BasicLoginResult, error) {
		seen = append(seen, username+":"+password)
		return BasicLoginResult{Username: username, Password: password}, nil
	}
	s := NewBasic(BasicConfig{
		LoginProvider: provider,
		Users:         &fakeUsers{valid: adminSecretHeader},
		Credentials:   &UsernamePassword{Username: "admin", Password: "secret"},
	})

	ok, err := s.Login(t.Context(), LoginOptions{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"admin:secret"}, seen)
}

func TestBasicLoginInFlightGuard(t *testing.T) {
	users := &fakeUsers{valid: adminSecretHeader, block: make(chan struct{})}
	provider := func(ctx context.Context, _, _ string) (BasicLoginResult, error) {
		return BasicLoginResult{Username: "admin", Password: "secret"}, nil
	}
	s := NewBasic(BasicConfig{LoginProvider: provider, Users: users})

	first := make(chan bool, 1)
	go func() {
		ok, _ := s.Authenticate(context.Background())
		first <- ok
	}()

	require.Eventually(t, func() bool { return users.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.Login(t.Context(), LoginOptions{})
	assert.ErrorIs(t, err, ErrLoginInProgress)

	close(users.block)
	assert.True(t, <-first)
}

type recordingNavigator struct {
	navigated []string
	reloads   int
}

func (n *recordingNavigator) Navigate(url string) error {
	n.navigated = append(n.navigated, url)
	return nil
}

func (n *recordingNavigator) Reload() error {
	n.reloads++
	return nil
}

func TestBasicLogout(t *testing.T) {
	nav := &recordingNavigator{}
	provider, _ := scriptedProvider(BasicLoginResult{Username: "admin", Password: "secret"})
	s := NewBasic(BasicConfig{LoginProvider: provider, Users: &fakeUsers{valid: adminSecretHeader}, Navigator: nav})

	ok, err := s.Authenticate(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Logout(t.Context(), ""))
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.AuthorizationHeader())
	assert.Equal(t, 1, nav.reloads)

	require.NoError(t, s.Logout(t.Context(), "https://example.org/bye"))
	assert.Equal(t, []string{"https://example.org/bye"}, nav.navigated)
}

func TestBasicLoginLogsMaskedUsername(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	users := &fakeUsers{valid: adminSecretHeader}
	provider, _ := scriptedProvider(BasicLoginResult{Username: "admin", Password: "secret"})
	s := NewBasic(BasicConfig{LoginProvider: provider, Users: users, Logger: zap.New(core)})

	ok, err := s.Authenticate(t.Context())
	require.NoError(t, err)
	require.True(t, ok)

	entries := logs.FilterMessage("basic login succeeded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a***n", entries[0].ContextMap()["username"])
	for _, e := range logs.All() {
		assert.NotContains(t, e.ContextMap(), "password")
	}
}
