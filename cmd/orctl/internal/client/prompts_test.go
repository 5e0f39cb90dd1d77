package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmOne/openremote/pkg/console"
	"github.com/EmOne/openremote/pkg/identity"
	"github.com/EmOne/openremote/pkg/manager"
)

func TestCredentialsOnly(t *testing.T) {
	res, err := CredentialsOnly(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, identity.BasicLoginResult{Username: "admin", Password: "secret"}, res)

	_, err = CredentialsOnly(context.Background(), "admin", "")
	assert.ErrorIs(t, err, ErrNonInteractive)
}

func TestPromptBasicLoginUsesPreset(t *testing.T) {
	res, err := PromptBasicLogin(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "admin", res.Username)
	assert.False(t, res.Cancel)
}

func TestProviderReportsInitFailure(t *testing.T) {
	p := NewProvider(Options{
		Session: manager.Config{ManagerURL: "http://127.0.0.1:1", Auth: identity.ModeNone},
		OpenStorage: func(context.Context) (console.Storage, error) {
			return console.NewMemoryStorage(), nil
		},
	})
	t.Cleanup(func() { _ = p.Close() })

	m, err := p.Manager(t.Context())
	require.Error(t, err)
	require.NotNil(t, m)
	assert.Equal(t, manager.ManagerFailedToLoad, m.Error())
	assert.Contains(t, err.Error(), "MANAGER_FAILED_TO_LOAD")

	again, againErr := p.Manager(t.Context())
	assert.Same(t, m, again)
	assert.Equal(t, err, againErr)
}
