package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	catalogs := map[string]string{
		"/shared/locales/en/or.json": `{"logout":"Log out","asset":{"name":"Asset name"},"greeting":"Hello {{name}}"}`,
		"/shared/locales/nl/or.json": `{"logout":"Uitloggen"}`,
		"/locales/en/app.json":       `{"title":"Console"}`,
	}
	r := chi.NewRouter()
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := catalogs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"en":      "en",
		"NL":      "nl",
		"nl-BE":   "nl",
		"de-AT":   "de",
		"zh-Hans": "cn",
		"cn":      "cn",
		"pt-BR":   "pt",
		"xx-yy":   "xx-yy",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Normalize(in))
		})
	}
}

func TestTranslatorURL(t *testing.T) {
	tr, err := New(Options{ManagerURL: "https://demo.example.org/"})
	require.NoError(t, err)

	assert.Equal(t, "https://demo.example.org/shared/locales/nl/or.json", tr.URL("nl", "or"))
	assert.Equal(t, "https://demo.example.org/locales/nl/app.json", tr.URL("nl", "app"))

	tr, err = New(Options{ManagerURL: "https://demo.example.org", LoadPath: "https://cdn.example.org/{{ns}}/{{lng}}.json"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/app/de.json", tr.URL("de", "app"))
}

func TestTranslatorLookupAndFallback(t *testing.T) {
	var hits atomic.Int32
	srv := newCatalogServer(t, &hits)

	tr, err := New(Options{ManagerURL: srv.URL, Namespaces: []string{"or", "app"}, Language: "nl"})
	require.NoError(t, err)
	require.NoError(t, tr.Init(context.Background()))
	assert.True(t, tr.Initialized())

	assert.Equal(t, "Uitloggen", tr.T("logout", nil))
	assert.Equal(t, "Asset name", tr.T("asset.name", nil), "falls back to english")
	assert.Equal(t, "Console", tr.T("app:title", nil))
	assert.Equal(t, "Hello Ada", tr.T("or:greeting", map[string]string{"name": "Ada"}))
	assert.Equal(t, "missing.key", tr.T("missing.key", nil))
}

func TestTranslatorSetLanguageUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := newCatalogServer(t, &hits)

	tr, err := New(Options{ManagerURL: srv.URL, Namespaces: []string{"or"}})
	require.NoError(t, err)
	require.NoError(t, tr.Init(context.Background()))
	assert.Equal(t, "Log out", tr.T("logout", nil))

	changed, err := tr.SetLanguage(context.Background(), "nl-NL")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "nl", tr.Language())
	assert.Equal(t, "Uitloggen", tr.T("logout", nil))

	changed, err = tr.SetLanguage(context.Background(), "nl")
	require.NoError(t, err)
	assert.False(t, changed)

	before := hits.Load()
	_, err = tr.SetLanguage(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, before, hits.Load(), "english catalog served from cache")
}

func TestTranslatorInitFailsWithoutCatalogs(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	tr, err := New(Options{ManagerURL: srv.URL, Namespaces: []string{"or"}})
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Init(context.Background()), ErrNoCatalogs)
}
