// Package i18n loads translation catalogs from the manager and resolves keys for the
// session's current language.
package i18n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/EmOne/openremote/pkg/logger"
)

const (
	DefaultLanguage          = "en"
	DefaultNamespace         = "app"
	FallbackNamespace        = "or"
	DefaultLoadPath          = "locales/{{lng}}/{{ns}}.json"
	defaultCatalogCacheSize  = 64
	sharedLocalesPathPattern = "/shared/locales/{{lng}}/{{ns}}.json"
)

// ErrNoCatalogs is returned by Init when no catalog could be loaded at all.
var ErrNoCatalogs = errors.New("no translation catalogs could be loaded")

// Options configures a Translator.
type Options struct {
	ManagerURL string
	// Namespaces to load. The "or" namespace is served by the manager itself.
	Namespaces        []string
	LoadPath          string
	Language          string
	FallbackLanguage  string
	DefaultNamespace  string
	FallbackNamespace string
	CacheSize         int
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

type catalog map[string]any

// Translator resolves translation keys.
type Translator struct {
	opts  Options
	log   *zap.Logger
	cache *lru.Cache[string, catalog]

	mu          sync.RWMutex
	language    string
	initialized bool
}

func New(opts Options) (*Translator, error) {
	if opts.FallbackLanguage == "" {
		opts.FallbackLanguage = DefaultLanguage
	}
	if opts.DefaultNamespace == "" {
		opts.DefaultNamespace = DefaultNamespace
	}
	if opts.FallbackNamespace == "" {
		opts.FallbackNamespace = FallbackNamespace
	}
	if opts.LoadPath == "" {
		opts.LoadPath = DefaultLoadPath
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCatalogCacheSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	opts.ManagerURL = strings.TrimRight(opts.ManagerURL, "/")

	cache, err := lru.New[string, catalog](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog cache: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = opts.FallbackLanguage
	}
	return &Translator{
		opts:     opts,
		log:      logger.OrNop(opts.Logger).With(zap.String("component", "i18n")),
		cache:    cache,
		language: Normalize(lang),
	}, nil
}

// Init loads the catalogs for the current and fallback languages.
func (t *Translator) Init(ctx context.Context) error {
	loaded := t.loadLanguage(ctx, t.Language())
	if t.Language() != t.opts.FallbackLanguage {
		loaded += t.loadLanguage(ctx, t.opts.FallbackLanguage)
	}
	if loaded == 0 && len(t.opts.Namespaces) > 0 {
		return ErrNoCatalogs
	}

	t.mu.Lock()
	t.initialized = true
	t.mu.Unlock()
	return nil
}

func (t *Translator) Initialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.initialized
}

func (t *Translator) Language() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.language
}

// SetLanguage switches language, loading its catalogs. It reports whether the language changed.
func (t *Translator) SetLanguage(ctx context.Context, lang string) (bool, error) {
	lang = Normalize(lang)
	if lang == "" {
		return false, errors.New("empty language")
	}
	if lang == t.Language() {
		return false, nil
	}
	if t.loadLanguage(ctx, lang) == 0 && len(t.opts.Namespaces) > 0 {
		t.log.Warn("no catalogs for language, falling back", zap.String("language", lang))
	}

	t.mu.Lock()
	t.language = lang
	t.mu.Unlock()
	return true, nil
}

// T resolves key ("ns:path.to.key" or "path.to.key") and interpolates {{name}} vars. The key
// itself is returned when nothing matches.
func (t *Translator) T(key string, vars map[string]string) string {
	namespaces := []string{t.opts.DefaultNamespace, t.opts.FallbackNamespace}
	path := key
	if ns, rest, ok := strings.Cut(key, ":"); ok && ns != "" && !strings.Contains(ns, ".") {
		namespaces = []string{ns}
		path = rest
	}

	for _, lang := range []string{t.Language(), t.opts.FallbackLanguage} {
		for _, ns := range namespaces {
			c, ok := t.cache.Get(cacheKey(lang, ns))
			if !ok {
				continue
			}
			if v, ok := lookup(c, path); ok {
				return interpolate(v, vars)
			}
		}
	}
	return key
}

// URL returns the catalog URL for lang and ns.
func (t *Translator) URL(lang, ns string) string {
	pattern := t.opts.LoadPath
	if ns == FallbackNamespace {
		pattern = t.opts.ManagerURL + sharedLocalesPathPattern
	} else if !strings.Contains(pattern, "://") {
		pattern = t.opts.ManagerURL + "/" + strings.TrimLeft(pattern, "/")
	}
	return strings.NewReplacer("{{lng}}", lang, "{{ns}}", ns).Replace(pattern)
}

func (t *Translator) loadLanguage(ctx context.Context, lang string) int {
	loaded := 0
	for _, ns := range t.opts.Namespaces {
		if _, ok := t.cache.Get(cacheKey(lang, ns)); ok {
			loaded++
			continue
		}
		c, err := t.fetch(ctx, t.URL(lang, ns))
		if err != nil {
			t.log.Debug("catalog not loaded", zap.String("language", lang), zap.String("namespace", ns), zap.Error(err))
			continue
		}
		t.cache.Add(cacheKey(lang, ns), c)
		loaded++
	}
	return loaded
}

func (t *Translator) fetch(ctx context.Context, url string) (catalog, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var c catalog
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return c, nil
}

func cacheKey(lang, ns string) string {
	return lang + "/" + ns
}

func lookup(c catalog, path string) (string, bool) {
	if v, ok := c[path].(string); ok {
		return v, true
	}
	var node any = map[string]any(c)
	for _, part := range strings.Split(path, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		if node, ok = m[part]; !ok {
			return "", false
		}
	}
	s, ok := node.(string)
	return s, ok
}

func interpolate(s string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(s, "{{") {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
