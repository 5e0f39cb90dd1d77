package rest

import (
	"net/http"
	"sync/atomic"
)

// authTransport injects the current Authorization header on every outbound request lacking one.
type authTransport struct {
	base   http.RoundTripper
	source atomic.Pointer[func() string]
}

func (t *authTransport) setSource(fn func() string) {
	if fn == nil {
		t.source.Store(nil)
		return
	}
	t.source.Store(&fn)
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") == "" {
		if fn := t.source.Load(); fn != nil {
			if header := (*fn)(); header != "" {
				req = req.Clone(req.Context())
				req.Header.Set("Authorization", header)
			}
		}
	}
	return t.base.RoundTrip(req)
}
