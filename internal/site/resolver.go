// Package site tracks the externally reachable base URL of this deployment.
package site

import (
	"net/http"
	"sync"
)

// Resolver learns the site's absolute URL from the first inbound HTTP request.
// It is only consulted when no absolute URL is configured.
type Resolver struct {
	mu      sync.RWMutex
	learned string
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns configured when set, otherwise the learned URL (possibly empty).
func (r *Resolver) Resolve(configured string) string {
	if configured != "" {
		return configured
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.learned
}

// Learn records scheme://host of req. Only the first call has any effect.
func (r *Resolver) Learn(req *http.Request) {
	if req.Host == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.learned != "" {
		return
	}

	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := req.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	r.learned = scheme + "://" + req.Host
}

// Middleware learns the base URL from traffic before passing the request on.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.Learn(req)
		next.ServeHTTP(w, req)
	})
}
