package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// ErrorRecorder counts requests that could not be forwarded.
type ErrorRecorder interface {
	RecordProxyError()
}

// Proxy forwards a path prefix to the flow editor, including websocket
// upgrades.
type Proxy struct {
	target *url.URL
	prefix string
	rp     *httputil.ReverseProxy
	logger *zap.Logger
	errors ErrorRecorder
}

// New creates a proxy stripping prefix and forwarding to target. errors may be nil.
func New(target, prefix string, logger *zap.Logger, errors ErrorRecorder) (*Proxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse proxy target: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy target %q needs scheme and host", target)
	}

	p := &Proxy{
		target: u,
		prefix: "/" + strings.Trim(prefix, "/"),
		logger: logger,
		errors: errors,
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		ErrorHandler: p.handleError,
	}
	return p, nil
}

// Prefix returns the normalized path prefix served by the proxy.
func (p *Proxy) Prefix() string {
	return p.prefix
}

// StripPrefix maps /prefix/rest to /rest and /prefix to /.
func (p *Proxy) StripPrefix(path string) string {
	if path == p.prefix {
		return "/"
	}
	if strings.HasPrefix(path, p.prefix+"/") {
		return path[len(p.prefix):]
	}
	return path
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.Out.URL.Path = p.StripPrefix(pr.In.URL.Path)
	pr.Out.URL.RawPath = ""
	// SetURL rewrites Host to the target.
	pr.SetURL(p.target)
	pr.SetXForwarded()

	pr.Out.Header.Set("X-Forwarded-Host", pr.In.Host)
	pr.Out.Header.Set("X-Forwarded-Proto", forwardedProto(pr.In))
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Warn("flow editor proxy error",
		zap.String("path", r.URL.Path),
		zap.String("target", p.target.String()),
		zap.Error(err),
	)
	if p.errors != nil {
		p.errors.RecordProxyError()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "proxy error"})
}

// ServeHTTP forwards r to the target.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.rp.ServeHTTP(w, r)
}

func forwardedProto(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
