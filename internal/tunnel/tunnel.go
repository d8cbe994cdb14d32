// Package tunnel implements the request/response HTTP relay that forwards
// bus messages onto a loopback host:port. It never opens a listening port
// itself — the browser's service worker is the public ingress.
package tunnel

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/vibepilot/agentd/internal/errs"
)

const (
	defaultRateLimit = 50
	defaultBurst     = 100
)

// Request is the decoded form of a tunnel:request payload.
type Request struct {
	RequestID string
	Method    string
	Path      string
	Headers   map[string][]string
	Body      []byte // decoded
}

// Response is the tunnel:response payload.
type Response struct {
	RequestID string            `json:"requestId"`
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body,omitempty"` // base64, omitted when the body is empty
}

type binding struct {
	host    string
	port    int
	limiter *rate.Limiter
}

// Proxy tracks open tunnels and forwards requests onto them.
type Proxy struct {
	client *http.Client

	mu      sync.Mutex
	tunnels map[string]*binding
}

// New creates a Proxy whose HTTP client sets no request timeout: a
// forwarded request ends only when the connection fails or the response
// completes.
func New() *Proxy {
	return &Proxy{
		client:  &http.Client{},
		tunnels: make(map[string]*binding),
	}
}

// Open binds tunnelId to host:port. A duplicate open on an id already open
// is rejected. host defaults to 127.0.0.1.
func (p *Proxy) Open(tunnelID string, port int, host string) error {
	if host == "" {
		host = "127.0.0.1"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tunnels[tunnelID]; exists {
		return errs.User(fmt.Sprintf("tunnel %q already open", tunnelID))
	}
	p.tunnels[tunnelID] = &binding{
		host:    host,
		port:    port,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	return nil
}

// Close drops tunnelId. A close on an unknown id is a no-op.
func (p *Proxy) Close(tunnelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tunnels, tunnelID)
}

// Forward relays req onto tunnelId's bound host:port and returns the
// response, base64-encoding a non-empty body.
func (p *Proxy) Forward(tunnelID string, req Request) (*Response, error) {
	p.mu.Lock()
	b, ok := p.tunnels[tunnelID]
	p.mu.Unlock()
	if !ok {
		return nil, errs.User(fmt.Sprintf("tunnel %q is not open", tunnelID))
	}
	if !b.limiter.Allow() {
		return nil, errs.Transient("tunnel request rate exceeded")
	}

	url := fmt.Sprintf("http://%s:%d%s", b.host, b.port, req.Path)
	httpReq, err := http.NewRequest(req.Method, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, errs.Userf("build tunnel request", err)
	}
	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.ContentLength = int64(len(req.Body))

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errs.Transientf("forward tunnel request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Transientf("read tunnel response", err)
	}

	flat := make(map[string]string, len(resp.Header))
	for k, vs := range resp.Header {
		flat[k] = strings.Join(vs, ", ")
	}

	out := &Response{
		RequestID: req.RequestID,
		Status:    resp.StatusCode,
		Headers:   flat,
	}
	if len(body) > 0 {
		out.Body = base64.StdEncoding.EncodeToString(body)
	}
	return out, nil
}

// IsOpen reports whether tunnelId currently has a binding.
func (p *Proxy) IsOpen(tunnelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tunnels[tunnelID]
	return ok
}

// OpenCount reports how many tunnels are currently open, for the control
// socket's status endpoint.
func (p *Proxy) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tunnels)
}
