package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/kfs"
	"github.com/brettbedarf/kfs/internal/util"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// HTTPClient is the subset of [http.Client] used by HTTP sources
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource contains http-specific source request fields
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  *HTTPMethod       `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`

	client HTTPClient
}

// HTTPProvider builds HTTP sources sharing one client.
type HTTPProvider struct {
	client HTTPClient
}

// RegisterHTTP registers the http provider. A nil client uses
// [http.DefaultClient].
func RegisterHTTP(r *Registry, client HTTPClient) {
	r.Register(HTTPSourceType, NewHTTPProvider(client))
}

func NewHTTPProvider(client HTTPClient) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{client: client}
}

func (p *HTTPProvider) NewSource(raw []byte) (kfs.ContentSource, error) {
	var src HTTPSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("invalid http source: %w", err)
	}
	u, err := validateURL(src.URL)
	if err != nil {
		return nil, err
	}
	src.URL = u
	src.client = p.client
	return &src, nil
}

// validateURL trims s and accepts only absolute http(s) URLs with a host and
// no user info
func validateURL(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("http source requires a url")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", s)
	}
	if u.User != nil {
		return "", fmt.Errorf("url %q must not contain user info", s)
	}
	return s, nil
}

func (s *HTTPSource) newRequest(ctx context.Context, method HTTPMethod) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.URL, nil)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func (s *HTTPSource) do(req *http.Request) (*http.Response, error) {
	logger := util.GetLogger("HTTPSource.do")

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Debug().Err(err).Str("url", s.URL).Str("method", req.Method).Msg("Request failed")
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		logger.Debug().Int("status", resp.StatusCode).Str("url", s.URL).Msg("Unexpected status")
		return nil, fmt.Errorf("%s %s: unexpected status %d", req.Method, s.URL, resp.StatusCode)
	}
	return resp, nil
}

func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := s.newRequest(ctx, s.getMethod())
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Size issues a HEAD request; -1 means the server did not say.
func (s *HTTPSource) Size(ctx context.Context) (int64, error) {
	req, err := s.newRequest(ctx, http.MethodHead)
	if err != nil {
		return 0, err
	}
	resp, err := s.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.ContentLength, nil
}

func (s *HTTPSource) getMethod() HTTPMethod {
	if s.Method != nil {
		return *s.Method
	}
	return HTTPMethodGet
}

var (
	_ kfs.ContentSource  = (*HTTPSource)(nil)
	_ kfs.SourceProvider = (*HTTPProvider)(nil)
)
