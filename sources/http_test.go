package sources

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/brettbedarf/kfs/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func TestHTTPProvider_NewSource(t *testing.T) {
	t.Parallel()

	provider := NewHTTPProvider(&MockHTTPClient{})

	tests := []struct {
		url     string
		wantErr bool
		desc    string
	}{
		// Valid cases
		{"http://test.com", false, "basic HTTP URL"},
		{"https://test.com", false, "basic HTTPS URL"},
		{"  http://test.com   ", false, "URL with whitespace"},
		{"http://test.com/path?arg=1&arg2=2", false, "URL with path and query"},
		{"http://test.com:8080", false, "URL with port"},
		{"http://localhost:8080/test", false, "localhost with port"},
		{"http://123.123.123.123/test", false, "IP address"},
		{"http://mylocalnet/test", false, "single label hostname"},

		// Invalid cases
		{"", true, "empty string"},
		{" ", true, "whitespace only"},
		{"_", true, "invalid character"},
		{"ftp://test.com", true, "different scheme rejected"},
		{"test.com", true, "missing scheme"},
		{"http://user@test.com/path", true, "URL with user info"},
		{"http:///path", true, "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			t.Parallel()
			src, err := provider.NewSource(createCfg(tt.url))

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, src)
				return
			}
			require.NoError(t, err)
			require.IsType(t, &HTTPSource{}, src)
			assert.Equal(t, strings.TrimSpace(tt.url), src.(*HTTPSource).URL)
		})
	}
}

func TestHTTPSource_Open(t *testing.T) {
	t.Parallel()

	t.Run("successful request with headers", func(t *testing.T) {
		t.Parallel()
		client := &MockHTTPClient{}
		client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
			return req.Method == HTTPMethodPost &&
				req.URL.String() == "http://test.com/file" &&
				req.Header.Get("Authorization") == "Bearer x"
		})).Return(createResp(http.StatusOK, "payload"), nil)

		src := createTestSource(t, client, createCfgWithOpts("http://test.com/file",
			util.Pointer(HTTPMethodPost), map[string]string{"Authorization": "Bearer x"}))

		rc, err := src.Open(context.Background())
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(data))
		client.AssertExpectations(t)
	})

	t.Run("network error", func(t *testing.T) {
		t.Parallel()
		client := &MockHTTPClient{}
		client.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))
		src := createTestSource(t, client, createCfg("http://test.com"))

		rc, err := src.Open(context.Background())
		assert.Nil(t, rc)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("HTTP error status", func(t *testing.T) {
		t.Parallel()
		client := &MockHTTPClient{}
		client.On("Do", mock.Anything).Return(createResp(http.StatusNotFound, "missing"), nil)
		src := createTestSource(t, client, createCfg("http://test.com"))

		rc, err := src.Open(context.Background())
		assert.Nil(t, rc)
		assert.ErrorContains(t, err, "unexpected status 404")
	})
}

func TestHTTPSource_Size(t *testing.T) {
	t.Parallel()

	client := &MockHTTPClient{}
	resp := createResp(http.StatusOK, "")
	resp.ContentLength = 1234
	client.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == http.MethodHead
	})).Return(resp, nil)
	src := createTestSource(t, client, createCfg("https://test.com/big"))

	size, err := src.Size(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1234, size)
}

func TestRegisterHTTP(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	RegisterHTTP(registry, nil)

	provider, err := registry.GetProvider(HTTPSourceType)
	require.NoError(t, err)
	require.IsType(t, &HTTPProvider{}, provider)
	assert.Same(t, http.DefaultClient, provider.(*HTTPProvider).client)
}

// Test helpers

func createTestSource(t *testing.T, client HTTPClient, raw []byte) *HTTPSource {
	t.Helper()
	src, err := NewHTTPProvider(client).NewSource(raw)
	require.NoError(t, err)
	return src.(*HTTPSource)
}

func createResp(status int, body string) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func createCfg(url string) []byte {
	config := HTTPSource{URL: url}
	data, _ := json.Marshal(config)
	return data
}

func createCfgWithOpts(url string, method *HTTPMethod, headers map[string]string) []byte {
	config := HTTPSource{
		URL:     url,
		Method:  method,
		Headers: headers,
	}
	data, _ := json.Marshal(config)
	return data
}
