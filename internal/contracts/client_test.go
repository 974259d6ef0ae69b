package contracts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/livepatch-ops/internal/model"
)

// testClient returns a client pointed at srv with deterministic system
// information, avoiding the real /etc/os-release and uname.
func testClient(srv *httptest.Server) *Client {
	c := NewClient(srv.URL, Proxy{})
	c.sysinfo = func() (SystemInformation, error) {
		return SystemInformation{
			Version:         "22.04.4 LTS (Jammy Jellyfish)",
			VersionID:       "22.04",
			VersionCodename: "jammy",
			KernelVersion:   "5.15.0-105-generic",
			Architecture:    "x86_64",
		}, nil
	}
	return c
}

func TestMachineToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/context/machines/token", r.URL.Path)
		assert.Equal(t, "Bearer contract-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "container", payload["hostType"])
		assert.Equal(t, "livepatch-onprem", payload["machineId"])
		assert.Equal(t, "x86_64", payload["architecture"])

		osFields, ok := payload["os"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "jammy", osFields["series"])
		assert.Equal(t, "Linux", osFields["type"])

		_ = json.NewEncoder(w).Encode(map[string]string{"machineToken": "machine-456"})
	}))
	defer srv.Close()

	token, err := testClient(srv).MachineToken(context.Background(), "contract-123")
	require.NoError(t, err)
	assert.Equal(t, "machine-456", token)
}

func TestResourceToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/resources/livepatch-onprem/context/machines/livepatch-onprem", r.URL.Path)
		assert.Equal(t, "Bearer machine-456", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]string{"resourceToken": "resource-789"})
	}))
	defer srv.Close()

	token, err := testClient(srv).ResourceToken(context.Background(), "machine-456")
	require.NoError(t, err)
	assert.Equal(t, "resource-789", token)
}

// TestRetryOn5xx verifies the transient-failure path: the first two
// attempts return 503 and the third succeeds.
func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"resourceToken": "resource-789"})
	}))
	defer srv.Close()

	token, err := testClient(srv).ResourceToken(context.Background(), "machine-456")
	require.NoError(t, err)
	assert.Equal(t, "resource-789", token)
	assert.Equal(t, int64(3), calls.Load())
}

// TestNoRetryOn4xx verifies client errors abort without retrying: a bad
// token stays bad.
func TestNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv).ResourceToken(context.Background(), "bad-token")
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitContractsError, cliErr.Code)
	assert.Contains(t, err.Error(), "401")
}

func TestEmptyTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := testClient(srv)

	_, err := c.MachineToken(context.Background(), "contract-123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty machine token")

	_, err = c.ResourceToken(context.Background(), "machine-456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty resource token")
}

func TestEmptyInputTokens(t *testing.T) {
	c := NewClient("http://unused.invalid", Proxy{})

	_, err := c.MachineToken(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract token must not be empty")

	_, err = c.ResourceToken(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "machine token must not be empty")
}

func TestParseOSRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "os-release")
	content := `NAME="Ubuntu"
VERSION="22.04.4 LTS (Jammy Jellyfish)"
VERSION_ID="22.04"
VERSION_CODENAME=jammy
# trailing comment

ID=ubuntu
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	fields, err := parseOSRelease(path)
	require.NoError(t, err)
	assert.Equal(t, "22.04.4 LTS (Jammy Jellyfish)", fields["version"])
	assert.Equal(t, "22.04", fields["version_id"])
	assert.Equal(t, "jammy", fields["version_codename"])
	assert.Equal(t, "ubuntu", fields["id"])
	assert.NotContains(t, fields, "# trailing comment")
}

// TestProxyFunc covers selection between http/https proxies and the
// no-proxy list, including subdomain matching.
func TestProxyFunc(t *testing.T) {
	selector := proxyFunc(Proxy{
		HTTP:  "http://proxy.internal:3128",
		HTTPS: "http://sproxy.internal:3128",
		No:    "localhost, canonical.com",
	})

	httpReq := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
	u, err := selector(httpReq)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "proxy.internal:3128", u.Host)

	httpsReq := httptest.NewRequest(http.MethodGet, "https://example.com/x", nil)
	u, err = selector(httpsReq)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "sproxy.internal:3128", u.Host)

	skipped := httptest.NewRequest(http.MethodGet, "https://contracts.canonical.com/x", nil)
	u, err = selector(skipped)
	require.NoError(t, err)
	assert.Nil(t, u)
}
