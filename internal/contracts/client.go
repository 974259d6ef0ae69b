// Package contracts implements the client side of the livepatch resource
// token exchange against the Ubuntu Pro contracts service.
//
// The exchange has two legs: a contract token is traded for a machine
// token describing this deployment, and the machine token is then traded
// for the livepatch-onprem resource token the server needs to sync
// patches. Both legs are plain bearer-authenticated JSON calls.
package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/canonical/livepatch-ops/internal/model"
)

// DefaultBaseURL is the production contracts service.
const DefaultBaseURL = "https://contracts.canonical.com"

// The on-prem deployment registers under a fixed machine identity and
// consumes a single named resource.
const (
	machineID    = "livepatch-onprem"
	resourceName = "livepatch-onprem"
)

// requestTimeout bounds each individual HTTP attempt.
const requestTimeout = 30 * time.Second

// retryMaxElapsed bounds the total retry budget per token exchange leg.
const retryMaxElapsed = 2 * time.Minute

// Proxy holds outbound proxy settings. Empty fields fall back to the
// JUJU_CHARM_HTTP_PROXY / JUJU_CHARM_HTTPS_PROXY / JUJU_CHARM_NO_PROXY
// environment, matching how the charm receives model proxy config.
type Proxy struct {
	HTTP  string
	HTTPS string
	No    string
}

// resolve fills empty fields from the juju charm proxy environment.
func (p Proxy) resolve() Proxy {
	if p.HTTP == "" {
		p.HTTP = os.Getenv("JUJU_CHARM_HTTP_PROXY")
	}
	if p.HTTPS == "" {
		p.HTTPS = os.Getenv("JUJU_CHARM_HTTPS_PROXY")
	}
	if p.No == "" {
		p.No = os.Getenv("JUJU_CHARM_NO_PROXY")
	}
	return p
}

// Client talks to the contracts service.
type Client struct {
	baseURL string
	http    *http.Client
	sysinfo func() (SystemInformation, error)
}

// NewClient creates a contracts client for the given base URL (empty for
// production) with the given proxy settings.
func NewClient(baseURL string, proxy Proxy) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	transport := http.DefaultTransport
	if resolved := proxy.resolve(); resolved.HTTP != "" || resolved.HTTPS != "" {
		transport = &http.Transport{Proxy: proxyFunc(resolved)}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: requestTimeout},
		sysinfo: GatherSystemInformation,
	}
}

// proxyFunc builds a per-request proxy selector honoring the no-proxy list.
func proxyFunc(p Proxy) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		host := req.URL.Hostname()
		for _, skip := range strings.Split(p.No, ",") {
			skip = strings.TrimSpace(skip)
			if skip != "" && (host == skip || strings.HasSuffix(host, "."+skip)) {
				return nil, nil
			}
		}
		raw := p.HTTP
		if req.URL.Scheme == "https" && p.HTTPS != "" {
			raw = p.HTTPS
		}
		if raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}

// machineTokenPayload is the machine registration document sent with a
// contract token. The os fields come from the host the command runs on,
// mirroring what the charm reports from the workload container.
type machineTokenPayload struct {
	Architecture string           `json:"architecture"`
	HostType     string           `json:"hostType"`
	MachineID    string           `json:"machineId"`
	OS           machineTokenOSes `json:"os"`
}

type machineTokenOSes struct {
	Distribution string `json:"distribution"`
	Kernel       string `json:"kernel"`
	Release      string `json:"release"`
	Series       string `json:"series"`
	Type         string `json:"type"`
}

// MachineToken exchanges a contract token for a machine token.
func (c *Client) MachineToken(ctx context.Context, contractToken string) (string, error) {
	if contractToken == "" {
		return "", model.NewCLIError(model.ExitContractsError, "contract token must not be empty")
	}

	info, err := c.sysinfo()
	if err != nil {
		return "", model.WrapCLIError(model.ExitContractsError, "failed to gather system information", err)
	}

	payload := machineTokenPayload{
		Architecture: info.Architecture,
		HostType:     "container",
		MachineID:    machineID,
		OS: machineTokenOSes{
			Distribution: info.Version,
			Kernel:       info.KernelVersion,
			Release:      info.VersionID,
			Series:       info.VersionCodename,
			Type:         "Linux",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", model.WrapCLIError(model.ExitContractsError, "failed to encode machine payload", err)
	}

	var resp struct {
		MachineToken string `json:"machineToken"`
	}
	err = c.doJSON(ctx, http.MethodPost, "/v1/context/machines/token", contractToken, body, &resp)
	if err != nil {
		return "", err
	}
	if resp.MachineToken == "" {
		return "", model.NewCLIError(model.ExitContractsError,
			"contracts service returned an empty machine token")
	}
	return resp.MachineToken, nil
}

// ResourceToken exchanges a machine token for the livepatch-onprem
// resource token.
func (c *Client) ResourceToken(ctx context.Context, machineToken string) (string, error) {
	if machineToken == "" {
		return "", model.NewCLIError(model.ExitContractsError, "machine token must not be empty")
	}

	path := fmt.Sprintf("/v1/resources/%s/context/machines/%s", resourceName, machineID)
	var resp struct {
		ResourceToken string `json:"resourceToken"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, machineToken, nil, &resp); err != nil {
		return "", err
	}
	if resp.ResourceToken == "" {
		return "", model.NewCLIError(model.ExitContractsError,
			"contracts service returned an empty resource token")
	}
	return resp.ResourceToken, nil
}

// doJSON performs one bearer-authenticated JSON exchange with retries.
// Transient failures (network errors, 5xx) are retried under backoff;
// client errors (4xx) abort immediately since repeating the same bad
// token cannot succeed.
func (c *Client) doJSON(ctx context.Context, method, path, bearer string, body []byte, out any) error {
	op := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("malformed contracts response: %w", err))
			}
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("contracts service returned %s", resp.Status)
		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("contracts service returned %s: %s",
				resp.Status, strings.TrimSpace(string(msg))))
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return model.WrapCLIError(model.ExitContractsError,
			fmt.Sprintf("contracts request %s %s failed", method, path), err)
	}
	return nil
}
