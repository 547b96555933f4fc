package sdapi

import (
	"fmt"
	"net/url"
	"strings"
)

// BackendConfig identifies a backend and how to authenticate against it.
type BackendConfig struct {
	Endpoint   string `json:"endpoint" toml:"endpoint"`
	Credential string `json:"credential,omitempty" toml:"credential"`
}

// Normalize returns the config with the endpoint in canonical form.
func (c BackendConfig) Normalize() (BackendConfig, error) {
	base, err := parseBaseURL(c.Endpoint)
	if err != nil {
		return BackendConfig{}, err
	}
	return BackendConfig{Endpoint: base.String(), Credential: strings.TrimSpace(c.Credential)}, nil
}

// IsZero reports whether no endpoint has been set.
func (c BackendConfig) IsZero() bool {
	return strings.TrimSpace(c.Endpoint) == ""
}

// parseBaseURL accepts host:port or a full URL and strips query, fragment and
// trailing slashes. A path prefix is kept for backends behind a reverse proxy.
func parseBaseURL(endpoint string) (*url.URL, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: endpoint is empty", ErrBackendUnavailable)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse endpoint %q: missing host", endpoint)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
