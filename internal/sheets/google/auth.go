package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"cashbot/internal/log"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Credentials selects how the client authenticates. A service account
// wins when both are set; otherwise an OAuth client plus a saved token
// (see cmd/oauth-init) is used.
type Credentials struct {
	ServiceAccountJSON []byte
	OAuthClientJSON    []byte
	OAuthTokenJSON     []byte
}

// CredentialSources names where each credential may come from. Inline JSON
// takes precedence over a file path.
type CredentialSources struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

// LoadCredentials resolves every source to bytes.
func LoadCredentials(src CredentialSources) (Credentials, error) {
	var (
		creds Credentials
		err   error
	)
	if creds.ServiceAccountJSON, err = inlineOrFile(src.ServiceAccountJSON, src.ServiceAccountFile); err != nil {
		return creds, fmt.Errorf("read service account: %w", err)
	}
	if creds.OAuthClientJSON, err = inlineOrFile(src.OAuthClientJSON, src.OAuthClientFile); err != nil {
		return creds, fmt.Errorf("read oauth client: %w", err)
	}
	if creds.OAuthTokenJSON, err = inlineOrFile(src.OAuthTokenJSON, src.OAuthTokenFile); err != nil {
		return creds, fmt.Errorf("read oauth token: %w", err)
	}
	return creds, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

// tokenSource builds an auto-refreshing token source from creds.
func tokenSource(ctx context.Context, creds Credentials) (oauth2.TokenSource, error) {
	switch {
	case len(creds.ServiceAccountJSON) > 0:
		cfg, err := goauth.JWTConfigFromJSON(creds.ServiceAccountJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("service account config: %w", err)
		}
		return cfg.TokenSource(ctx), nil
	case len(creds.OAuthClientJSON) > 0 && len(creds.OAuthTokenJSON) > 0:
		cfg, err := goauth.ConfigFromJSON(creds.OAuthClientJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("oauth config: %w", err)
		}
		var tok oauth2.Token
		if err := json.Unmarshal(creds.OAuthTokenJSON, &tok); err != nil {
			return nil, fmt.Errorf("oauth token: %w", err)
		}
		return cfg.TokenSource(ctx, &tok), nil
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*)")
	}
}

// newSheetsService initializes a Sheets Service over a pooled HTTP client.
func newSheetsService(ctx context.Context, creds Credentials, logger *log.Logger) (*gsheet.Service, error) {
	if logger == nil {
		logger = log.Discard()
	}
	ts, err := tokenSource(ctx, creds)
	if err != nil {
		return nil, err
	}

	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauth2.NewClient(base, ts)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created",
		"service_account", len(creds.ServiceAccountJSON) > 0,
		"scope", gsheet.SpreadsheetsScope)
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}
