package secretstores

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const vaultDefaultTimeout = 30 * time.Second

// VaultConfig holds Vault-specific configuration
type VaultConfig struct {
	Address    string `yaml:"address"`     // Vault server address
	Token      string `yaml:"token"`       // Vault token (discouraged, use env var)
	AuthMethod string `yaml:"auth_method"` // Authentication method: token, userpass
	Namespace  string `yaml:"namespace"`   // Vault namespace (Vault Enterprise)
	Mount      string `yaml:"mount"`       // KV v2 mount point, defaults to "secret"

	UserpassUsername string `yaml:"userpass_username"` // For userpass auth
	UserpassPassword string `yaml:"userpass_password"` // For userpass auth (discouraged)

	TLSSkip bool `yaml:"tls_skip"` // Skip TLS verification (not recommended)
}

// VaultClient is the KV v2 surface the store needs. Interface for testability.
type VaultClient interface {
	Authenticate(ctx context.Context) error
	WriteKV(ctx context.Context, mount, path string, data map[string]interface{}) (*VaultKVMetadata, error)
	ReadKV(ctx context.Context, mount, path string) (*VaultKVSecret, error)
	Health(ctx context.Context) error
}

// VaultKVSecret is a KV v2 secret with its version metadata.
type VaultKVSecret struct {
	Data     map[string]interface{} `json:"data"`
	Metadata VaultKVMetadata        `json:"metadata"`
}

// VaultKVMetadata is the version metadata returned by KV v2 operations.
type VaultKVMetadata struct {
	Version     int    `json:"version"`
	CreatedTime string `json:"created_time"`
}

// HTTPVaultClient implements VaultClient using the Vault HTTP API
type HTTPVaultClient struct {
	config VaultConfig
	token  string
}

// NewHTTPVaultClient creates a Vault HTTP client from configuration.
func NewHTTPVaultClient(config VaultConfig) *HTTPVaultClient {
	return &HTTPVaultClient{config: config}
}

// Authenticate performs authentication with Vault based on the configured method
func (c *HTTPVaultClient) Authenticate(ctx context.Context) error {
	if c.token != "" {
		return nil
	}

	switch c.config.AuthMethod {
	case "", "token":
		return c.authenticateToken()
	case "userpass":
		return c.authenticateUserpass(ctx)
	default:
		return fmt.Errorf("unsupported auth method: %s", c.config.AuthMethod)
	}
}

// WriteKV writes data as a new KV v2 version at mount/path.
func (c *HTTPVaultClient) WriteKV(ctx context.Context, mount, path string, data map[string]interface{}) (*VaultKVMetadata, error) {
	if c.token == "" {
		return nil, fmt.Errorf("not authenticated")
	}

	body, err := json.Marshal(map[string]interface{}{"data": data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secret data: %w", err)
	}

	url := c.baseURL() + "/v1/" + mount + "/data/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vault returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Data VaultKVMetadata `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response.Data, nil
}

// ReadKV fetches the current KV v2 version at mount/path.
// Returns nil, nil when the path does not exist.
func (c *HTTPVaultClient) ReadKV(ctx context.Context, mount, path string) (*VaultKVSecret, error) {
	if c.token == "" {
		return nil, fmt.Errorf("not authenticated")
	}

	url := c.baseURL() + "/v1/" + mount + "/data/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == 404 {
		return nil, nil
	}
	if resp.StatusCode != 200 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vault returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response struct {
		Data *VaultKVSecret `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return response.Data, nil
}

// Health checks that the Vault server is up and unsealed.
func (c *HTTPVaultClient) Health(ctx context.Context) error {
	url := c.baseURL() + "/v1/sys/health"
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach vault: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// 200 = unsealed active, 429 = unsealed standby
	if resp.StatusCode != 200 && resp.StatusCode != 429 {
		return fmt.Errorf("vault health check returned status %d", resp.StatusCode)
	}
	return nil
}

// authenticateToken validates or sets the token
func (c *HTTPVaultClient) authenticateToken() error {
	if c.config.Token != "" {
		c.token = c.config.Token
		return nil
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		c.token = token
		return nil
	}

	return fmt.Errorf("no vault token found in config or VAULT_TOKEN environment variable")
}

// authenticateUserpass authenticates using username/password
func (c *HTTPVaultClient) authenticateUserpass(ctx context.Context) error {
	password := c.config.UserpassPassword
	if password == "" {
		password = os.Getenv("VAULT_USERPASS_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("no password found for userpass auth")
	}

	authData := map[string]interface{}{
		"password": password,
	}

	return c.performLogin(ctx, fmt.Sprintf("auth/userpass/login/%s", c.config.UserpassUsername), authData)
}

// performLogin handles the common login workflow
func (c *HTTPVaultClient) performLogin(ctx context.Context, authPath string, authData map[string]interface{}) error {
	url := c.baseURL() + "/v1/" + strings.TrimPrefix(authPath, "/")

	jsonData, err := json.Marshal(authData)
	if err != nil {
		return fmt.Errorf("failed to marshal auth data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.config.Namespace)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to make auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("authentication failed with status %d: %s", resp.StatusCode, string(body))
	}

	var authResp struct {
		Auth struct {
			ClientToken string `json:"client_token"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	if authResp.Auth.ClientToken == "" {
		return fmt.Errorf("no token received from vault")
	}

	c.token = authResp.Auth.ClientToken
	return nil
}

func (c *HTTPVaultClient) baseURL() string {
	return strings.TrimSuffix(c.config.Address, "/")
}

func (c *HTTPVaultClient) setHeaders(req *http.Request) {
	req.Header.Set("X-Vault-Token", c.token)
	if c.config.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", c.config.Namespace)
	}
}

// httpClient creates an HTTP client with appropriate TLS settings
func (c *HTTPVaultClient) httpClient() *http.Client {
	client := &http.Client{
		Timeout: vaultDefaultTimeout,
	}

	if c.config.TLSSkip {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}
