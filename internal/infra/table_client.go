package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

const (
	// DefaultTableBaseURL is the open-platform API root.
	DefaultTableBaseURL = "https://open.feishu.cn/open-apis"
	tableRequestTimeout = 30 * time.Second
	tableBatchSize      = 100
	tokenRefreshMargin  = 60 * time.Second
)

// TableClientConfig holds remote table credentials.
type TableClientConfig struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string // the base (spreadsheet) the tables live in
	Timeout   time.Duration
}

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type tokenResponse struct {
	apiResponse
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int64  `json:"expire"` // seconds
}

type batchCreateRequest struct {
	Records []domain.TableRow `json:"records"`
}

type batchCreateResponse struct {
	apiResponse
	Data struct {
		Records []json.RawMessage `json:"records"`
	} `json:"data"`
}

// APIError is a non-zero code returned by the table service.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("table service error %d: %s", e.Code, e.Msg)
}

// TableClient implements domain.TableSink over the bitable HTTP API.
type TableClient struct {
	config TableClientConfig
	client *http.Client
	now    func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewTableClient creates a client. Timeouts are per request via context.
func NewTableClient(config TableClientConfig) *TableClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultTableBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = tableRequestTimeout
	}
	return &TableClient{
		config: config,
		client: &http.Client{},
		now:    time.Now,
	}
}

// Ping fetches a fresh tenant token, proving the credentials work.
func (c *TableClient) Ping(ctx context.Context) error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	_, err := c.accessToken(ctx)
	return err
}

// AppendRows writes rows to table in batches. Returns how many rows were
// accepted before the first failure.
func (c *TableClient) AppendRows(ctx context.Context, table string, rows []domain.TableRow) (int, error) {
	if table == "" {
		return 0, errors.New("table id is required")
	}
	if c.config.AppToken == "" {
		return 0, errors.New("app token is required")
	}

	written := 0
	for start := 0; start < len(rows); start += tableBatchSize {
		end := min(start+tableBatchSize, len(rows))

		n, err := c.batchCreate(ctx, table, rows[start:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (c *TableClient) batchCreate(ctx context.Context, table string, rows []domain.TableRow) (int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, err
	}

	url := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records/batch_create",
		c.config.BaseURL, c.config.AppToken, table)

	var resp batchCreateResponse
	if err := c.post(ctx, url, token, batchCreateRequest{Records: rows}, &resp); err != nil {
		return 0, fmt.Errorf("batch create: %w", err)
	}
	if resp.Code != 0 {
		return 0, &APIError{Code: resp.Code, Msg: resp.Msg}
	}
	if n := len(resp.Data.Records); n > 0 {
		return n, nil
	}
	return len(rows), nil
}

// accessToken returns the cached tenant token, refreshing it 60s before expiry.
func (c *TableClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	if c.config.AppID == "" || c.config.AppSecret == "" {
		return "", errors.New("app id and app secret are required")
	}

	body := map[string]string{
		"app_id":     c.config.AppID,
		"app_secret": c.config.AppSecret,
	}
	var resp tokenResponse
	if err := c.post(ctx, c.config.BaseURL+"/auth/v3/tenant_access_token/internal", "", body, &resp); err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("failed to get access token: %w", &APIError{Code: resp.Code, Msg: resp.Msg})
	}

	c.token = resp.TenantAccessToken
	c.tokenExpiry = c.now().Add(time.Duration(resp.Expire)*time.Second - tokenRefreshMargin)
	return c.token, nil
}

func (c *TableClient) post(ctx context.Context, url, token string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("User-Agent", "appusage")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The API still returns a JSON envelope on most 4xx responses
		var env apiResponse
		if json.NewDecoder(resp.Body).Decode(&env) == nil && env.Code != 0 {
			return &APIError{Code: env.Code, Msg: env.Msg}
		}
		return fmt.Errorf("table service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Ensure TableClient implements domain.TableSink.
var _ domain.TableSink = (*TableClient)(nil)
