package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/httputil"
	"github.com/wonny/talos/pkg/logger"
)

// Client handles communication with the Kraken REST API
// ⭐ SSOT: Kraken API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.KrakenConfig

	// local token buckets, layered under the optional redis limiter
	// carried by the shared httputil client
	publicLimiter  *rate.Limiter
	privateLimiter *rate.Limiter

	nonce atomic.Int64
}

// NewClient creates a new Kraken API client
func NewClient(cfg config.KrakenConfig, httpClient *httputil.Client, log *logger.Logger) *Client {
	c := &Client{
		httpClient:     httpClient,
		logger:         log,
		cfg:            cfg,
		publicLimiter:  rate.NewLimiter(rate.Limit(1), 2),
		privateLimiter: rate.NewLimiter(rate.Every(4*time.Second), 1),
	}
	// Nonces must be strictly increasing across restarts
	c.nonce.Store(time.Now().UnixNano())
	return c
}

// public performs a public GET request and unwraps the result envelope
func (c *Client) public(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if err := c.publicLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.cfg.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("kraken public request: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// private performs a signed POST request to a private endpoint
func (c *Client) private(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, fmt.Errorf("kraken private API requires credentials")
	}

	if err := c.privateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	if form == nil {
		form = url.Values{}
	}
	nonce := strconv.FormatInt(c.nonce.Add(1), 10)
	form.Set("nonce", nonce)
	body := form.Encode()

	sign, err := c.sign(path, nonce, body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Set required headers
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", c.cfg.APIKey)
	req.Header.Set("API-Sign", sign)

	// Use underlying http client directly for custom headers
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kraken private request: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// sign computes the API-Sign header:
// base64(HMAC-SHA512(path + SHA256(nonce + postdata), base64decode(secret)))
func (c *Client) sign(path, nonce, body string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(c.cfg.APISecret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}

	sha := sha256.Sum256([]byte(nonce + body))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(sha[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// decodeResponse unwraps the Kraken response envelope
func decodeResponse(resp *http.Response) (json.RawMessage, error) {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("kraken API status %d: %s", resp.StatusCode, string(b))
	}

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode kraken response: %w", err)
	}
	if len(env.Error) > 0 {
		return nil, fmt.Errorf("kraken API error: %v", env.Error)
	}
	return env.Result, nil
}
