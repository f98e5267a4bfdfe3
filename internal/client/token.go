package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LongLivedToken is the result of a token exchange.
type LongLivedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeToken trades a short-lived user token for a long-lived one.
func ExchangeToken(ctx context.Context, baseURL, appID, appSecret, shortToken string, timeout time.Duration) (LongLivedToken, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", appID)
	q.Set("client_secret", appSecret)
	q.Set("fb_exchange_token", shortToken)

	endpoint := strings.TrimRight(baseURL, "/") + "/oauth/access_token?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return LongLivedToken{}, err
	}

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return LongLivedToken{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return LongLivedToken{}, fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var tok LongLivedToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return LongLivedToken{}, fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if tok.AccessToken == "" {
		return LongLivedToken{}, fmt.Errorf("missing access_token in response body=%q", string(body))
	}
	return tok, nil
}
