package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appconfig "github.com/edustack/academy-api/internal/config"
	"github.com/edustack/academy-api/internal/pkg/httpretry"
)

const defaultSparkPostURL = "https://api.sparkpost.com/api/v1"

// SparkPostProvider sends through the SparkPost transmissions API.
type SparkPostProvider struct {
	apiKey   string
	baseURL  string
	from     string
	fromName string
	client   httpretry.HTTPDoer
}

// NewSparkPost returns an uninitialized SparkPost provider.
func NewSparkPost(cfg appconfig.EmailConfig) *SparkPostProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSparkPostURL
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SparkPostProvider{
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
		client:   httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 2),
	}
}

// Name implements Provider.
func (p *SparkPostProvider) Name() string { return "sparkpost" }

// Initialize verifies the API key against the account endpoint.
func (p *SparkPostProvider) Initialize(ctx context.Context) error {
	if p.apiKey == "" {
		return fmt.Errorf("sparkpost api key not configured")
	}
	return p.Probe(ctx)
}

// Send implements Provider.
func (p *SparkPostProvider) Send(ctx context.Context, msg Message) (*Receipt, error) {
	from := map[string]string{"email": p.from}
	if p.fromName != "" {
		from["name"] = p.fromName
	}

	payload := map[string]interface{}{
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": msg.To}},
		},
		"content": map[string]interface{}{
			"from":    from,
			"subject": msg.Subject,
			"html":    msg.HTML,
			"text":    msg.Text,
		},
		"options": map[string]interface{}{
			"transactional": true,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/transmissions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sparkpost error: status %d: %s", resp.StatusCode, snippet)
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding sparkpost response: %w", err)
	}

	return &Receipt{MessageID: result.Results.ID, Provider: p.Name()}, nil
}

// Probe implements Provider. A GET on the account endpoint exercises
// authentication without sending anything.
func (p *SparkPostProvider) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", p.baseURL+"/account", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sparkpost account check: status %d", resp.StatusCode)
	}
	return nil
}
