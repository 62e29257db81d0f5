// Package quotes looks up an inspirational quote for a topic from an external
// generation API. The lookup is best-effort: callers must supply a fallback.
package quotes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/timecapsule/internal/common"
	"github.com/dmitrijs2005/timecapsule/internal/server/config"
)

// Lookup is the topic→quote collaborator. Implementations must honor ctx
// deadlines so a slow upstream never stalls an unlock pass.
type Lookup interface {
	Lookup(ctx context.Context, topic string) (string, error)
}

// Client queries a Gemini-style generateContent endpoint.
type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		endpoint: cfg.QuoteAPIEndpoint,
		apiKey:   cfg.QuoteAPIKey,
		timeout:  cfg.QuoteTimeout,
		http:     &http.Client{},
	}
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

// Lookup asks the upstream for an inspirational quote about topic. The whole
// call, retries included, is bounded by the configured timeout. All failures
// are wrapped in common.ErrLookup.
func (c *Client) Lookup(ctx context.Context, topic string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var quote string
	backoff := retry.WithMaxRetries(2, retry.NewConstant(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		q, err := c.lookupOnce(ctx, topic)
		if err != nil {
			return retry.RetryableError(err)
		}
		quote = q
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrLookup, err)
	}
	return quote, nil
}

func (c *Client) lookupOnce(ctx context.Context, topic string) (string, error) {
	reqBody := generateRequest{
		Contents: []generateContent{
			{Parts: []generatePart{{Text: "Give me an inspirational quote about " + topic}}},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := c.endpoint + "?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
