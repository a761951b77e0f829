package pricing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/janekbaraniewski/ccost/internal/core"
)

// LiteLLMURL is the default location of the live dataset.
var LiteLLMURL = "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json"

const defaultFetchTimeout = 10 * time.Second

var httpClient = &http.Client{
	Timeout: 15 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:    5,
		IdleConnTimeout: 30 * time.Second,
	},
}

// Fetcher downloads the live LiteLLM dataset.
type Fetcher struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// Fetch downloads and filters the dataset. Every failure wraps
// core.ErrPricingUnavailable.
func (f Fetcher) Fetch(ctx context.Context, kinds []core.SourceKind) (Table, error) {
	url := f.URL
	if url == "" {
		url = LiteLLMURL
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	client := f.Client
	if client == nil {
		client = httpClient
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", core.ErrPricingUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", core.ErrPricingUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: HTTP %d", core.ErrPricingUnavailable, url, resp.StatusCode)
	}

	table, err := decodeLiteLLM(resp.Body, kinds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPricingUnavailable, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: %s has no matching models", core.ErrPricingUnavailable, url)
	}
	return table, nil
}
