// Package courtlistener provides a client for the CourtListener RECAP
// search API (v4). Every request is rate limited, retried on transient
// failures, and charged against the daily call budget before it is sent.
package courtlistener

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/retrieval-cli/internal/budget"
	"github.com/sells-group/retrieval-cli/internal/resilience"
)

// Client defines the CourtListener operations used by discovery.
type Client interface {
	// FindDocket locates the bankruptcy docket for a company filed in the
	// given year, optionally narrowed to a court.
	FindDocket(ctx context.Context, companyName string, filingYear int, court string) (*SearchResult, error)
	// SearchEntries searches within a docket for entries matching keyword.
	SearchEntries(ctx context.Context, docketID string, keyword string) ([]SearchResult, error)
	// FulltextSearch runs a free-text RECAP query without a docket anchor.
	FulltextSearch(ctx context.Context, query string, court string) ([]SearchResult, error)
	// GetRecapDocument fetches metadata for one RECAP document by ID.
	GetRecapDocument(ctx context.Context, docID string) (*RecapDocument, error)
}

// SearchResult is one hit from the v4 search endpoint.
type SearchResult struct {
	ID            json.Number `json:"id"`
	DocketID      json.Number `json:"docket_id"`
	CaseName      string      `json:"caseName"`
	Court         string      `json:"court"`
	DateFiled     string      `json:"dateFiled"`
	Description   string      `json:"description"`
	RecapDocs     []RecapDoc  `json:"recap_documents"`
	FilepathLocal string      `json:"filepath_local"`
}

// RecapDoc is a nested document reference inside a search hit.
type RecapDoc struct {
	ID            json.Number `json:"id"`
	Description   string      `json:"description"`
	FilepathLocal string      `json:"filepath_local"`
	IsAvailable   bool        `json:"is_available"`
}

// RecapDocument is the direct-lookup shape from /recap-documents/{id}/.
type RecapDocument struct {
	ID            json.Number `json:"id"`
	Description   string      `json:"description"`
	FilepathLocal string      `json:"filepath_local"`
	IsAvailable   bool        `json:"is_available"`
}

type searchResponse struct {
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom REST base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithSearchURL sets a custom search endpoint (for testing).
func WithSearchURL(u string) Option {
	return func(c *httpClient) { c.searchURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRequestsPerSecond overrides the per-second rate limit.
func WithRequestsPerSecond(rps int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), rps) }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retryCfg = cfg }
}

type httpClient struct {
	token     string
	baseURL   string
	searchURL string
	http      *http.Client
	limiter   *rate.Limiter
	reserver  budget.Reserver
	retryCfg  resilience.RetryConfig
}

// NewClient creates a CourtListener client. Every call reserves one unit
// from reserver before touching the network.
func NewClient(token string, reserver budget.Reserver, opts ...Option) Client {
	c := &httpClient{
		token:     token,
		baseURL:   "https://www.courtlistener.com/api/rest/v4",
		searchURL: "https://www.courtlistener.com/api/rest/v4/search/",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:  rate.NewLimiter(10, 10),
		reserver: reserver,
		retryCfg: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     10 * time.Second,
			OnRetry:        resilience.RetryLogger("courtlistener", "search"),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) FindDocket(ctx context.Context, companyName string, filingYear int, court string) (*SearchResult, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("%q chapter:11", companyName))
	params.Set("type", "r")
	params.Set("available_only", "on")
	params.Set("order_by", "score desc")
	params.Set("filed_after", fmt.Sprintf("%d-01-01", filingYear))
	params.Set("filed_before", fmt.Sprintf("%d-12-31", filingYear))
	if slug := CourtSlug(court); slug != "" {
		params.Set("court", slug)
	}

	resp, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

func (c *httpClient) SearchEntries(ctx context.Context, docketID string, keyword string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", fmt.Sprintf("docket_id:%s %q", docketID, keyword))
	params.Set("type", "r")
	params.Set("available_only", "on")
	params.Set("order_by", "score desc")
	// Broad floor so older cases still match.
	params.Set("filed_after", "2019-01-01")

	resp, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *httpClient) FulltextSearch(ctx context.Context, query string, court string) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "r")
	params.Set("available_only", "on")
	params.Set("order_by", "score desc")
	if slug := CourtSlug(court); slug != "" {
		params.Set("court", slug)
	}

	resp, err := c.search(ctx, params)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *httpClient) GetRecapDocument(ctx context.Context, docID string) (*RecapDocument, error) {
	reqURL := fmt.Sprintf("%s/recap-documents/%s/?fields=id,description,filepath_local,is_available",
		strings.TrimRight(c.baseURL, "/"), url.PathEscape(docID))

	body, status, err := c.do(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("courtlistener: recap document %s: status %d", docID, status)
	}

	var doc RecapDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, eris.Wrap(err, "courtlistener: unmarshal recap document")
	}
	return &doc, nil
}

func (c *httpClient) search(ctx context.Context, params url.Values) (*searchResponse, error) {
	body, status, err := c.do(ctx, c.searchURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &searchResponse{}, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("courtlistener: search: status %d", status)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "courtlistener: unmarshal search response")
	}
	return &resp, nil
}

// do reserves budget, waits on the rate limiter, and executes the request
// with retries on transient failures. 4xx statuses other than 429 are
// returned to the caller without retry.
func (c *httpClient) do(ctx context.Context, reqURL string) ([]byte, int, error) {
	if err := c.reserver.Reserve(1); err != nil {
		return nil, 0, err
	}

	type result struct {
		body   []byte
		status int
	}

	res, err := resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (result, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return result{}, eris.Wrap(err, "courtlistener: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return result{}, eris.Wrap(err, "courtlistener: create request")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Token "+c.token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return result{}, resilience.NewTransientError(eris.Wrap(err, "courtlistener: request"), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return result{}, resilience.NewTransientError(eris.Wrap(err, "courtlistener: read body"), resp.StatusCode)
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return result{}, resilience.NewTransientError(
				eris.Errorf("courtlistener: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
		}

		return result{body: body, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.body, res.status, nil
}
