// Package judge provides a client for the remote judge's submissions API.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/cfstat/internal/domain/model"
	"github.com/okian/cfstat/pkg/logger"
	"github.com/okian/cfstat/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultBaseURL        = "https://codeforces.com/api"
	defaultPageSize       = 1000
	defaultRequestTimeout = 30 * time.Second
	maxBodySize           = 16 << 20 // 16 MB
)

// Client pages through the judge's submissions endpoint. The HTTP client is
// injected and shared; Client itself holds no mutable state and is safe for
// concurrent use across accounts.
type Client struct {
	baseURL        string
	http           *http.Client
	pageSize       int
	requestTimeout time.Duration
	logger         logger.Logger
}

// NewClient creates a judge API client with configuration options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:        defaultBaseURL,
		http:           &http.Client{},
		pageSize:       defaultPageSize,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("judge")
	}
	return c
}

// apiResponse is the judge's standard envelope.
type apiResponse struct {
	Status  string            `json:"status"`
	Comment string            `json:"comment"`
	Result  []model.Submission `json:"result"`
}

// FetchNewSubmissions pages through handle's submission history newest-first
// and returns every submission strictly newer than sinceExclusive. Fetching
// stops as soon as a submission at or below sinceExclusive is seen, since
// older history is already cached or out of range. When untilExclusive is
// non-zero, submissions at or after it are skipped without stopping the scan.
//
// The second return value is the newest creation timestamp among the returned
// submissions, or sinceExclusive if none qualified.
func (c *Client) FetchNewSubmissions(ctx context.Context, handle string, sinceExclusive, untilExclusive int64) ([]model.Submission, int64, error) {
	var collected []model.Submission
	newest := sinceExclusive
	from := 1

	for {
		page, err := c.page(ctx, handle, from)
		if err != nil {
			return nil, sinceExclusive, &FetchError{Handle: handle, Err: err}
		}
		metrics.RecordSubmissionsSeen(len(page))

		for _, sub := range page {
			if sub.CreationTime <= sinceExclusive {
				// Everything past this point is older; stop paging.
				return collected, newest, nil
			}
			if untilExclusive > 0 && sub.CreationTime >= untilExclusive {
				continue
			}
			collected = append(collected, sub)
			if sub.CreationTime > newest {
				newest = sub.CreationTime
			}
		}

		if len(page) < c.pageSize {
			return collected, newest, nil
		}
		from += len(page)
	}
}

// CheckHandle reports whether the handle exists on the judge. A failure
// status from the API means the handle is unknown; transport errors surface
// as errors.
func (c *Client) CheckHandle(ctx context.Context, handle string) (bool, error) {
	q := url.Values{"handles": {handle}}
	if _, err := c.call(ctx, "/user.info", q); err != nil {
		if errors.Is(err, ErrRemoteStatus) {
			return false, nil
		}
		return false, &FetchError{Handle: handle, Err: err}
	}
	return true, nil
}

// page fetches one page of submissions starting at the 1-based offset.
func (c *Client) page(ctx context.Context, handle string, from int) ([]model.Submission, error) {
	q := url.Values{
		"handle": {handle},
		"from":   {strconv.Itoa(from)},
		"count":  {strconv.Itoa(c.pageSize)},
	}

	env, err := c.call(ctx, "/user.status", q)
	if err != nil {
		return nil, err
	}

	c.logger.Debug(ctx, "fetched submissions page",
		logger.String("handle", handle),
		logger.Int("from", from),
		logger.Int("count", len(env.Result)),
	)
	return env.Result, nil
}

// statusError carries the API's failure comment alongside ErrRemoteStatus.
type statusError struct {
	comment string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %s", ErrRemoteStatus, e.comment)
}

func (e *statusError) Unwrap() error { return ErrRemoteStatus }

// call performs one GET against the API and decodes the standard envelope.
func (c *Client) call(ctx context.Context, path string, q url.Values) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RecordFetchLatency(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordFetchError()
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordPageFetched()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RecordFetchError()
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordFetchError()
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.RecordFetchError()
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		metrics.RecordFetchError()
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if env.Status != "OK" {
		metrics.RecordFetchError()
		return nil, &statusError{comment: env.Comment}
	}
	return &env, nil
}
