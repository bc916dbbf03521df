/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/acronis/go-appkit-demo/httpserver/middleware"
	"github.com/acronis/go-appkit-demo/internal/api"
	"github.com/acronis/go-appkit-demo/internal/people"
	"github.com/acronis/go-appkit-demo/log"
	"github.com/acronis/go-appkit-demo/restapi"
	"github.com/acronis/go-appkit-demo/retry"
)

// ResponseError is returned when the service responds with an unexpected status code.
type ResponseError struct {
	StatusCode int
	Problem    restapi.Problem
}

func (e *ResponseError) Error() string {
	if e.Problem.Detail != "" {
		return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Problem.Detail)
	}
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// Client talks to the demo service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.FieldLogger
}

// NewClient creates a new Client. httpClient is expected to handle retries and pacing.
func NewClient(baseURL string, httpClient *http.Client, logger log.FieldLogger) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, logger: logger}
}

// WaitReady polls the health check endpoint until the service responds with 200 or the policy gives up.
func (c *Client) WaitReady(ctx context.Context, policy retry.Policy) error {
	isRetryable := func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("service is not ready", log.Error(err), log.Duration("wait_time", wait))
	}
	return retry.DoWithRetry(ctx, policy, isRetryable, notify, func(ctx context.Context) error {
		resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
		if err != nil {
			return err
		}
		defer closeBody(resp, c.logger)
		if resp.StatusCode != http.StatusOK {
			return &ResponseError{StatusCode: resp.StatusCode}
		}
		return nil
	})
}

// ListPeople returns the list of people and the value of the X-Cache response header.
func (c *Client) ListPeople(ctx context.Context) (list []people.Person, cacheStatus string, err error) {
	resp, err := c.do(ctx, http.MethodGet, api.PeoplePath, nil)
	if err != nil {
		return nil, "", err
	}
	defer closeBody(resp, c.logger)
	if resp.StatusCode != http.StatusOK {
		return nil, "", readResponseError(resp)
	}
	if err = json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, "", fmt.Errorf("decode people: %w", err)
	}
	return list, resp.Header.Get(middleware.HeaderCache), nil
}

// AddPerson adds a person to the list.
func (c *Client) AddPerson(ctx context.Context, p people.Person) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode person: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, api.PeoplePath, body)
	if err != nil {
		return err
	}
	defer closeBody(resp, c.logger)
	if resp.StatusCode != http.StatusNoContent {
		return readResponseError(resp)
	}
	return nil
}

// RunScenarios sends a burst of concurrent list requests, adds a person and lists people again.
// A short report is written to out.
func (c *Client) RunScenarios(ctx context.Context, burst int, person people.Person, out io.Writer) error {
	type burstResult struct {
		count       int
		cacheStatus string
		err         error
	}
	results := make([]burstResult, burst)
	var wg sync.WaitGroup
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list, cacheStatus, err := c.ListPeople(ctx)
			results[i] = burstResult{count: len(list), cacheStatus: cacheStatus, err: err}
		}(i)
	}
	wg.Wait()

	var failed int
	for i, res := range results {
		if res.err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "GET %s #%d: %v\n", api.PeoplePath, i+1, res.err)
			continue
		}
		_, _ = fmt.Fprintf(out, "GET %s #%d: %d people, X-Cache: %s\n", api.PeoplePath, i+1, res.count, res.cacheStatus)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d burst requests failed", failed, burst)
	}

	if err := c.AddPerson(ctx, person); err != nil {
		return fmt.Errorf("add person: %w", err)
	}
	_, _ = fmt.Fprintf(out, "POST %s: added %s %s\n", api.PeoplePath, person.FirstName, person.LastName)

	list, cacheStatus, err := c.ListPeople(ctx)
	if err != nil {
		return fmt.Errorf("list people after adding: %w", err)
	}
	_, _ = fmt.Fprintf(out, "GET %s after POST: %d people, X-Cache: %s\n", api.PeoplePath, len(list), cacheStatus)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	ctx = middleware.NewContextWithRequestID(ctx, xid.New().String())
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", restapi.ContentTypeAppJSON)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func readResponseError(resp *http.Response) error {
	respErr := &ResponseError{StatusCode: resp.StatusCode}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), restapi.ContentTypeAppProblemJSON) {
		_ = json.NewDecoder(resp.Body).Decode(&respErr.Problem)
	}
	return respErr
}

func closeBody(resp *http.Response, logger log.FieldLogger) {
	if err := resp.Body.Close(); err != nil {
		logger.Error("failed to close response body", log.Error(err))
	}
}
