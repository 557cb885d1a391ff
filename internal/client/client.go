// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package client talks to a running jobgate daemon over HTTP.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/jobgate/internal/api"
	"github.com/ManuGH/jobgate/internal/control/admission"
	"github.com/ManuGH/jobgate/internal/control/http/problem"
	"github.com/ManuGH/jobgate/internal/jobs"
	"github.com/ManuGH/jobgate/internal/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	// Timeout bounds every request except log follow streams.
	Timeout time.Duration
}

// Client is a jobgate API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	timeout    time.Duration
}

// New creates a client for the daemon at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = opts.Timeout
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(transport)},
		timeout:    opts.Timeout,
	}
}

// ProblemError is a problem+json answer from the daemon.
type ProblemError struct {
	Status     int
	Code       string
	Title      string
	Detail     string
	RetryAfter time.Duration
}

func (e *ProblemError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d %s): %s", e.Code, e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("%s (%d %s)", e.Code, e.Status, e.Title)
}

// IsBusy reports whether err is the daemon's gate-busy rejection.
func IsBusy(err error) bool {
	var pe *ProblemError
	return errors.As(err, &pe) && pe.Code == admission.CodeGateBusy
}

// Submit posts one job. It never retries.
func (c *Client) Submit(ctx context.Context, req api.SubmitRequest) (jobs.Result, error) {
	var res jobs.Result
	body, err := json.Marshal(req)
	if err != nil {
		return res, fmt.Errorf("encode request: %w", err)
	}
	err = c.doJSON(ctx, http.MethodPost, "/api/v1/jobs", bytes.NewReader(body), &res)
	return res, err
}

// ErrInvalidInterval is returned by SubmitRetryBusy for a non-positive interval.
var ErrInvalidInterval = errors.New("client: retry interval must be positive")

// SubmitRetryBusy submits until the daemon stops answering busy, pacing
// attempts at most once per every. onBusy, if set, sees each rejection.
func (c *Client) SubmitRetryBusy(ctx context.Context, req api.SubmitRequest, every time.Duration, onBusy func(*ProblemError)) (jobs.Result, error) {
	if every <= 0 {
		return jobs.Result{}, ErrInvalidInterval
	}
	limiter := rate.NewLimiter(rate.Every(every), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return jobs.Result{}, err
		}
		res, err := c.Submit(ctx, req)
		if !IsBusy(err) {
			return res, err
		}
		if onBusy != nil {
			var pe *ProblemError
			errors.As(err, &pe)
			onBusy(pe)
		}
	}
}

// Current returns the running job; ok is false when the daemon is idle.
func (c *Client) Current(ctx context.Context) (holder admission.Holder, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/jobs/current", nil)
	if err != nil {
		return holder, false, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNoContent {
		return holder, false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&holder); err != nil {
		return holder, false, fmt.Errorf("decode holder: %w", err)
	}
	return holder, true, nil
}

// JobState returns the reconstructed state of id for the given output kind.
func (c *Client) JobState(ctx context.Context, id, kind string) (jobs.Status, error) {
	var st jobs.Status
	path := "/api/v1/jobs/" + url.PathEscape(id) + "?kind=" + url.QueryEscape(kind)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &st)
	return st, err
}

// Tail returns up to maxBytes from the end of a log; zero means the server default.
func (c *Client) Tail(ctx context.Context, name string, maxBytes int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	path := "/api/v1/logs/" + url.PathEscape(name)
	if maxBytes > 0 {
		path += "?bytes=" + strconv.Itoa(maxBytes)
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read log: %w", err)
	}
	return string(data), nil
}

// Follow copies a followed log to w line by line until the daemon ends the
// stream, and returns the stop reason ("completed" or "idle").
func (c *Client) Follow(ctx context.Context, name string, w io.Writer) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/logs/"+url.PathEscape(name)+"?follow=true", nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	ending := false
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "event: end":
			ending = true
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			if ending {
				return data, nil
			}
			if _, err := io.WriteString(w, data+"\n"); err != nil {
				return "", err
			}
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", ctx.Err()
}

// Health checks /readyz when ready is set, /healthz otherwise.
func (c *Client) Health(ctx context.Context, ready bool) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	path := "/healthz"
	if ready {
		path = "/readyz"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends a request and turns non-2xx answers into errors.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID := log.RequestIDFromContext(ctx); reqID != "" {
		req.Header.Set(problem.HeaderRequestID, reqID)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()
	return nil, decodeProblem(resp)
}

func decodeProblem(resp *http.Response) error {
	pe := &ProblemError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		pe.RetryAfter = time.Duration(secs) * time.Second
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body struct {
		Code   string `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), problem.ContentType) && json.Unmarshal(data, &body) == nil {
		pe.Code = body.Code
		if body.Title != "" {
			pe.Title = body.Title
		}
		pe.Detail = body.Detail
	} else {
		pe.Detail = strings.TrimSpace(string(data))
	}
	if pe.Code == "" {
		pe.Code = "HTTP_" + strconv.Itoa(resp.StatusCode)
	}
	return pe
}
