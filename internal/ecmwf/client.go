// Package ecmwf submits retrieval requests to the ECMWF web API and downloads
// their results.
package ecmwf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/rtm0/erawp/internal/mars"
)

// Client is an ECMWF web API client capable of running archive retrievals.
type Client struct {
	logger       *slog.Logger
	httpCli      *http.Client
	baseURL      *url.URL
	key          string
	email        string
	pollInterval time.Duration
	progress     bool
}

// Options tune the client behaviour.
type Options struct {
	// MaxConns limits the number of connections to the API host.
	MaxConns int
	// PollInterval is used when the server does not send Retry-After and
	// is the shortest delay between two polls.
	PollInterval time.Duration
	// Progress enables a progress bar while downloading results.
	Progress bool
}

// Result describes the file produced by a completed request.
type Result struct {
	Href        string `json:"href"`
	Size        int64  `json:"size"`
	ContentType string `json:"type"`
}

// APIError is a failure reported by the server.
type APIError struct {
	Code   int
	Status string
	Reason string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("ecmwf API: request %s: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("ecmwf API: HTTP %d: %s", e.Code, e.Reason)
}

// NewClient creates a new API client.
func NewClient(logger *slog.Logger, cfg Config, opts Options) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid API url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("API url %q must be absolute", cfg.URL)
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}

	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        opts.MaxConns,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: opts.MaxConns,
				MaxConnsPerHost:     opts.MaxConns,
			},
		},
		baseURL:      u,
		key:          cfg.Key,
		email:        cfg.Email,
		pollInterval: opts.PollInterval,
		progress:     opts.Progress,
	}, nil
}

// job tracks a submitted request on the server.
type job struct {
	location string
	retry    time.Duration
	status   string
	offset   int
	result   *Result
}

// reply is the JSON document returned by every API call.
type reply struct {
	Name     string          `json:"name"`
	Status   string          `json:"status"`
	Reason   string          `json:"reason"`
	Error    json.RawMessage `json:"error"`
	Messages []string        `json:"messages"`
	Result   *Result         `json:"result"`
	Href     string          `json:"href"`
	Size     int64           `json:"size"`
}

// Retrieve submits req once, waits for the server to complete it and writes
// the result to the request target.
func (c *Client) Retrieve(ctx context.Context, req mars.Request) (*Result, error) {
	if err := req.Check(); err != nil {
		return nil, err
	}
	j := &job{retry: c.pollInterval}
	defer c.cleanup(j)

	submitURL := c.baseURL.JoinPath("datasets", req.Dataset(), "requests").String()
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode request")
	}
	rep, err := c.call(ctx, j, http.MethodPost, submitURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "could not submit request")
	}
	c.logger.Info("Request submitted", "id", rep.Name, "dataset", req.Dataset(), "target", req.Target())

	for j.result == nil {
		if j.location == "" {
			return nil, errors.New("server neither completed the request nor sent its location")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(j.retry):
		}
		if _, err := c.call(ctx, j, http.MethodGet, c.pollURL(j), nil); err != nil {
			return nil, errors.Wrap(err, "could not poll request")
		}
	}

	c.logger.Info("Request complete", "href", j.result.Href, "size", ByteCount(j.result.Size))
	if err := c.download(ctx, j.result, req.Target()); err != nil {
		return nil, err
	}
	return j.result, nil
}

func (c *Client) pollURL(j *job) string {
	if j.offset == 0 {
		return j.location
	}
	u, err := url.Parse(j.location)
	if err != nil {
		return j.location
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(j.offset))
	u.RawQuery = q.Encode()
	return u.String()
}

// call performs one API round trip and updates the job state from the reply.
func (c *Client) call(ctx context.Context, j *job, method, target string, body []byte) (*reply, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	hreq, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("From", c.email)
	hreq.Header.Set("X-ECMWF-KEY", c.key)
	if body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpCli.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	rep := &reply{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, rep); err != nil && res.StatusCode < 300 {
			return nil, errors.Wrapf(err, "could not decode reply to %s %s", method, target)
		}
	}

	switch res.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusCreated, http.StatusAccepted, http.StatusSeeOther:
		if loc := res.Header.Get("Location"); loc != "" {
			j.location = resolve(res.Request.URL, loc)
		}
		if d, ok := retryAfter(res.Header.Get("Retry-After"), time.Now()); ok {
			j.retry = c.clampPoll(d)
		}
	default:
		reason := rep.Reason
		if reason == "" {
			reason = errorText(rep.Error)
		}
		if reason == "" {
			reason = http.StatusText(res.StatusCode)
		}
		return nil, &APIError{Code: res.StatusCode, Reason: reason}
	}

	for _, m := range rep.Messages {
		c.logger.Info("Server message", "msg", m)
	}
	j.offset += len(rep.Messages)

	if rep.Status != "" && rep.Status != j.status {
		j.status = rep.Status
		c.logger.Info("Request status", "status", j.status)
	}
	switch rep.Status {
	case "rejected", "aborted":
		return nil, &APIError{Code: res.StatusCode, Status: rep.Status, Reason: rep.Reason}
	}
	if msg := errorText(rep.Error); msg != "" {
		return nil, &APIError{Code: res.StatusCode, Status: rep.Status, Reason: msg}
	}

	if res.StatusCode == http.StatusOK {
		switch {
		case rep.Result != nil:
			j.result = rep.Result
		case rep.Href != "":
			j.result = &Result{Href: rep.Href, Size: rep.Size}
		}
		if j.result != nil && j.result.Href != "" {
			j.result.Href = resolve(res.Request.URL, j.result.Href)
		}
		if j.result == nil && rep.Status == "complete" {
			return nil, errors.New("request complete but server sent no result")
		}
	}
	return rep, nil
}

// maxPollInterval caps the delay a server may ask for between polls.
const maxPollInterval = 5 * time.Minute

func (c *Client) clampPoll(d time.Duration) time.Duration {
	if d < c.pollInterval {
		return c.pollInterval
	}
	if d > maxPollInterval {
		return maxPollInterval
	}
	return d
}

// retryAfter parses a Retry-After value given either as delay-seconds or as
// an HTTP date.
func retryAfter(v string, now time.Time) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	return t.Sub(now), true
}

// cleanup deletes the server side job. Failures only get logged.
func (c *Client) cleanup(j *job) {
	if j.location == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := c.call(ctx, &job{}, http.MethodDelete, j.location, nil); err != nil {
		c.logger.Warn("Could not delete request", "location", j.location, "err", err)
	}
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
