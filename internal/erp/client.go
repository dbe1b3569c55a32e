// Package erp implements the call-budgeted client for the Tiny ERP API.
//
// A Client is created per sync invocation and is not safe for concurrent
// use. Every call counts against the budget, whether it succeeds or not,
// and every response body is classified before it is handed back: the ERP
// reports failures inside 200 responses, either as a legacy XML envelope or
// as a JSON envelope carrying an error status.
package erp

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/atelier-ops/atelier-sync/internal/httpclient"
	"github.com/atelier-ops/atelier-sync/internal/otel"
	"github.com/atelier-ops/atelier-sync/internal/syncerr"
)

const (
	// DefaultBaseURL is the Tiny API v2 root
	DefaultBaseURL = "https://api.tiny.com.br/api2"

	// DefaultMaxCalls is the per-invocation call budget
	DefaultMaxCalls = 3

	// EndpointAccountInfo is used by the connectivity test
	EndpointAccountInfo = "info.php"
)

// Client performs budgeted calls against the ERP
type Client struct {
	http     httpclient.Client
	baseURL  string
	token    string
	maxCalls int
	calls    int
	tracer   trace.Tracer
}

// Option configures a Client
type Option func(*Client)

// WithMaxCalls overrides the call budget. Values below 1 are ignored.
func WithMaxCalls(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxCalls = n
		}
	}
}

// WithTracer enables a span per ERP call
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// NewClient creates a client with a fresh call counter
func NewClient(httpClient httpclient.Client, baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		maxCalls: DefaultMaxCalls,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CallsUsed returns how many calls have been issued so far
func (c *Client) CallsUsed() int {
	return c.calls
}

// MaxCalls returns the call budget
func (c *Client) MaxCalls() int {
	return c.maxCalls
}

// Call POSTs params to endpoint and returns the classified "retorno" object.
// The budget is checked before any network I/O.
func (c *Client) Call(ctx context.Context, endpoint string, params url.Values) (gjson.Result, error) {
	if c.calls >= c.maxCalls {
		slog.WarnContext(ctx, "ERP call budget exhausted",
			"endpoint", endpoint,
			"calls_used", c.calls,
			"max_calls", c.maxCalls)
		return gjson.Result{}, syncerr.RateLimitExceeded(c.maxCalls)
	}

	ctx, span := otel.StartSpan(ctx, c.tracer, "erp.Call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			otel.AttrEndpoint.String(endpoint),
			otel.AttrCallNumber.Int(c.calls+1),
		),
	)
	defer span.End()

	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("token", c.token)
	form.Set("formato", "JSON")

	body, err := c.http.PostForm(ctx, c.baseURL+"/"+endpoint, form)
	c.calls++

	slog.DebugContext(ctx, "ERP call issued",
		"endpoint", endpoint,
		"calls_used", c.calls,
		"max_calls", c.maxCalls)

	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			err = syncerr.RemoteUnavailable(httpErr.StatusCode, err)
		} else {
			err = syncerr.RemoteUnavailable(0, err)
		}
		otel.RecordError(span, err)
		return gjson.Result{}, err
	}

	result, err := classify(body)
	if err != nil {
		otel.RecordError(span, err)
		return gjson.Result{}, err
	}
	return result, nil
}

// AccountInfo performs the connectivity test call
func (c *Client) AccountInfo(ctx context.Context) error {
	_, err := c.Call(ctx, EndpointAccountInfo, nil)
	return err
}

// Search fetches one page of records for entity. Each returned Record is
// already unwrapped from its singular envelope key.
func (c *Client) Search(ctx context.Context, entity string, query SearchQuery) (*SearchResult, error) {
	ep, ok := searchEndpoints[entity]
	if !ok {
		return nil, syncerr.Validation("unsupported entity %q", entity)
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	params := url.Values{"pagina": {strconv.Itoa(page)}}
	if query.Since != "" {
		params.Set("dataAlteracao", query.Since)
	}

	ret, err := c.Call(ctx, ep.path, params)
	if err != nil {
		return nil, err
	}

	records, err := decodeRecords(ret.Get(ep.plural), ep.singular)
	if err != nil {
		return nil, syncerr.Remote("ERP returned an unreadable " + ep.plural + " list: " + err.Error())
	}

	totalPages := int(ret.Get("numero_paginas").Int())
	if totalPages < page {
		totalPages = page
	}
	return &SearchResult{
		Records:    records,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}
