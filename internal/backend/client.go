// Package backend is the REST client of the storefront backend.
//
// Every response goes through an explicit parse step: the body is decoded
// with jx into a payload struct and validated before it is converted into
// domain types. Responses that do not match are reported as ParseError
// instead of being defaulted.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
	maxErrorSize   = 4 << 10
)

// Config configures a Client.
type Config struct {
	// BaseURL is the backend root, e.g. http://localhost:8080.
	BaseURL string
	// Timeout bounds a single request. Defaults to 10s.
	Timeout time.Duration
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client calls the backend on behalf of one token source. Clients created by
// WithTokens share the underlying HTTP client.
type Client struct {
	base     string
	http     *http.Client
	tokens   auth.TokenSource
	lg       *zap.Logger
	validate *validator.Validate
}

// New creates a Client. tokens may be nil for a client that only logs in.
func New(cfg Config, tokens auth.TokenSource, lg *zap.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}
	if lg == nil {
		lg = zap.NewNop()
	}

	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	if cfg.MeterProvider != nil {
		opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
	}

	return &Client{
		base: strings.TrimRight(u.String(), "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(cfg.Transport, opts...),
		},
		tokens:   tokens,
		lg:       lg,
		validate: newValidator(),
	}, nil
}

// WithTokens returns a copy of c authenticating with tokens.
func (c *Client) WithTokens(tokens auth.TokenSource) *Client {
	cp := *c
	cp.tokens = tokens
	return &cp
}

// request describes a single backend call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   func(e *jx.Encoder)
	// accept overrides the default JSON Accept header.
	accept string
	// public requests are sent without a bearer token.
	public bool
}

// do performs req and passes the 2xx body to decode, which may be nil when
// the body is ignored.
func (c *Client) do(ctx context.Context, req request, decode func(d *jx.Decoder) error) error {
	raw, _, err := c.exchange(ctx, req, decode != nil)
	if err != nil || decode == nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return c.parseError(req.op, http.StatusOK, errors.New("empty body"))
	}
	if err := decode(jx.DecodeBytes(raw)); err != nil {
		return c.parseError(req.op, http.StatusOK, err)
	}
	return nil
}

// exchange sends req and returns the 2xx body, read only when keep is set,
// and its content type. Error statuses are mapped to the cart taxonomy.
func (c *Client) exchange(ctx context.Context, req request, keep bool) ([]byte, string, error) {
	endpoint := c.base + req.path
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		e := jx.GetEncoder()
		defer jx.PutEncoder(e)
		req.body(e)
		body = bytes.NewReader(e.Bytes())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return nil, "", errors.Wrapf(err, "%s: build request", req.op)
	}
	accept := req.accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.public {
		if c.tokens == nil {
			return nil, "", errors.Wrap(cart.ErrUnauthorized, req.op)
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, "", errors.Wrap(err, req.op)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, "", &cart.UpstreamError{Op: req.op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	lg := c.lg.With(
		zap.String("op", req.op),
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSize))
		msg := errorMessage(raw)
		lg.Debug("Backend request rejected", zap.String("message", msg))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, "", errors.Wrap(cart.ErrUnauthorized, req.op)
		case http.StatusNotFound:
			return nil, "", errors.Wrap(cart.ErrNotFound, req.op)
		default:
			return nil, "", &cart.UpstreamError{Op: req.op, StatusCode: resp.StatusCode, Message: msg}
		}
	}
	lg.Debug("Backend request")

	contentType := resp.Header.Get("Content-Type")
	if !keep {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, contentType, nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, "", &cart.UpstreamError{Op: req.op, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "read body")}
	}
	return raw, contentType, nil
}

// check validates a decoded payload.
func (c *Client) check(op string, v any) error {
	if err := c.validate.Struct(v); err != nil {
		return c.parseError(op, http.StatusOK, err)
	}
	return nil
}

func (c *Client) parseError(op string, status int, err error) error {
	return &cart.UpstreamError{
		Op:         op,
		StatusCode: status,
		Message:    "unexpected response from server",
		Err:        &ParseError{Op: op, Err: err},
	}
}

// errorMessage extracts a human-readable message from an error body, which
// is either JSON with an "error" or "message" field or plain text.
func errorMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '{' {
		var msg string
		err := jx.DecodeBytes(raw).ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "error", "message":
				if d.Next() != jx.String {
					return d.Skip()
				}
				s, err := d.Str()
				if err == nil && msg == "" {
					msg = s
				}
				return err
			default:
				return d.Skip()
			}
		})
		if err == nil && msg != "" {
			return msg
		}
	}
	return string(raw)
}

func pathID(id string) string {
	return url.PathEscape(id)
}
