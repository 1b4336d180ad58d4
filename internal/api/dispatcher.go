package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TokenSource hands out access tokens and handles a rejected one.
type TokenSource interface {
	ValidAccessToken(ctx context.Context) (string, error)
	// Unauthorized invalidates local credentials, notifies and redirects.
	Unauthorized(ctx context.Context)
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	Notifier   notify.Notifier
	// Limiter throttles outbound calls. Nil disables throttling.
	Limiter *rate.Limiter
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

type Dispatcher struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	notifier   notify.Notifier
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func NewDispatcher(opts Options) *Dispatcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NotifierFunc(func(notify.Notification) {})
	}

	return &Dispatcher{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: httpClient,
		tokens:     opts.Tokens,
		notifier:   notifier,
		limiter:    opts.Limiter,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

type quietKey struct{}

// Quietly marks calls made with ctx as background lookups. Their failures
// are returned to the caller without a notification. A 401 still ends the
// session.
func Quietly(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func IsQuiet(ctx context.Context) bool {
	quiet, _ := ctx.Value(quietKey{}).(bool)
	return quiet
}

// Dispatch sends an authenticated request and returns the raw response body.
// body is sent as JSON, or flattened into a multipart form when multipart is set.
func (d *Dispatcher) Dispatch(ctx context.Context, method, path string, body any, multipart bool) (json.RawMessage, error) {
	start := time.Now()
	data, err := d.dispatch(ctx, method, path, body, multipart)

	d.metrics.IncRequest(method, Outcome(err))
	d.metrics.ObserveLatency(time.Since(start).Seconds())

	return data, err
}

// Do sends a JSON request and decodes the response into out when out is non-nil.
func (d *Dispatcher) Do(ctx context.Context, method, path string, body, out any) error {
	return d.decode(d.Dispatch(ctx, method, path, body, false))(out)
}

// DoMultipart sends body as a multipart form and decodes the response into out.
func (d *Dispatcher) DoMultipart(ctx context.Context, method, path string, body, out any) error {
	return d.decode(d.Dispatch(ctx, method, path, body, true))(out)
}

func (d *Dispatcher) decode(data json.RawMessage, err error) func(out any) error {
	return func(out any) error {
		if err != nil {
			return err
		}
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, method, path string, body any, isMultipart bool) (json.RawMessage, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request throttled: %w", err)
		}
	}

	token, err := d.tokens.ValidAccessToken(ctx)
	if err != nil {
		// Renewal failures were already surfaced by the session.
		if errors.Is(err, ErrNotSignedIn) {
			d.notify(ctx, notify.KindUnauthorized, "Please sign in to continue")
		}
		return nil, err
	}

	reader, contentType, err := encodeBody(body, isMultipart)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		d.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("Request failed without response")
		d.notify(ctx, notify.KindNetworkError, "Network error, please check your connection")
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		d.notify(ctx, notify.KindNetworkError, "Network error, please check your connection")
		return nil, &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return json.RawMessage(data), nil

	case resp.StatusCode == http.StatusUnauthorized:
		d.logger.Warn().Str("method", method).Str("path", path).Msg("Unauthorized response")
		d.tokens.Unauthorized(ctx)
		return nil, ErrUnauthorized

	case resp.StatusCode >= 500:
		d.logger.Error().Int("status", resp.StatusCode).Str("method", method).Str("path", path).Msg("Server error")
		d.notify(ctx, notify.KindServerError, "Something went wrong on our side, please try again later")
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)

	default:
		d.logger.Debug().Int("status", resp.StatusCode).Str("method", method).Str("path", path).Msg("Request failed")
		return nil, &RequestFailedError{
			Status:  resp.StatusCode,
			Body:    json.RawMessage(data),
			Message: errorMessage(resp.StatusCode, data),
		}
	}
}

func (d *Dispatcher) notify(ctx context.Context, kind notify.Kind, message string) {
	if IsQuiet(ctx) {
		return
	}
	d.notifier.Notify(notify.Notification{Kind: kind, Message: message})
}

func encodeBody(body any, isMultipart bool) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}

	if isMultipart {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := WriteMultipart(w, body); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
		}
		return &buf, w.FormDataContentType(), nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}
