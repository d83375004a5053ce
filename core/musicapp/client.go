package musicapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"songrelay/logger"
	"songrelay/model"
)

// DefaultTimeout bounds a single delivery.
const DefaultTimeout = 30 * time.Second

const (
	tracerName    = "songrelay/core/musicapp"
	requestIDName = "X-Request-ID"
	maxErrorBody  = 512
)

// Client 音乐应用API客户端
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
	tracer     trace.Tracer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for deliveries. Its Timeout is left as given;
// redirects are never followed regardless of hc.CheckRedirect.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.httpClient = &copied
	}
}

// noRedirect hands a 3xx reply back to deliver, which treats it as a failure.
// Following it would turn the POST into a second, bodiless GET.
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

// WithClock overrides the payload timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTracer overrides the tracer used for delivery spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a client that POSTs batches to baseURL.
// An empty apiKey omits the Authorization header; a non-positive timeout uses DefaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.CheckRedirect = noRedirect
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// Deliver forwards the whole batch in a single POST. It never retries.
// Transport failures, timeouts and non-2xx replies are returned as *DeliveryError.
func (c *Client) Deliver(ctx context.Context, tracks []model.Track) error {
	if tracks == nil {
		tracks = []model.Track{}
	}

	ctx, span := c.tracer.Start(ctx, "musicapp.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("tracks.count", len(tracks)),
			attribute.String("url.full", c.baseURL),
		),
	)
	defer span.End()

	err := c.deliver(ctx, span, tracks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) deliver(ctx context.Context, span trace.Span, tracks []model.Track) error {
	payload := model.DeliveryPayload{
		Tracks:    tracks,
		Source:    model.DeliverySource,
		Timestamp: model.FormatTimestamp(c.now()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{URL: c.baseURL, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDName, requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	span.SetAttributes(attribute.String("request.id", requestID))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("music app request failed",
			logger.String("request_id", requestID),
			logger.Duration("elapsed", time.Since(start)),
			logger.ErrorField(err))
		return &DeliveryError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Warn("music app rejected batch",
			logger.String("request_id", requestID),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(snippet)))
		return &DeliveryError{
			URL:        c.baseURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(snippet),
		}
	}

	// 读完响应体以便复用连接
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	logger.Debug("music app accepted batch",
		logger.String("request_id", requestID),
		logger.Int("tracks", len(tracks)),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}
