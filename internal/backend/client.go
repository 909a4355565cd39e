// Package backend is the HTTP client of the dataset backend the annotator
// reads images and annotations from and saves them back to.
package backend

import (
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

	"coco-annotator/internal/metrics"
	"coco-annotator/internal/payload"
	"coco-annotator/internal/tools"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("backend unavailable")
)

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"maxRequests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold float64       `yaml:"failureThreshold" validate:"gt=0,lte=1"`
	MinRequests      uint32        `yaml:"minRequests"`
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Breaker BreakerConfig
	Logger  *zap.Logger
	Metrics *metrics.Collector
	// HTTPClient overrides the default client; tests pass the fake server's.
	HTTPClient *http.Client
}

// Client talks to the backend REST API.
type Client struct {
	base    *url.URL
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates a client for the API rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q: scheme and host required", opts.BaseURL)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	bc := opts.Breaker
	if bc.MaxRequests == 0 {
		bc = DefaultBreakerConfig()
	}

	c := &Client{base: base, http: hc, logger: logger, metrics: opts.Metrics}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
		// Client errors say nothing about backend health.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < 500
			}
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
	})
	return c, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// do sends one request through the breaker. body is JSON encoded when
// non-nil; a 2xx response is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, name, method, path string, body, out any) error {
	start := time.Now()
	reqID := uuid.New().String()
	log := c.logger.With(zap.String("endpoint", name), zap.String("requestId", reqID))

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, name, method, path, reqID, body, out)
	})

	status := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		status = "unavailable"
		err = fmt.Errorf("%s: %w: %v", name, ErrUnavailable, err)
	case err != nil:
		status = "error"
	}
	c.metrics.ObserveBackend(name, status, time.Since(start))
	if err != nil {
		log.Warn("backend request failed", zap.Error(err))
		return err
	}
	log.Debug("backend request", zap.Duration("took", time.Since(start)))
	return nil
}

func (c *Client) roundTrip(ctx context.Context, name, method, path, reqID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", name, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: name, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: read: %w", name, err)
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", name, err)
	}
	return nil
}

// GetData loads the categories, annotations and image record of an image.
func (c *Client) GetData(ctx context.Context, imageID int) (*Data, error) {
	var resp DataResponse
	if err := c.do(ctx, "get_data", http.MethodGet, "/annotator/data/"+strconv.Itoa(imageID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toData()
}

// SaveData posts the export object of an image.
func (c *Client) SaveData(ctx context.Context, obj payload.ExportObject) error {
	return c.do(ctx, "save_data", http.MethodPost, "/annotator/data", obj, nil)
}

// CreateAnnotation creates an empty annotation and returns it.
func (c *Client) CreateAnnotation(ctx context.Context, imageID, categoryID int) (Annotation, error) {
	var a Annotation
	err := c.do(ctx, "create_annotation", http.MethodPost, "/annotation/",
		createAnnotationRequest{ImageID: imageID, CategoryID: categoryID}, &a)
	if err != nil {
		return Annotation{}, err
	}
	if a.CategoryID == 0 {
		a.CategoryID = categoryID
	}
	return a, nil
}

// DeleteAnnotation deletes an annotation.
func (c *Client) DeleteAnnotation(ctx context.Context, annotationID int) error {
	return c.do(ctx, "delete_annotation", http.MethodDelete, "/annotation/"+strconv.Itoa(annotationID), nil, nil)
}

// Dextr asks the backend to segment the object marked by four extreme points.
// A disabled model yields no rings and no error.
func (c *Client) Dextr(ctx context.Context, imageID int, req tools.DextrRequest) ([][]float64, error) {
	var resp dextrResponse
	if err := c.do(ctx, "dextr", http.MethodPost, "/model/dextr/"+strconv.Itoa(imageID), req, &resp); err != nil {
		return nil, err
	}
	if resp.Disabled {
		c.logger.Info("dextr model disabled on the backend")
		return nil, nil
	}
	return resp.rings(), nil
}

// CopyAnnotations copies the annotations of the given categories from another
// image of the dataset.
func (c *Client) CopyAnnotations(ctx context.Context, sourceImageID, imageID int, categoryIDs []int) error {
	path := fmt.Sprintf("/image/copy/%d/%d/annotations", sourceImageID, imageID)
	return c.do(ctx, "copy_annotations", http.MethodPost, path, copyRequest{CategoryIDs: categoryIDs}, nil)
}

// ImageBytes downloads the encoded image file.
func (c *Client) ImageBytes(ctx context.Context, imageID int) ([]byte, error) {
	var raw []byte
	if err := c.do(ctx, "image", http.MethodGet, "/image/"+strconv.Itoa(imageID)+"?asAttachment=true", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

var _ tools.Segmenter = (*Client)(nil)
