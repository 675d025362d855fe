// Package webhook posts batch notifications to an external HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.trai.ch/zerr"

	"github.com/kacperjurak/gocvcore/pkg/models"
)

// ErrStatus is returned when the endpoint answers with a 4xx or 5xx status.
var ErrStatus = zerr.New("webhook request failed")

// Client handles webhook HTTP requests with connection pooling
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	bufferPool sync.Pool
}

// NewClient creates a new webhook client for url.
func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Client{
		url:    url,
		logger: logger,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		bufferPool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, 1024))
			},
		},
	}
}

// Notify posts the notification as JSON.
func (c *Client) Notify(ctx context.Context, n models.BatchNotification) error {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(n); err != nil {
		return zerr.Wrap(err, "marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return zerr.With(zerr.Wrap(err, "build webhook request"), "url", c.url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "send webhook"), "url", c.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return zerr.With(zerr.With(zerr.Wrap(ErrStatus, "send webhook"), "url", c.url), "status", resp.StatusCode)
	}

	c.logger.Debug("webhook sent",
		slog.String("batch_id", n.BatchID),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
