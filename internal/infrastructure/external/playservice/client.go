// Package playservice talks to a local billing daemon over HTTP. It provides
// the Host, Service and UI collaborators a processor needs.
package playservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/infrastructure/config"
)

// Daemon endpoints
const (
	pathBind             = "/v1/bind"
	pathUnbind           = "/v1/unbind"
	pathBillingSupported = "/v1/billing/supported"
	pathSkuDetails       = "/v1/billing/sku-details"
	pathPurchases        = "/v1/billing/purchases"
	pathBuyIntent        = "/v1/billing/buy-intent"
	pathBuyIntentReplace = "/v1/billing/buy-intent/replace"
	pathConsume          = "/v1/billing/consume"
	pathConfirmations    = "/v1/confirmations"
)

// StatusError is returned for non-2xx daemon replies.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("billing daemon %s returned %d: %s", e.Path, e.Status, e.Body)
}

// Client is a thin JSON client for the daemon.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a client for the daemon at cfg.URL
func NewClient(cfg config.ServiceConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return &Client{http: c, logger: logger}
}

// post sends body as JSON and returns the raw reply body.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("billing daemon %s: %w", path, err)
	}

	c.logger.Debug("Billing daemon call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("latency", resp.Time()),
	)

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return nil, &StatusError{Path: path, Status: resp.StatusCode(), Body: string(resp.Body())}
	}
	return resp.Body(), nil
}
