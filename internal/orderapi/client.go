// Package orderapi talks to the marketplace's order and product REST APIs.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Arya602/craft-heart-connect/internal/domain"
	apperrors "github.com/Arya602/craft-heart-connect/pkg/errors"
	"github.com/Arya602/craft-heart-connect/pkg/httpclient"
)

const (
	orderService   = "order"
	productService = "product"
)

// CircuitOpenFallback replaces a rejected call with a retry hint instead of
// letting the raw breaker error reach the shopper.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("the order service is busy, please retry in a few seconds")
}

// envelope is the {data, error} body every marketplace API responds with.
// Data holds a pointer to the caller's destination.
type envelope struct {
	Data any `json:"data"`
}

// Client calls the order and product APIs. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy the Doer it is built on.
type Client struct {
	http           httpclient.Doer
	orderBaseURL   string
	productBaseURL string
	logger         *slog.Logger
}

// New creates a client for the given API base URLs.
func New(doer httpclient.Doer, orderBaseURL, productBaseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:           doer,
		orderBaseURL:   strings.TrimRight(orderBaseURL, "/"),
		productBaseURL: strings.TrimRight(productBaseURL, "/"),
		logger:         logger,
	}
}

// CreateOrder submits req. The request's idempotency key travels in the
// Idempotency-Key header so the submission may be retried safely.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderConfirmation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.orderBaseURL+"/api/v1/orders", bytes.NewReader(body))
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("create order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(httpclient.IdempotencyKeyHeader, req.IdempotencyKey)
	}

	var conf domain.OrderConfirmation
	if err := c.do(httpReq, orderService, &conf); err != nil {
		return domain.OrderConfirmation{}, err
	}
	if conf.OrderID == "" {
		return domain.OrderConfirmation{}, errors.New("order service returned no order id")
	}

	c.logger.InfoContext(ctx, "order submitted",
		slog.String("order_id", conf.OrderID),
		slog.String("status", string(conf.Status)),
	)
	return conf, nil
}

// GetOrder fetches the current status and tracking history of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (domain.OrderConfirmation, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.orderBaseURL+"/api/v1/orders/"+url.PathEscape(orderID), http.NoBody)
	if err != nil {
		return domain.OrderConfirmation{}, fmt.Errorf("create get order request: %w", err)
	}

	var conf domain.OrderConfirmation
	if err := c.do(httpReq, orderService, &conf); err != nil {
		return domain.OrderConfirmation{}, err
	}
	return conf, nil
}

// ListProducts returns the published catalog.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productBaseURL+"/api/v1/products", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create list products request: %w", err)
	}

	var products []domain.Product
	if err := c.do(httpReq, productService, &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func (c *Client) do(req *http.Request, service string, dst any) error {
	resp, err := c.http.Do(req.Context(), req)
	if err != nil {
		return fmt.Errorf("call %s service: %w", service, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, service)
	}
	defer func() { _ = resp.Body.Close() }()

	env := envelope{Data: dst}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", service, err)
	}
	return nil
}
