// Package client is a resilient HTTP client for the rental API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ashendes/rental-inventory/internal/apperr"
	"github.com/ashendes/rental-inventory/internal/models"
	"github.com/ashendes/rental-inventory/internal/patterns"
	"github.com/go-resty/resty/v2"
)

// ErrUnauthorized is wrapped by errors for 401 and 403 responses
var ErrUnauthorized = errors.New("unauthorized")

// Options configures a Client
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Breaker patterns.BreakerSettings
	// Service labels the breaker metrics
	Service string
}

// Client calls the rental API through a circuit breaker
type Client struct {
	http    *resty.Client
	breaker *patterns.CircuitBreakerWrapper
	token   string
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = patterns.DefaultTimeout
	}
	if opts.Breaker == (patterns.BreakerSettings{}) {
		opts.Breaker = patterns.DefaultBreakerSettings()
	}
	if opts.Service == "" {
		opts.Service = "rental-client"
	}
	return &Client{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetRetryCount(0),
		breaker: patterns.NewCircuitBreaker("rental-api", opts.Service, opts.Breaker, isClientError),
		token:   opts.Token,
	}
}

// BreakerState reports the state of the client's circuit
func (c *Client) BreakerState() string {
	return c.breaker.GetState()
}

// isClientError keeps rejected requests from tripping the circuit. Only
// transport failures and 5xx responses count.
func isClientError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	return apperr.KindOf(err) != apperr.KindUnexpected
}

func statusError(status int, env envelope) error {
	message := env.Message
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return apperr.Validation(message, env.Errors...)
	case http.StatusNotFound:
		return apperr.NotFound("%s", message)
	case http.StatusUnprocessableEntity:
		return apperr.NoApplicableRate("%s", message)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	default:
		return apperr.Unexpected(message, fmt.Errorf("rental API returned status %d", status))
	}
}

type call struct {
	method string
	path   string
	query  map[string]string
	body   any
}

// do runs the call through the breaker and decodes the envelope's data into T
func do[T any](ctx context.Context, c *Client, in call) (T, error) {
	var out T
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json")
		if c.token != "" {
			req.SetAuthToken(c.token)
		}
		if in.query != nil {
			req.SetQueryParams(in.query)
		}
		if in.body != nil {
			req.SetBody(in.body)
		}

		resp, httpErr := req.Execute(in.method, in.path)
		if httpErr != nil {
			return nil, fmt.Errorf("HTTP error: %w", httpErr)
		}

		var env envelope
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			if resp.IsError() {
				return nil, statusError(resp.StatusCode(), envelope{})
			}
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		if resp.IsError() || !env.Success {
			return nil, statusError(resp.StatusCode(), env)
		}
		return env.Data, nil
	})
	if err != nil {
		return out, err
	}

	raw, _ := result.(json.RawMessage)
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to parse response data: %w", err)
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (models.HealthResponse, error) {
	return do[models.HealthResponse](ctx, c, call{method: http.MethodGet, path: "/api/health"})
}

// Items

func (c *Client) ListItems(ctx context.Context, storeID string) ([]models.ItemResponse, error) {
	return do[[]models.ItemResponse](ctx, c, call{
		method: http.MethodGet,
		path:   "/api/items",
		query:  optional("storeId", storeID),
	})
}

func (c *Client) SearchItems(ctx context.Context, storeID, keyword string) ([]models.ItemResponse, error) {
	query := optional("storeId", storeID)
	query["keyword"] = keyword
	return do[[]models.ItemResponse](ctx, c, call{method: http.MethodGet, path: "/api/items/search", query: query})
}

func (c *Client) GetItem(ctx context.Context, id string) (models.ItemResponse, error) {
	return do[models.ItemResponse](ctx, c, call{method: http.MethodGet, path: "/api/items/" + id})
}

func (c *Client) CreateItem(ctx context.Context, req models.ItemRequest) (models.ItemResponse, error) {
	return do[models.ItemResponse](ctx, c, call{method: http.MethodPost, path: "/api/items", body: req})
}

func (c *Client) UpdateItem(ctx context.Context, id string, req models.ItemRequest) (models.ItemResponse, error) {
	return do[models.ItemResponse](ctx, c, call{method: http.MethodPut, path: "/api/items/" + id, body: req})
}

func (c *Client) UpdateItemQuantity(ctx context.Context, id string, quantity int) (models.ItemResponse, error) {
	return do[models.ItemResponse](ctx, c, call{
		method: http.MethodPut,
		path:   "/api/items/" + id + "/quantity",
		query:  map[string]string{"quantity": strconv.Itoa(quantity)},
	})
}

func (c *Client) DeleteItem(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, call{method: http.MethodDelete, path: "/api/items/" + id})
	return err
}

func (c *Client) ItemRate(ctx context.Context, id string, days int) (models.RateQuoteResponse, error) {
	return do[models.RateQuoteResponse](ctx, c, call{
		method: http.MethodGet,
		path:   "/api/items/" + id + "/rate",
		query:  map[string]string{"days": strconv.Itoa(days)},
	})
}

// Packages

func (c *Client) ListPackages(ctx context.Context, storeID string) ([]models.PackageResponse, error) {
	return do[[]models.PackageResponse](ctx, c, call{
		method: http.MethodGet,
		path:   "/api/packages",
		query:  optional("storeId", storeID),
	})
}

func (c *Client) GetPackage(ctx context.Context, id string) (models.PackageResponse, error) {
	return do[models.PackageResponse](ctx, c, call{method: http.MethodGet, path: "/api/packages/" + id})
}

func (c *Client) CreatePackage(ctx context.Context, req models.PackageRequest) (models.PackageResponse, error) {
	return do[models.PackageResponse](ctx, c, call{method: http.MethodPost, path: "/api/packages", body: req})
}

func (c *Client) UpdatePackage(ctx context.Context, id string, req models.PackageRequest) (models.PackageResponse, error) {
	return do[models.PackageResponse](ctx, c, call{method: http.MethodPut, path: "/api/packages/" + id, body: req})
}

func (c *Client) DeletePackage(ctx context.Context, id string) error {
	_, err := do[struct{}](ctx, c, call{method: http.MethodDelete, path: "/api/packages/" + id})
	return err
}

func (c *Client) PackageRate(ctx context.Context, id string, days int) (models.RateQuoteResponse, error) {
	return do[models.RateQuoteResponse](ctx, c, call{
		method: http.MethodGet,
		path:   "/api/packages/" + id + "/rate",
		query:  map[string]string{"days": strconv.Itoa(days)},
	})
}

func optional(key, value string) map[string]string {
	query := map[string]string{}
	if value != "" {
		query[key] = value
	}
	return query
}
