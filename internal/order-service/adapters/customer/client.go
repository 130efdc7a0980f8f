// Package customer asks the external user directory whether a customer
// exists. Every call goes through a shared resilience.Pipeline.
package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jcmexdev/order-registration/internal/order-service/domain"
	"github.com/jcmexdev/order-registration/internal/pkg/interceptors"
	"github.com/jcmexdev/order-registration/internal/resilience"
)

type Client struct {
	baseURL  string
	http     *http.Client
	pipeline *resilience.Pipeline
	logger   *slog.Logger
}

// NewClient builds a validator for baseURL. The pipeline owns every
// timeout, so httpClient should not set one of its own. Outbound requests
// carry the request id and trace context of the caller.
func NewClient(baseURL string, httpClient *http.Client, pipeline *resilience.Pipeline, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	hc := *httpClient
	hc.Transport = interceptors.NewTransport(httpClient.Transport, logger)
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &hc,
		pipeline: pipeline,
		logger:   logger,
	}
}

// ValidateCustomer returns true on 2xx and false on 404. Any failure to get
// an answer is a domain.ErrExternalService wrapping the pipeline failure;
// caller cancellation is returned unchanged.
func (c *Client) ValidateCustomer(ctx context.Context, customerID int64) (bool, error) {
	url := c.baseURL + "/users/" + strconv.FormatInt(customerID, 10)

	res, err := c.pipeline.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	})
	if err != nil {
		var f *resilience.Failure
		if errors.As(err, &f) {
			c.logger.WarnContext(ctx, "customer validation unavailable",
				"customer_id", customerID, "failure", f.Kind.String(), "error", err)
			return false, domain.ExternalServiceUnavailable(
				fmt.Sprintf("customer service %s", f.Kind), f)
		}
		return false, err
	}

	switch res.Status {
	case resilience.StatusSuccess:
		return true, nil
	case resilience.StatusNotFound:
		c.logger.InfoContext(ctx, "customer not found", "customer_id", customerID)
		return false, nil
	default:
		return false, domain.ExternalServiceUnavailable("customer service returned an unknown result", nil)
	}
}

// Ping reports the circuit of the customer service without calling it. An
// open circuit means registrations are currently failing fast.
func (c *Client) Ping(context.Context) error {
	if s := c.pipeline.State(); s == resilience.StateOpen {
		return fmt.Errorf("customer service circuit %s", s)
	}
	return nil
}
