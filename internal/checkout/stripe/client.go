// Package stripe is a minimal REST client for the Stripe endpoints the
// checkout service uses: hosted checkout sessions, the billing portal
// and customer lookup.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roomvision/roomvision/internal/checkout/domain"
	"github.com/roomvision/roomvision/internal/config"
)

const apiBaseURL = "https://api.stripe.com"

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type portalSessionResponse struct {
	URL string `json:"url"`
}

type customerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type customerListResponse struct {
	Data []customerResponse `json:"data"`
}

type stripeErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(cfg config.Config) domain.StripeAPI {
	return &Client{
		apiKey:  strings.TrimSpace(cfg.Stripe.SecretKey),
		baseURL: apiBaseURL,
		client:  &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params domain.CheckoutParams) (*domain.CheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", "usd")
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountCents, 10))
	values.Set("line_items[0][price_data][product_data][name]", params.ProductName)
	if params.Description != "" {
		values.Set("line_items[0][price_data][product_data][description]", params.Description)
	}
	values.Set("metadata[userId]", params.UserID)
	values.Set("metadata[credits]", strconv.FormatInt(params.Credits, 10))
	values.Set("metadata[package]", params.PackageKey)
	if params.CustomerID != "" {
		values.Set("customer", params.CustomerID)
	} else if params.CustomerEmail != "" {
		values.Set("customer_email", params.CustomerEmail)
	}

	var session checkoutSessionResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, params.IdempotencyKey, &session); err != nil {
		return nil, err
	}
	if session.ID == "" || session.URL == "" {
		return nil, domain.ErrCheckoutFailed
	}
	return &domain.CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*domain.PortalSession, error) {
	values := url.Values{}
	values.Set("customer", customerID)
	values.Set("return_url", returnURL)

	var session portalSessionResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/billing_portal/sessions", values, "", &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, domain.ErrCheckoutFailed
	}
	return &domain.PortalSession{URL: session.URL}, nil
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	path := "/v1/customers?limit=1&email=" + url.QueryEscape(email)

	var list customerListResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, "", &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}
	return &domain.Customer{ID: list.Data[0].ID, Email: list.Data[0].Email}, nil
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string) (*domain.Customer, error) {
	values := url.Values{}
	values.Set("email", email)
	if name != "" {
		values.Set("name", name)
	}

	var customer customerResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/customers", values, "", &customer); err != nil {
		return nil, err
	}
	if customer.ID == "" {
		return nil, domain.ErrCheckoutFailed
	}
	return &domain.Customer{ID: customer.ID, Email: customer.Email}, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out any,
) error {
	if c.apiKey == "" {
		return domain.ErrNotConfigured
	}
	var bodyReader *strings.Reader
	if values != nil {
		bodyReader = strings.NewReader(values.Encode())
	} else {
		bodyReader = strings.NewReader("")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return errors.New("stripe_request_failed")
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		return errors.New(message)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
