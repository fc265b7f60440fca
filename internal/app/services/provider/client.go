// Package provider is the gateway to the upstream SMM provider API.
package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	apperrors "github.com/boostgrid/panel-service/internal/errors"

	"github.com/boostgrid/panel-service/internal/app/metrics"
	"github.com/boostgrid/panel-service/internal/httputil"
	"github.com/boostgrid/panel-service/pkg/logger"
)

// Supported upstream actions.
const (
	ActionServices = "services"
	ActionAdd      = "add"
	ActionStatus   = "status"
	ActionBalance  = "balance"
)

const maxResponseBytes = 4 << 20

// ActionRequest is the caller-facing pass-through request.
type ActionRequest struct {
	Action    string `json:"action"`
	ServiceID string `json:"service_id,omitempty"`
	Link      string `json:"link,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

// Client talks to the upstream provider. Responses are relayed unmodified.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a Client. timeout <= 0 defaults to 30 seconds.
func New(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NewDefault("provider")
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Forward validates the action-specific fields and relays the request to the
// upstream provider, returning its JSON body as-is.
func (c *Client) Forward(ctx context.Context, req ActionRequest) (json.RawMessage, error) {
	form, err := c.buildForm(req)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, req.Action, form)
}

// ListServices fetches the provider's service catalog.
func (c *Client) ListServices(ctx context.Context) (json.RawMessage, error) {
	return c.Forward(ctx, ActionRequest{Action: ActionServices})
}

// PlaceOrder submits an order to the provider.
func (c *Client) PlaceOrder(ctx context.Context, serviceID, link string, quantity int) (json.RawMessage, error) {
	return c.Forward(ctx, ActionRequest{
		Action:    ActionAdd,
		ServiceID: serviceID,
		Link:      link,
		Quantity:  quantity,
	})
}

// CheckStatus queries the state of a previously placed provider order.
func (c *Client) CheckStatus(ctx context.Context, orderID string) (json.RawMessage, error) {
	return c.Forward(ctx, ActionRequest{Action: ActionStatus, OrderID: orderID})
}

// GetBalance fetches the remaining balance on the provider account.
func (c *Client) GetBalance(ctx context.Context) (json.RawMessage, error) {
	return c.Forward(ctx, ActionRequest{Action: ActionBalance})
}

func (c *Client) buildForm(req ActionRequest) (url.Values, error) {
	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("action", req.Action)

	switch req.Action {
	case ActionServices, ActionBalance:
	case ActionAdd:
		if req.ServiceID == "" || req.Link == "" || req.Quantity == 0 {
			return nil, apperrors.BadRequest("service_id, link and quantity are required for action add")
		}
		form.Set("service", req.ServiceID)
		form.Set("link", req.Link)
		form.Set("quantity", strconv.Itoa(req.Quantity))
	case ActionStatus:
		if req.OrderID == "" {
			return nil, apperrors.BadRequest("order_id is required for action status")
		}
		form.Set("order", req.OrderID)
	default:
		return nil, apperrors.BadRequest("Invalid action")
	}
	return form, nil
}

func (c *Client) call(ctx context.Context, action string, form url.Values) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.Upstream("", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(action, "transport_error", started)
		return nil, apperrors.Upstream("", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		c.observe(action, "read_error", started)
		return nil, apperrors.Upstream("", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(action, strconv.Itoa(resp.StatusCode), started)
		c.log.WithFields(map[string]interface{}{
			"action": action,
			"status": resp.StatusCode,
		}).Warn("provider returned non-success status")
		return nil, apperrors.Upstream("", nil)
	}

	c.observe(action, strconv.Itoa(resp.StatusCode), started)
	c.logResponse(action, body)
	return json.RawMessage(body), nil
}

func (c *Client) observe(action, outcome string, started time.Time) {
	metrics.RecordProviderRequest(action, outcome, time.Since(started))
}

// logResponse pulls a few well-known fields out of the opaque provider body
// for the log line. The body itself is never altered.
func (c *Client) logResponse(action string, body []byte) {
	fields := map[string]interface{}{"action": action}
	if v := gjson.GetBytes(body, "order"); v.Exists() {
		fields["provider_order"] = v.String()
	}
	if v := gjson.GetBytes(body, "balance"); v.Exists() {
		fields["provider_balance"] = v.String()
	}
	if v := gjson.GetBytes(body, "error"); v.Exists() {
		fields["provider_error"] = v.String()
	}
	c.log.WithFields(fields).Debug("provider response")
}
