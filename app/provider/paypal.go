package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	paypalLiveBaseURL    = "https://api.paypal.com"
	paypalSandboxBaseURL = "https://api.sandbox.paypal.com"

	// Refresh the cached token slightly before the provider expires it.
	tokenExpiryMargin = 60 * time.Second
)

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	Mode         string
	BrandName    string
	HTTPTimeout  time.Duration

	// BaseURL overrides the mode-derived endpoint. Used by tests and local
	// provider mocks.
	BaseURL string
}

type PayPalGateway struct {
	cfg     PayPalConfig
	baseURL string
	client  *http.Client

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func NewPayPalGateway(cfg PayPalConfig) *PayPalGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		if strings.EqualFold(strings.TrimSpace(cfg.Mode), "live") {
			baseURL = paypalLiveBaseURL
		} else {
			baseURL = paypalSandboxBaseURL
		}
	}

	return &PayPalGateway{
		cfg:     cfg,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *PayPalGateway) CreateOrder(ctx context.Context, req *OrderRequest) (*Order, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": req.Currency,
					"value":         req.Amount.StringFixed(2),
				},
				"description": req.Description,
				"custom_id":   req.CustomID,
			},
		},
		"application_context": map[string]string{
			"return_url":  req.ReturnURL,
			"cancel_url":  req.CancelURL,
			"brand_name":  g.cfg.BrandName,
			"user_action": "PAY_NOW",
		},
	}

	body, err := g.do(ctx, http.MethodPost, "/v2/checkout/orders", token, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}

	var response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}

	order := &Order{
		ID:     strings.TrimSpace(response.ID),
		Status: strings.TrimSpace(response.Status),
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%w: order id missing", ErrOrderCreateFailed)
	}

	// The approve hyperlink is selected by relation type, never by position.
	for _, link := range response.Links {
		if link.Rel == "approve" {
			order.ApprovalURL = strings.TrimSpace(link.Href)
			break
		}
	}
	if order.ApprovalURL == "" {
		return nil, fmt.Errorf("%w: no approve link in response", ErrOrderCreateFailed)
	}

	return order, nil
}

func (g *PayPalGateway) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is empty", ErrCaptureFailed)
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	body, err := g.do(ctx, http.MethodPost, path, token, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	var response struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Amount struct {
						CurrencyCode string `json:"currency_code"`
						Value        string `json:"value"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	if response.Status != OrderStatusCompleted {
		return nil, fmt.Errorf("%w: capture status is %q", ErrCaptureFailed, response.Status)
	}

	result := &CaptureResult{
		PaymentID: strings.TrimSpace(response.ID),
		Status:    response.Status,
	}
	if result.PaymentID == "" {
		return nil, fmt.Errorf("%w: capture id missing", ErrCaptureFailed)
	}

	if len(response.PurchaseUnits) > 0 && len(response.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := response.PurchaseUnits[0].Payments.Captures[0]
		if amount, err := decimal.NewFromString(strings.TrimSpace(capture.Amount.Value)); err == nil {
			result.Amount = amount
			result.Currency = strings.TrimSpace(capture.Amount.CurrencyCode)
		}
	}

	return result, nil
}

func (g *PayPalGateway) Payout(ctx context.Context, req *PayoutRequest) (*PayoutResult, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	senderBatchID := "payout_batch_" + strings.TrimSpace(req.BatchIDSeed)
	payload := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": senderBatchID,
			"email_subject":   "You have received a payment for your sale",
			"email_message":   req.Note,
		},
		"items": []map[string]interface{}{
			{
				"recipient_type": "EMAIL",
				"amount": map[string]string{
					"value":         req.Amount.StringFixed(2),
					"currency_code": req.Currency,
				},
				"receiver":       req.Receiver,
				"note":           req.Note,
				"sender_item_id": req.ItemID,
			},
		},
	}

	body, err := g.do(ctx, http.MethodPost, "/v1/payments/payouts", token, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	var response struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
		} `json:"batch_header"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}

	batchID := strings.TrimSpace(response.BatchHeader.PayoutBatchID)
	if batchID == "" {
		batchID = senderBatchID
	}

	return &PayoutResult{BatchID: batchID}, nil
}

// accessToken returns a client-credentials bearer token, refreshing the
// cached one when it is close to expiry.
func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Now().Before(g.tokenExp) {
		return g.token, nil
	}

	if strings.TrimSpace(g.cfg.ClientID) == "" || strings.TrimSpace(g.cfg.ClientSecret) == "" {
		return "", fmt.Errorf("%w: client credentials are not configured", ErrAuthFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status=%d body=%s", ErrAuthFailed, resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", fmt.Errorf("%w: access token missing", ErrAuthFailed)
	}

	g.token = payload.AccessToken
	g.tokenExp = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	if payload.ExpiresIn > 0 {
		g.tokenExp = g.tokenExp.Add(-tokenExpiryMargin)
	}

	return g.token, nil
}

func (g *PayPalGateway) do(ctx context.Context, method, path, token string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("paypal request failed: path=%s status=%d body=%s", path, resp.StatusCode, string(body))
	}

	return body, nil
}
