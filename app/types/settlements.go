package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type StartSettlementRequest struct {
	RequestID string `json:"request_id"`
	BuyerRef  string `json:"buyer_ref"`
	ProductID string `json:"product_id"`
}

func NewStartSettlementRequestFromContext(ctx echo.Context) (*StartSettlementRequest, error) {
	var body StartSettlementRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.RequestID = strings.TrimSpace(body.RequestID)
	if body.RequestID == "" {
		body.RequestID = strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
	}
	body.BuyerRef = strings.TrimSpace(body.BuyerRef)
	body.ProductID = strings.TrimSpace(body.ProductID)

	return &body, nil
}

func (r *StartSettlementRequest) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.BuyerRef == "" {
		return errors.New("buyer_ref is required")
	}
	if r.ProductID == "" {
		return errors.New("product_id is required")
	}
	return nil
}

type GetSettlementRequest struct {
	ID uint64 `json:"id"`
}

func NewGetSettlementRequestFromContext(ctx echo.Context) (*GetSettlementRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetSettlementRequest{ID: id}, nil
}

func (r *GetSettlementRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid settlement id")
	}
	return nil
}

type CloseApprovalRequest struct {
	Hash   string `json:"hash"`
	Action string `json:"action"`
}

func NewCloseApprovalRequestFromContext(ctx echo.Context, action string) (*CloseApprovalRequest, error) {
	return &CloseApprovalRequest{
		Hash:   strings.TrimSpace(ctx.Param("hash")),
		Action: action,
	}, nil
}

func (r *CloseApprovalRequest) Validate() error {
	if r.Hash == "" {
		return errors.New("approval hash is required")
	}
	if r.Action != "return" && r.Action != "cancel" {
		return errors.New("action must be return or cancel")
	}
	return nil
}

type CheckEntitlementRequest struct {
	ProductID    string `json:"product_id"`
	SettlementID uint64 `json:"settlement_id"`
}

func NewCheckEntitlementRequestFromContext(ctx echo.Context) (*CheckEntitlementRequest, error) {
	req := &CheckEntitlementRequest{
		ProductID: strings.TrimSpace(ctx.Param("id")),
	}

	if raw := strings.TrimSpace(ctx.QueryParam("settlement_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		req.SettlementID = id
	}

	return req, nil
}

func (r *CheckEntitlementRequest) Validate() error {
	if r.ProductID == "" {
		return errors.New("product id is required")
	}
	return nil
}

type SettlementResponse struct {
	ID             uint64 `json:"id"`
	RequestID      string `json:"request_id"`
	BuyerRef       string `json:"buyer_ref"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	Retriable      bool   `json:"retriable"`
	Message        string `json:"message,omitempty"`
	OrderID        string `json:"order_id,omitempty"`
	ApprovalURL    string `json:"approval_url,omitempty"`
	PaymentID      string `json:"payment_id,omitempty"`
	CapturedAmount string `json:"captured_amount,omitempty"`
	PlatformShare  string `json:"platform_share,omitempty"`
	SellerShare    string `json:"seller_share,omitempty"`
	PayoutBatchID  string `json:"payout_batch_id,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type SettlementEnvelopeResponse struct {
	Settlement *SettlementResponse `json:"settlement"`
}

type EntitlementResponse struct {
	Entitled bool `json:"entitled"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
