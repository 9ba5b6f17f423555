package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-settlements/app/entity"
	"github.com/vibast-solutions/ms-go-settlements/app/factory"
	"github.com/vibast-solutions/ms-go-settlements/app/mapper"
	"github.com/vibast-solutions/ms-go-settlements/app/provider"
	"github.com/vibast-solutions/ms-go-settlements/app/service"
	"github.com/vibast-solutions/ms-go-settlements/app/types"
)

type SettlementController struct {
	settlementService *service.SettlementService
	logger            logrus.FieldLogger
}

func NewSettlementController(settlementService *service.SettlementService) *SettlementController {
	return &SettlementController{
		settlementService: settlementService,
		logger:            factory.NewModuleLogger("settlements-controller"),
	}
}

func (c *SettlementController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// StartSettlement creates the provider order and responds with the approval
// URL. The capture and payout chain runs in the background; it must outlive
// this request, so it gets a fresh context.
func (c *SettlementController) StartSettlement(ctx echo.Context) error {
	req, err := types.NewStartSettlementRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, started, err := c.settlementService.StartSettlement(ctx.Request().Context(), service.StartSettlementInput{
		RequestID: req.RequestID,
		BuyerRef:  req.BuyerRef,
		ProductID: req.ProductID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrProductFree), errors.Is(err, service.ErrNoSellerReceiver):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrProductNotFound):
			return c.writeError(ctx, http.StatusNotFound, "product not found")
		case errors.Is(err, service.ErrSettlementInFlight), errors.Is(err, service.ErrSettlementAlreadyExists):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		case errors.Is(err, provider.ErrAuthFailed), errors.Is(err, provider.ErrOrderCreateFailed):
			c.requestLogger(ctx).WithError(err).Error("Start settlement provider call failed")
			return c.writeError(ctx, http.StatusBadGateway, "cannot start payment")
		default:
			c.requestLogger(ctx).WithError(err).Error("Start settlement failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	// Launch the run only for a settlement this request created. A replayed
	// request id returns the existing row, whose run is already in flight.
	if started && item.Status == entity.StatusAwaitingApproval {
		go func(id uint64) {
			if _, err := c.settlementService.RunSettlement(context.Background(), id); err != nil {
				c.logger.WithError(err).WithField("settlement_id", id).Error("Settlement run failed")
			}
		}(item.ID)
	}

	return ctx.JSON(http.StatusCreated, &types.SettlementEnvelopeResponse{Settlement: mapper.SettlementToResponse(item)})
}

func (c *SettlementController) GetSettlement(ctx echo.Context) error {
	req, err := types.NewGetSettlementRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.settlementService.GetSettlement(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrSettlementNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "settlement not found")
		}
		c.requestLogger(ctx).WithError(err).Error("Get settlement failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.SettlementEnvelopeResponse{Settlement: mapper.SettlementToResponse(item)})
}

// ApprovalReturn is the provider's return redirect target. The buyer's
// browser lands here after approving the order.
func (c *SettlementController) ApprovalReturn(ctx echo.Context) error {
	return c.closeApproval(ctx, "return", entity.ApprovalReturned)
}

// ApprovalCancel is the provider's cancel redirect target.
func (c *SettlementController) ApprovalCancel(ctx echo.Context) error {
	return c.closeApproval(ctx, "cancel", entity.ApprovalCancelled)
}

func (c *SettlementController) closeApproval(ctx echo.Context, action string, outcome entity.ApprovalOutcome) error {
	req, err := types.NewCloseApprovalRequestFromContext(ctx, action)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	_, err = c.settlementService.CloseApproval(ctx.Request().Context(), req.Hash, outcome)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSettlementNotFound):
			return c.writeError(ctx, http.StatusNotFound, "settlement not found")
		default:
			c.requestLogger(ctx).WithError(err).Error("Close approval failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	message := "Payment approved. You can close this window."
	if outcome == entity.ApprovalCancelled {
		message = "Payment cancelled. You can close this window."
	}
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: message})
}

func (c *SettlementController) CheckEntitlement(ctx echo.Context) error {
	req, err := types.NewCheckEntitlementRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	entitled, err := c.settlementService.CheckEntitlement(ctx.Request().Context(), req.ProductID, req.SettlementID)
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "product not found")
		}
		c.requestLogger(ctx).WithError(err).Error("Check entitlement failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.EntitlementResponse{Entitled: entitled})
}

func (c *SettlementController) requestLogger(ctx echo.Context) logrus.FieldLogger {
	return factory.LoggerWithContext(c.logger, ctx)
}

func (c *SettlementController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
