package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement lifecycle. Terminal values leave room for intermediate states.
type Status int32

const (
	StatusIdle             Status = 0
	StatusCreating         Status = 1
	StatusAwaitingApproval Status = 2
	StatusCapturing        Status = 3
	StatusPayingOut        Status = 4
	StatusCompleted        Status = 10
	StatusFailed           Status = 20
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	case StatusIdle, StatusCreating, StatusAwaitingApproval, StatusCapturing, StatusPayingOut:
		return false
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCreating:
		return "creating"
	case StatusAwaitingApproval:
		return "awaiting_approval"
	case StatusCapturing:
		return "capturing"
	case StatusPayingOut:
		return "paying_out"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureReason qualifies StatusFailed. ReasonPayoutFailed is the partial
// failure: the buyer was charged but the seller was not paid.
type FailureReason int32

const (
	ReasonNone              FailureReason = 0
	ReasonOrderCreateFailed FailureReason = 1
	ReasonCaptureFailed     FailureReason = 2
	ReasonPayoutFailed      FailureReason = 3
	ReasonTimeout           FailureReason = 4
	ReasonCancelled         FailureReason = 5
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonOrderCreateFailed:
		return "order_create_failed"
	case ReasonCaptureFailed:
		return "capture_failed"
	case ReasonPayoutFailed:
		return "payout_failed"
	case ReasonTimeout:
		return "timeout"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// BuyerRetriable reports whether the buyer may safely retry the purchase:
// no funds moved on these paths.
func (r FailureReason) BuyerRetriable() bool {
	switch r {
	case ReasonOrderCreateFailed, ReasonCaptureFailed, ReasonTimeout, ReasonCancelled:
		return true
	case ReasonNone, ReasonPayoutFailed:
		return false
	default:
		return false
	}
}

// ApprovalOutcome records how the buyer's approval context was closed.
type ApprovalOutcome int32

const (
	ApprovalPending   ApprovalOutcome = 0
	ApprovalReturned  ApprovalOutcome = 1
	ApprovalCancelled ApprovalOutcome = 2
)

type Settlement struct {
	ID uint64

	RequestID string
	BuyerRef  string

	ProductID   string
	ProductName string

	SellerReceiver string

	Amount   decimal.Decimal
	Currency string

	Status Status
	Reason FailureReason

	OrderID     *string
	ApprovalURL *string

	ApprovalHash     string
	ApprovalOutcome  ApprovalOutcome
	ApprovalClosedAt *time.Time

	PaymentID      *string
	CapturedAmount *decimal.Decimal

	PlatformShare *decimal.Decimal
	SellerShare   *decimal.Decimal

	PayoutBatchID  *string
	PayoutAttempts int32
	PayoutNextAt   *time.Time
	PayoutLastErr  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SettlementResult is the terminal outcome handed to consumers. It is the
// only settlement artifact the entitlement gate ever sees.
type SettlementResult struct {
	Status         Status
	Reason         FailureReason
	PaymentID      string
	PayoutBatchID  string
	SellerPayout   decimal.Decimal
	PlatformPayout decimal.Decimal
}

// Result normalizes the settlement into a terminal outcome. Anything that is
// not a fully completed settlement with a capture id collapses to failed, so
// a partial state can never be misread as success downstream.
func (s *Settlement) Result() SettlementResult {
	result := SettlementResult{
		Status: StatusFailed,
		Reason: s.Reason,
	}
	if s.Status != StatusCompleted {
		if !s.Status.Terminal() {
			result.Reason = ReasonNone
		}
		return result
	}
	if s.PaymentID == nil || *s.PaymentID == "" {
		return result
	}

	result.Status = StatusCompleted
	result.Reason = ReasonNone
	result.PaymentID = *s.PaymentID
	if s.PayoutBatchID != nil {
		result.PayoutBatchID = *s.PayoutBatchID
	}
	if s.SellerShare != nil {
		result.SellerPayout = *s.SellerShare
	}
	if s.PlatformShare != nil {
		result.PlatformPayout = *s.PlatformShare
	}
	return result
}
