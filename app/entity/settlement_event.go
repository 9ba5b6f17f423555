package entity

import "time"

type SettlementEvent struct {
	ID uint64

	SettlementID uint64

	EventType string

	OldStatus *int32
	NewStatus int32

	Detail *string

	CreatedAt time.Time
}
