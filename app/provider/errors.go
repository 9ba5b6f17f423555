package provider

import "errors"

var (
	ErrAuthFailed        = errors.New("gateway auth failed")
	ErrOrderCreateFailed = errors.New("gateway order create failed")
	ErrCaptureFailed     = errors.New("gateway capture failed")
	ErrPayoutFailed      = errors.New("gateway payout failed")
)
