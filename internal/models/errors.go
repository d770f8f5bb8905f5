package models

import "errors"

// Fatal errors abort the entire run before any slot is touched.
var (
	// ErrConfigUnavailable is returned when the device context never becomes
	// ready within the bounded backoff window.
	ErrConfigUnavailable = errors.New("device context unavailable")
	// ErrIdentityRejected is returned when the identity gate rejects the PID.
	ErrIdentityRejected = errors.New("identity rejected")
)

// Slot-scoped errors are recovered at the slot boundary and rendered as a
// neutral placeholder; they never propagate to sibling slots.
var (
	ErrSlotMisconfigured = errors.New("slot misconfigured")
	ErrBidNetwork        = errors.New("bid request failed")
	ErrBidTimeout        = errors.New("bid request timed out")
	ErrInvalidCreative   = errors.New("invalid creative")
	ErrRenderFailure     = errors.New("creative failed to render")
)

// Outcome labels for terminal slot states, used for metrics and placeholder
// text.
const (
	OutcomeRendered      = "rendered"
	OutcomeMisconfigured = "misconfigured"
	OutcomeBidNetwork    = "bid_network_error"
	OutcomeBidTimeout    = "bid_timeout"
	OutcomeInvalid       = "invalid_creative"
	OutcomeRenderFailed  = "render_failed"
)

// ClassifyOutcome maps a slot pipeline error to its terminal outcome label.
// A nil error means the slot rendered.
func ClassifyOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeRendered
	case errors.Is(err, ErrSlotMisconfigured):
		return OutcomeMisconfigured
	case errors.Is(err, ErrBidTimeout):
		return OutcomeBidTimeout
	case errors.Is(err, ErrBidNetwork):
		return OutcomeBidNetwork
	case errors.Is(err, ErrInvalidCreative):
		return OutcomeInvalid
	default:
		return OutcomeRenderFailed
	}
}
