package broker

import "errors"

var (
	// ErrNotFound means the requested symbol/expiration has no data. Not
	// retriable.
	ErrNotFound = errors.New("no data for symbol/expiration")
	// ErrRateLimited means the API throttled us; the retry loop backs off.
	ErrRateLimited = errors.New("rate limited by broker API")
	// ErrAuthFailed means credentials were rejected. Not retriable.
	ErrAuthFailed = errors.New("broker authentication failed")
	// ErrMalformed means the response decoded but fails integrity checks.
	// The caller must skip the cycle rather than retry.
	ErrMalformed = errors.New("malformed broker response")
	// ErrUnfilled means an order did not fill within the confirmation
	// window and was canceled.
	ErrUnfilled = errors.New("order not filled within confirmation window")
)
