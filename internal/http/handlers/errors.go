// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, not_found) mirror common HTTP
//     status semantics to aid interoperability.
//   - Webhook verification failures reuse the payments package codes
//     (missing_signature, invalid_signature, signature_expired, invalid_payload,
//     missing_metadata, invalid_metadata) so the gateway dashboard shows why an
//     event was refused.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "store_unavailable",
//     "message": "reconciliation temporarily unavailable; retry later"
//   }

package handlers

const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeForbidden       = "forbidden"
	ErrCodeNotFound        = "not_found"
	ErrCodeRateLimited     = "too_many_requests"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeInternal        = "internal_error"

	// Domain-specific:
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeReconcileFailed  = "reconcile_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeInvalidOutcome   = "invalid_outcome"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
