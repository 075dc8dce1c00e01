package payments

import (
	"errors"
	"fmt"
)

// Verification failure codes. They are stable and appear in API responses.
const (
	CodeMissingSignature = "missing_signature"
	CodeInvalidSignature = "invalid_signature"
	CodeSignatureExpired = "signature_expired"
	CodeInvalidPayload   = "invalid_payload"
	CodeMissingMetadata  = "missing_metadata"
	CodeInvalidMetadata  = "invalid_metadata"
)

// ErrEventIgnored is returned for authentic events whose type carries no
// domain intent. Callers acknowledge them without reconciling.
var ErrEventIgnored = errors.New("event ignored")

// VerificationError reports an inbound event that must not be processed and
// must not be retried as-is.
type VerificationError struct {
	Code string
	Msg  string
}

func (e *VerificationError) Error() string {
	if e.Msg == "" {
		return "verification failed: " + e.Code
	}
	return fmt.Sprintf("verification failed: %s: %s", e.Code, e.Msg)
}

func verr(code, format string, args ...any) *VerificationError {
	return &VerificationError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsVerificationError reports whether err (or anything it wraps) is a
// *VerificationError.
func IsVerificationError(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}
