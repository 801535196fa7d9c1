package dispatcher

import (
	"errors"

	"github.com/OSINTfan/sso-1/internal/attestation"
	"github.com/OSINTfan/sso-1/internal/store"
	"github.com/OSINTfan/sso-1/internal/validation"
)

// Error is a dispatch-level failure with a stable code.
type Error struct {
	Code   string
	Reason string
}

func (e *Error) Error() string { return "dispatcher: " + e.Reason }

var (
	ErrUnknownInstruction = &Error{Code: "UNKNOWN_INSTRUCTION", Reason: "instruction kind outside the closed set"}
	ErrBadParams          = &Error{Code: "BAD_PARAMS", Reason: "params type does not match instruction kind"}
)

// ErrorCode extracts the stable machine-readable code from any error
// produced by the verification or persistence layers. Unknown errors map
// to INTERNAL so callers always get a code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	var ae *attestation.Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	var ve *validation.Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	var authErr *store.AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	var acctErr *store.AccountError
	if errors.As(err, &acctErr) {
		return acctErr.Code
	}
	return "INTERNAL"
}
