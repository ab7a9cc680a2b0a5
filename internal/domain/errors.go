package domain

import "errors"

// Sentinel errors shared across the service and repository layers. Handlers
// map them onto HTTP status codes; callers test with errors.Is.
var (
	// Validation and lookup.
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrMissingGatewayConfig = errors.New("personal gateway selected but no gateway configuration provided")

	// Workflow.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrApprovalDecided   = errors.New("approval request already decided")

	// Payments.
	ErrInvalidTarget        = errors.New("unknown payment target")
	ErrGatewayCommunication = errors.New("gateway communication failed")
	ErrGatewayVerification  = errors.New("gateway rejected verification")
	ErrAmountMismatch       = errors.New("verified amount does not match expected amount")
	ErrAlreadyProcessed     = errors.New("payment already processed")
	ErrPaymentCancelled     = errors.New("payment cancelled by payer")

	// Wallet ledger.
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSameWallet          = errors.New("source and destination wallets are the same")
	ErrWalletInactive      = errors.New("wallet is not active")

	// Auth.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrForbidden          = errors.New("forbidden")

	// Uniqueness.
	ErrDuplicate = errors.New("duplicate record")
)

// IsNotFound reports whether err represents a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err represents a state conflict the caller can
// surface as 409: replayed payments, decided approvals, duplicate rows.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrApprovalDecided) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsValidation reports whether err represents bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrMissingGatewayConfig) ||
		errors.Is(err, ErrInvalidTarget) ||
		errors.Is(err, ErrSameWallet)
}

// IsAuthError reports whether err is an authentication or authorisation
// failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrForbidden)
}
