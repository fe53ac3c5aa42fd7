package paywall

import "errors"

var (
	// ErrBackendUnavailable covers transport failures and non-2xx responses from the billing backend.
	ErrBackendUnavailable = errors.New("billing backend request failed")
	// ErrEntitlementNotActivated means the backend accepted the call but the entitlement is inactive.
	ErrEntitlementNotActivated = errors.New("subscription not activated")

	ErrUnknownOffering    = errors.New("offering not found in catalog")
	ErrPurchaseInProgress = errors.New("purchase already in progress")
	ErrRestoreInProgress  = errors.New("restore already in progress")
	ErrRefreshInProgress  = errors.New("offerings refresh already in progress")
	ErrNothingToDismiss   = errors.New("success confirmation is not shown")

	ErrMissingAppUserID  = errors.New("app user ID is required")
	ErrNilBillingAPI     = errors.New("billing API is required")
	ErrNilEntitlements   = errors.New("entitlement client is required")
	ErrEmptyCatalog      = errors.New("catalog has no offerings")
	ErrDuplicateOffering = errors.New("duplicate offering identifier")
	ErrInvalidOffering   = errors.New("offering requires identifier, title and price")
	ErrInvalidDefault    = errors.New("default offering is not in catalog")
	ErrLoadCatalog       = errors.New("failed to load catalog file")
)
