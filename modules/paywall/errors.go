package paywall

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/paywall/handler"
	svc "github.com/dmitrymomot/paywall/svc/paywall"
)

var (
	ErrScreenNotFound = errors.New("paywall screen not found")
	ErrNilFactory     = errors.New("controller factory is required")

	ErrUnauthenticated = handler.NewHTTPError(http.StatusUnauthorized, "Please sign in to manage your subscription.")
)

// httpError maps domain errors to the status and message shown to the user.
// Anything unrecognized is returned as is and rendered as a 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrScreenNotFound):
		return handler.NewHTTPError(http.StatusNotFound, "Paywall session expired. Please reload the page.")
	case errors.Is(err, svc.ErrUnknownOffering):
		return handler.NewHTTPError(http.StatusNotFound, "This subscription option is not available.")
	case errors.Is(err, svc.ErrPurchaseInProgress):
		return handler.NewHTTPError(http.StatusConflict, "A purchase is already in progress.")
	case errors.Is(err, svc.ErrRestoreInProgress):
		return handler.NewHTTPError(http.StatusConflict, "Restoring purchases is already in progress.")
	case errors.Is(err, svc.ErrRefreshInProgress):
		return handler.NewHTTPError(http.StatusConflict, "Subscription options are still loading.")
	}
	return err
}
