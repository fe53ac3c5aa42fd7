package binder

import "errors"

// Common binding errors
var (
	// ErrBinderNotApplicable tells handler.Wrap to skip a binder for this request.
	ErrBinderNotApplicable = errors.New("binder not applicable to request")
	ErrInvalidTarget       = errors.New("bind target must be a non-nil pointer to struct")
	ErrInvalidPath         = errors.New("invalid path parameter")
	ErrInvalidQuery        = errors.New("invalid query parameter")
)
