// Package services defines the business logic for clustering runs and
// persisted cluster definitions. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrNoEvents is returned when a clustering request contains no usable
	// events after validation.
	ErrNoEvents = errors.New("no valid events to cluster")

	// ErrInvalidThresholds is returned when the clustering parameters are out
	// of range (non-positive distance or minimum member count).
	ErrInvalidThresholds = errors.New("max distance and min members must be positive")

	// ErrDefinitionNotFound indicates that the requested cluster definition
	// does not exist.
	ErrDefinitionNotFound = errors.New("cluster definition not found")
)
