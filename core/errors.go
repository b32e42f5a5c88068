package core

import (
	"errors"

	"github.com/signalsfoundry/starcat/catalog"
)

var (
	// ErrMissingInput means a column a stage requires is absent.
	ErrMissingInput = errors.New("missing input")
	// ErrInvalidSelection means the requested strategy or column cannot be
	// satisfied by the catalog.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrInvalidFrame means an unrecognised coordinate frame token.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrSchema is re-exported so callers can depend on core.* only.
	ErrSchema = catalog.ErrSchema
)
