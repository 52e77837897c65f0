// Package core defines sentinel errors.
package core

import "errors"

var (
	// Decode arena errors
	ErrNoRoom = errors.New("firestorm: no room in decode arena")

	// Registration errors
	ErrBadNamespace     = errors.New("firestorm: namespace out of range")
	ErrDuplicateID      = errors.New("firestorm: duplicate protocol id in namespace")
	ErrUnknownDecoder   = errors.New("firestorm: decoder not added")
	ErrDuplicateDecoder = errors.New("firestorm: decoder already added")
	ErrProtocolOwned    = errors.New("firestorm: protocol owned by another decoder")
	ErrUnknownProtocol  = errors.New("firestorm: protocol not added to any decoder")
	ErrRegistryBuilt    = errors.New("firestorm: registry already built")

	// Flow subsystem errors
	ErrSubsystemStart = errors.New("firestorm: flow subsystem start failed")

	// Configuration errors
	ErrConfigInvalid = errors.New("firestorm: invalid configuration")

	// Capture source errors
	ErrSourceClosed = errors.New("firestorm: source closed")
)
