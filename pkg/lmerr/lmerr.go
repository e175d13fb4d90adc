// Package lmerr holds the error conditions shared by the charlm packages.
// Callers match them with errors.Is; producers wrap them with context.
package lmerr

import "errors"

var (
	// ErrOutOfRange is returned when a symbol id lies outside [0, vocab size).
	ErrOutOfRange = errors.New("out of range")

	// ErrInvalidArgument is returned for non-positive temperatures, lengths,
	// window sizes and empty seeds.
	ErrInvalidArgument = errors.New("invalid argument")
)
