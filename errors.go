package main

import "errors"

// Failure classes shared across operations. The fatal ones abort the
// current operation only; per-file problems are recorded in outcome values
// and never stop a batch.
var (
	ErrInaccessibleRoot = errors.New("root directory inaccessible")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrManifestWrite    = errors.New("manifest write failed")
	ErrBusy             = errors.New("another operation of this kind is already running")
)
