package types

import "errors"

// Core error kinds. Engines and the dispatcher wrap these with context via
// fmt.Errorf("...: %w", err); front-ends translate with errors.Is.
var (
	ErrTableNotFound  = errors.New("table not found")
	ErrTableExists    = errors.New("table already exists")
	ErrColumnNotFound = errors.New("column not found")
	ErrColumnExists   = errors.New("column already exists")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrInvalidSchema  = errors.New("invalid schema")
	ErrInvalidName    = errors.New("invalid name")
	ErrIncompleteRow  = errors.New("incomplete row")
	ErrStorage        = errors.New("storage failure")
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDataDirEmpty   = errors.New("data directory must not be empty")
)
