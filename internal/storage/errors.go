package storage

import "errors"

// ErrClosed is returned by in-process backends after Close.
var ErrClosed = errors.New("storage is closed")

// ErrInvalidRecord is returned when a nil or incomplete record is inserted.
var ErrInvalidRecord = errors.New("invalid record")
