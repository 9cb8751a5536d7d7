package utils

import (
	"errors"
)

// Error definitions
var (
	ErrHomeNotFound      = errors.New("home directory not found")
	ErrNoCurrentContext  = errors.New("no current kubernetes context found")
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrReportWrite       = errors.New("failed to write cluster report")
)
