package metrics

import "codeberg.org/mutker/irrigatectl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrConfiguration
	ErrInvalidPath   = errors.ErrorCode("metrics_invalid_path")

	// Registry Errors
	ErrRegister = errors.ErrorCode("metrics_register_failed")
)
