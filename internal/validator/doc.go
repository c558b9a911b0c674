// Package validator provides struct validation for configuration and request
// bodies.
//
// This package wraps go-playground/validator to provide:
//   - Field names reported by their json or mapstructure key
//   - Human-readable error messages
//   - Structured validation errors
//
// # Usage
//
//	if err := validator.Validate(cfg); err != nil {
//	    // err is a validator.ValidationErrors
//	}
//
// The validator instance is package-level and thread-safe.
package validator
