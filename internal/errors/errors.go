// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// Standard sentinel errors
var (
	ErrAPIKeyMissing  = errors.New("api key not configured")
	ErrEmptyResponse  = errors.New("empty response from model")
	ErrTimeout        = errors.New("operation timed out")
	ErrConfigInvalid  = errors.New("invalid configuration")
	ErrDataNotFound   = errors.New("data not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnknownPreset  = errors.New("unknown preset")
	ErrStoreClosed    = errors.New("store is closed")
	ErrInvalidRequest = errors.New("invalid request")
)

// UpstreamError represents a failed response from the model endpoint.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error [%d]: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream error [%d]: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError.
func NewUpstreamError(status int, message string, err error) *UpstreamError {
	return &UpstreamError{
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

// ConfigError represents an invalid configuration value. It is never
// fatal: callers substitute a default and continue.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// PipelineError represents a failure inside one ticker's analysis pipeline.
type PipelineError struct {
	Stage     string
	StockCode string
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error [%s] %s: %v", e.Stage, e.StockCode, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(stage, stockCode string, err error) *PipelineError {
	return &PipelineError{
		Stage:     stage,
		StockCode: stockCode,
		Err:       err,
	}
}

// DataError represents a market data retrieval or validation error.
type DataError struct {
	StockCode string
	Market    string
	Message   string
	Err       error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Market, e.StockCode, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Market, e.StockCode, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(stockCode, market, message string, err error) *DataError {
	return &DataError{
		StockCode: stockCode,
		Market:    market,
		Message:   message,
		Err:       err,
	}
}

// IsTimeout reports whether err looks like a transport-level timeout.
// Upstream gateways report timeouts inconsistently, so the message text
// is inspected as a last resort.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if os.IsTimeout(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "deadline exceeded")
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
