package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExchangeInProgress is returned when a chat message is sent while
	// another exchange is still waiting on the backend.
	ErrExchangeInProgress = errors.New("a chat exchange is already in progress")

	// ErrSchedulerClosed is returned by a sync scheduler after Close.
	ErrSchedulerClosed = errors.New("sync scheduler closed")
)

// RequestError is the single error kind for failed backend calls: transport
// failures carry Err, HTTP failures carry Status and the raw Body.
type RequestError struct {
	Op     string // "chat", "get-quotation", "sync-quotation", ...
	Status int
	Body   []byte
	Err    error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("request failed [%s]: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("request failed [%s]: HTTP %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("request failed [%s]: %s", e.Op, e.Message())
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Message returns the backend's "error" field when the body carries one,
// otherwise a generic HTTP status line.
func (e *RequestError) Message() string {
	var payload struct {
		Error string `json:"error"`
	}
	if len(e.Body) > 0 && json.Unmarshal(e.Body, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
		return payload.Error
	}
	if e.Status == 0 && e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// ConfigError represents errors loading configuration
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// StoreError represents errors in the reference backend's session store
type StoreError struct {
	Op        string // "open", "load", "save", "migrate"
	SessionID string
	Err       error
}

func (e *StoreError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("store error: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store error: %s %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
