package adapter

import "fmt"

// DataFetchError is the only error shape an adapter surfaces to its
// caller, per spec.md §4.1. It wraps whatever underlying cause triggered
// the final retry failure.
type DataFetchError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *DataFetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *DataFetchError) Unwrap() error { return e.Cause }

// ConfigError reports missing credentials or invalid parameters. Never
// retried; reported straight to the caller.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: config error: %s", e.Provider, e.Message)
}
