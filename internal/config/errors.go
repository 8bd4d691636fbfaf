package config

import "fmt"

// Error reports a missing or invalid setting.
type Error struct {
	Key    string
	Value  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("config %s: %s", e.Key, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsEndpoint reports whether the error concerns the scheduler endpoint.
func (e *Error) IsEndpoint() bool { return e.Key == "NOMAD_ENDPOINT" }
