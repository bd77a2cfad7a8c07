// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package worker

import "errors"

// Configuration errors
var (
	// ErrBrokerRequired indicates a nil broker was passed.
	ErrBrokerRequired = errors.New("broker is required")

	// ErrHandlerRequired indicates a nil job handler was passed.
	ErrHandlerRequired = errors.New("job handler is required")

	// ErrInvalidMaxAttempts indicates maxAttempts must be greater than zero.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// TerminalError wraps a handler error that must not be retried. The
// dispatcher dead-letters the job immediately instead of scheduling a
// redelivery.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string {
	return "terminal: " + e.Err.Error()
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal marks an error as not retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// IsTerminal reports whether err carries a TerminalError anywhere in its
// chain.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
