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


package core

import "errors"

// Domain validation errors
var (
	// ErrNilDataValue indicates a nil data value was passed to the pipeline.
	ErrNilDataValue = errors.New("nil data value")

	// ErrEmptyPath indicates the data value has no path or name.
	ErrEmptyPath = errors.New("data value path cannot be empty")

	// ErrUnsupportedFormat indicates a file format the pipeline does not accept.
	// This is a terminal failure: jobs that hit it are failed, not retried.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
