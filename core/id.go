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

import (
	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// FileID identifies a file moving through the pipeline.
type FileID = uuid.UUID

// DocumentID identifies the logical document a file belongs to.
type DocumentID = uuid.UUID

// NewFileID generates a fresh random file identifier.
func NewFileID() FileID {
	return uuid.New()
}

// FileIDFromContent derives a deterministic file ID from raw content using
// BLAKE2b hashing, so that identical bytes always map to the same ID. This
// is what makes stage handlers safe to re-run on redelivered jobs.
func FileIDFromContent(data []byte) FileID {
	h, _ := blake2b.New(16, nil) // 16 bytes = 128 bits
	h.Write(data)
	sum := h.Sum(nil)

	var id uuid.UUID
	copy(id[:], sum)
	// Stamp version/variant bits so the result is a well-formed UUID.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
