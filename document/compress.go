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


package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/poiesic/docflow/core"
)

// Compress gzips the document content and returns the compressed copy with
// a ".gz" path suffix. Compressing an already-compressed document is an
// error rather than double compression.
func Compress(v *core.DataValue) (*core.DataValue, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if strings.HasSuffix(v.Path, ".gz") {
		return nil, fmt.Errorf("%s is already compressed", v.Path)
	}

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(v.Content); err != nil {
		return nil, fmt.Errorf("compressing %s: %w", v.Path, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing %s: %w", v.Path, err)
	}

	out := v.Clone()
	out.Content = buf.Bytes()
	out.Path = v.Path + ".gz"
	out.ContentType = "application/gzip"
	return out, nil
}

// Decompress reverses Compress.
func Decompress(v *core.DataValue) (*core.DataValue, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	r, err := gzip.NewReader(bytes.NewReader(v.Content))
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", v.Path, err)
	}
	defer r.Close()

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", v.Path, err)
	}

	out := v.Clone()
	out.Content = content
	out.Path = strings.TrimSuffix(v.Path, ".gz")
	out.ContentType = ""
	return out, nil
}
