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
	"path/filepath"
	"strconv"
	"strings"
)

// Well-known metadata keys carried on a DataValue. Switch conditions and
// stage handlers read these; they never inspect Content directly.
const (
	MetaCategory           = "category"
	MetaLanguage           = "language"
	MetaLanguageConfidence = "language_confidence"
	MetaPageCount          = "page_count"
	MetaSourceFormat       = "source_format"
	MetaTargetFormat       = "target_format"
	MetaOCRText            = "ocr_text"
	MetaAnnotations        = "annotations"
)

// DataValue is a single item flowing through a workflow run: a blob of
// content plus the metadata accumulated by the nodes that touched it.
type DataValue struct {
	// Path is the item's origin path or name; its extension drives
	// category classification.
	Path string
	// Content holds the raw bytes. May be rewritten by transforms.
	Content []byte
	// ContentType is the MIME type, when known.
	ContentType string
	// Metadata carries string key/value pairs produced by transforms.
	Metadata map[string]string
}

// NewDataValue creates a data value with an initialized metadata map.
func NewDataValue(path string, content []byte) *DataValue {
	return &DataValue{
		Path:     path,
		Content:  content,
		Metadata: make(map[string]string),
	}
}

// Clone returns a deep copy. Branches of a workflow run must never share
// a mutable DataValue.
func (v *DataValue) Clone() *DataValue {
	c := &DataValue{
		Path:        v.Path,
		Content:     append([]byte(nil), v.Content...),
		ContentType: v.ContentType,
		Metadata:    make(map[string]string, len(v.Metadata)),
	}
	for k, val := range v.Metadata {
		c.Metadata[k] = val
	}
	return c
}

// SetMeta stores a metadata value, initializing the map if needed.
func (v *DataValue) SetMeta(key, value string) {
	if v.Metadata == nil {
		v.Metadata = make(map[string]string)
	}
	v.Metadata[key] = value
}

// Meta returns a metadata value and whether it is present.
func (v *DataValue) Meta(key string) (string, bool) {
	val, ok := v.Metadata[key]
	return val, ok
}

// MetaFloat returns a metadata value parsed as float64.
func (v *DataValue) MetaFloat(key string) (float64, bool) {
	raw, ok := v.Metadata[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Extension returns the lowercased file extension without the leading dot.
func (v *DataValue) Extension() string {
	ext := filepath.Ext(v.Path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Validate checks that the value is usable by the pipeline.
func (v *DataValue) Validate() error {
	if v == nil {
		return ErrNilDataValue
	}
	if v.Path == "" {
		return ErrEmptyPath
	}
	return nil
}
