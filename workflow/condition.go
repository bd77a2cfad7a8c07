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


package workflow

import (
	"strings"

	"github.com/poiesic/docflow/core"
)

// ConditionKind discriminates switch condition variants.
type ConditionKind string

const (
	// ConditionFileCategory matches the file's category (derived from its
	// extension unless annotated in metadata).
	ConditionFileCategory ConditionKind = "file_category"
	// ConditionFileExtension matches the file's extension, case-insensitive.
	ConditionFileExtension ConditionKind = "file_extension"
	// ConditionLanguage matches a detected-language annotation, subject to
	// a minimum confidence.
	ConditionLanguage ConditionKind = "language"
)

// DefaultMinConfidence is the language-match confidence floor applied when a
// condition does not set its own.
const DefaultMinConfidence = 0.8

// Condition is a predicate a switch node evaluates against a data value.
// Evaluation reads only the value's path and metadata and never errors;
// anything missing or malformed evaluates to false.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	// Category for ConditionFileCategory.
	Category core.FileCategory `json:"category,omitempty"`

	// Extensions for ConditionFileExtension, without leading dots.
	Extensions []string `json:"extensions,omitempty"`

	// Language for ConditionLanguage, as an ISO 639-1 code.
	Language string `json:"language,omitempty"`
	// MinConfidence is the detection confidence floor; zero means
	// DefaultMinConfidence.
	MinConfidence float64 `json:"minConfidence,omitempty"`
}

// Evaluate applies the condition to a data value.
func (c Condition) Evaluate(v *core.DataValue) bool {
	if v == nil {
		return false
	}
	switch c.Kind {
	case ConditionFileCategory:
		// An upstream stage may have classified the item already; the
		// annotation wins over the path extension.
		if annotated, ok := v.Meta(core.MetaCategory); ok {
			return core.FileCategory(annotated) == c.Category
		}
		return v.Category() == c.Category
	case ConditionFileExtension:
		ext := v.Extension()
		for _, want := range c.Extensions {
			if ext == strings.ToLower(strings.TrimPrefix(want, ".")) {
				return true
			}
		}
		return false
	case ConditionLanguage:
		lang, ok := v.Meta(core.MetaLanguage)
		if !ok || !strings.EqualFold(lang, c.Language) {
			return false
		}
		// A language annotation without a recorded confidence counts as
		// a match.
		conf, ok := v.MetaFloat(core.MetaLanguageConfidence)
		if !ok {
			return true
		}
		min := c.MinConfidence
		if min == 0 {
			min = DefaultMinConfidence
		}
		return conf >= min
	}
	return false
}

// Validate checks that the condition is well formed for its kind.
func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionFileCategory:
		if !c.Category.Valid() {
			return &InvalidConditionError{Kind: c.Kind, Reason: "unknown file category"}
		}
	case ConditionFileExtension:
		if len(c.Extensions) == 0 {
			return &InvalidConditionError{Kind: c.Kind, Reason: "no extensions listed"}
		}
	case ConditionLanguage:
		if c.Language == "" {
			return &InvalidConditionError{Kind: c.Kind, Reason: "empty language code"}
		}
		if c.MinConfidence < 0 || c.MinConfidence > 1 {
			return &InvalidConditionError{Kind: c.Kind, Reason: "confidence outside [0, 1]"}
		}
	default:
		return &InvalidConditionError{Kind: c.Kind, Reason: "unknown condition kind"}
	}
	return nil
}
