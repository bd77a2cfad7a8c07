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
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/poiesic/docflow/core"
)

// ErrEmptyContent indicates a document with no bytes to process.
var ErrEmptyContent = errors.New("document content is empty")

// ValidateFormat checks that a document is processable: it has content, a
// recognized extension, and a sniffed content type. The detected type and
// category are recorded in the document's metadata. An unrecognized
// extension fails with core.ErrUnsupportedFormat, which the pipeline
// treats as terminal.
func ValidateFormat(v *core.DataValue) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if len(v.Content) == 0 {
		return fmt.Errorf("%s: %w", v.Path, ErrEmptyContent)
	}

	category := v.Category()
	if category == core.CategoryOther {
		return fmt.Errorf("%w: unrecognized extension %q", core.ErrUnsupportedFormat, v.Extension())
	}

	if v.ContentType == "" {
		sniffed := http.DetectContentType(v.Content)
		// Strip charset parameters; downstream matching is on media type.
		if i := strings.IndexByte(sniffed, ';'); i > 0 {
			sniffed = sniffed[:i]
		}
		v.ContentType = sniffed
	}
	v.SetMeta(core.MetaCategory, string(category))
	return nil
}

// Cleanup applies named cleanup tasks to a text document in place.
// Supported tasks: "trim_whitespace", "dedupe_lines", "strip_control".
// Unknown task names are an error so typos in workflow definitions surface
// instead of silently doing nothing.
func Cleanup(v *core.DataValue, tasks []string) error {
	if err := v.Validate(); err != nil {
		return err
	}

	for _, task := range tasks {
		switch task {
		case "trim_whitespace":
			lines := strings.Split(string(v.Content), "\n")
			for i, line := range lines {
				lines[i] = strings.TrimRight(line, " \t")
			}
			v.Content = []byte(strings.TrimSpace(strings.Join(lines, "\n")))
		case "dedupe_lines":
			seen := make(map[string]struct{})
			var kept []string
			for _, line := range strings.Split(string(v.Content), "\n") {
				if _, ok := seen[line]; ok && line != "" {
					continue
				}
				seen[line] = struct{}{}
				kept = append(kept, line)
			}
			v.Content = []byte(strings.Join(kept, "\n"))
		case "strip_control":
			v.Content = []byte(strings.Map(func(r rune) rune {
				if r < 32 && r != '\n' && r != '\t' {
					return -1
				}
				return r
			}, string(v.Content)))
		default:
			return fmt.Errorf("unknown cleanup task %q", task)
		}
	}
	return nil
}
