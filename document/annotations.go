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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/poiesic/docflow/core"
)

// Annotations returns the document's annotation set, decoded from its
// metadata. A missing or empty annotation entry yields an empty map.
func Annotations(v *core.DataValue) (map[string]string, error) {
	raw, ok := v.Meta(core.MetaAnnotations)
	if !ok || raw == "" {
		return map[string]string{}, nil
	}
	var annotations map[string]string
	if err := json.Unmarshal([]byte(raw), &annotations); err != nil {
		return nil, fmt.Errorf("decoding annotations: %w", err)
	}
	return annotations, nil
}

// ApplyAnnotations merges the given annotations into the document's
// annotation set, in place. Later values win on key collision.
func ApplyAnnotations(v *core.DataValue, annotations map[string]string) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if len(annotations) == 0 {
		return nil
	}

	merged, err := Annotations(v)
	if err != nil {
		return err
	}
	for k, val := range annotations {
		merged[k] = val
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encoding annotations: %w", err)
	}
	v.SetMeta(core.MetaAnnotations, string(encoded))
	return nil
}

// FlattenAnnotations burns the annotation set into the document content as
// a trailing section and removes it from metadata, so the annotations
// survive export to systems that only see content. Returns the flattened
// copy; a document without annotations is returned unchanged.
func FlattenAnnotations(v *core.DataValue) (*core.DataValue, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	annotations, err := Annotations(v)
	if err != nil {
		return nil, err
	}
	if len(annotations) == 0 {
		return v, nil
	}

	keys := make([]string, 0, len(annotations))
	for k := range annotations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.Write(v.Content)
	b.WriteString("\n\n---\nAnnotations:\n")
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(annotations[k])
		b.WriteString("\n")
	}

	out := v.Clone()
	out.Content = []byte(b.String())
	delete(out.Metadata, core.MetaAnnotations)
	return out, nil
}
