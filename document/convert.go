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
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/docflow/core"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	markdownHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	markdownEmphasis  = regexp.MustCompile(`(\*\*|__|\*|_)([^*_]+)(\*\*|__|\*|_)`)
	markdownLinkImage = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
)

// Convert rewrites a text-based data value into the target format and
// returns the converted copy. Supported targets are "txt", "md", and
// "html"; anything else fails with core.ErrUnsupportedFormat.
func Convert(v *core.DataValue, targetFormat string) (*core.DataValue, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	target := strings.ToLower(strings.TrimPrefix(targetFormat, "."))
	source := v.Extension()
	if source == "" {
		source = "txt"
	}

	text := string(v.Content)
	var converted string
	switch target {
	case "txt":
		converted = toPlainText(text, source)
	case "md":
		converted = toMarkdown(text, source)
	case "html":
		converted = toHTML(text, source)
	default:
		return nil, fmt.Errorf("%w: cannot convert %q to %q", core.ErrUnsupportedFormat, source, target)
	}

	out := v.Clone()
	out.Content = []byte(converted)
	out.Path = replaceExtension(v.Path, target)
	out.ContentType = contentTypeFor(target)
	out.SetMeta(core.MetaSourceFormat, source)
	out.SetMeta(core.MetaTargetFormat, target)
	return out, nil
}

func toPlainText(text, source string) string {
	switch source {
	case "html", "htm":
		return strings.TrimSpace(htmlTagPattern.ReplaceAllString(text, ""))
	case "md", "markdown":
		text = markdownLinkImage.ReplaceAllString(text, "$1")
		text = markdownHeading.ReplaceAllString(text, "")
		text = markdownEmphasis.ReplaceAllString(text, "$2")
		return strings.TrimSpace(text)
	}
	return text
}

func toMarkdown(text, source string) string {
	switch source {
	case "md", "markdown":
		return text
	case "html", "htm":
		return toPlainText(text, source)
	}
	return text
}

func toHTML(text, source string) string {
	if source == "html" || source == "htm" {
		return text
	}
	var b strings.Builder
	b.WriteString("<html><body>\n")
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(para)
		b.WriteString("</p>\n")
	}
	b.WriteString("</body></html>\n")
	return b.String()
}

func contentTypeFor(format string) string {
	switch format {
	case "txt":
		return "text/plain"
	case "md":
		return "text/markdown"
	case "html":
		return "text/html"
	}
	return "application/octet-stream"
}

func replaceExtension(path, ext string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		return path[:i+1] + ext
	}
	return path + "." + ext
}
