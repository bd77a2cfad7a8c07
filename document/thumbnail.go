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
	"image"
	"image/png"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/poiesic/docflow/core"
)

// DefaultThumbnailSize is the bounding box edge for generated thumbnails.
const DefaultThumbnailSize = 256

// Thumbnail decodes an image document and returns a PNG thumbnail scaled
// to fit a maxSize square, preserving aspect ratio. Images already inside
// the box are re-encoded without scaling. Zero maxSize selects the
// default. Non-image content fails with core.ErrUnsupportedFormat.
func Thumbnail(v *core.DataValue, maxSize int) (*core.DataValue, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if maxSize <= 0 {
		maxSize = DefaultThumbnailSize
	}

	src, _, err := image.Decode(bytes.NewReader(v.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a decodable image", core.ErrUnsupportedFormat, v.Path)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	scaled := src
	if width > maxSize || height > maxSize {
		outW, outH := maxSize, maxSize
		if width > height {
			outH = height * maxSize / width
		} else {
			outW = width * maxSize / height
		}
		if outW < 1 {
			outW = 1
		}
		if outH < 1 {
			outH = 1
		}
		scaled = scaleNearest(src, outW, outH)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encoding thumbnail for %s: %w", v.Path, err)
	}

	out := v.Clone()
	out.Content = buf.Bytes()
	out.Path = thumbnailPath(v.Path)
	out.ContentType = "image/png"
	return out, nil
}

// scaleNearest does nearest-neighbor scaling. Thumbnails are small preview
// artifacts, not archival renders, so sampling quality is secondary.
func scaleNearest(src image.Image, width, height int) image.Image {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := bounds.Min.Y + y*bounds.Dy()/height
		for x := 0; x < width; x++ {
			sx := bounds.Min.X + x*bounds.Dx()/width
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func thumbnailPath(path string) string {
	base := path
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		base = path[:i]
	}
	return base + "_thumb.png"
}
