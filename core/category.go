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

import "strings"

// FileCategory classifies a file by its extension into a fixed taxonomy.
type FileCategory string

const (
	CategoryText         FileCategory = "text"
	CategoryImage        FileCategory = "image"
	CategoryAudio        FileCategory = "audio"
	CategoryVideo        FileCategory = "video"
	CategoryDocument     FileCategory = "document"
	CategoryArchive      FileCategory = "archive"
	CategorySpreadsheet  FileCategory = "spreadsheet"
	CategoryPresentation FileCategory = "presentation"
	CategoryCode         FileCategory = "code"
	CategoryOther        FileCategory = "other"
)

var extensionCategories = map[string]FileCategory{
	// text
	"txt": CategoryText, "md": CategoryText, "rst": CategoryText,
	"log": CategoryText, "json": CategoryText, "xml": CategoryText,
	"yaml": CategoryText, "yml": CategoryText, "html": CategoryText,

	// image
	"jpg": CategoryImage, "jpeg": CategoryImage, "png": CategoryImage,
	"gif": CategoryImage, "bmp": CategoryImage, "tiff": CategoryImage,
	"webp": CategoryImage, "svg": CategoryImage,

	// audio
	"mp3": CategoryAudio, "wav": CategoryAudio, "flac": CategoryAudio,
	"ogg": CategoryAudio, "m4a": CategoryAudio,

	// video
	"mp4": CategoryVideo, "mkv": CategoryVideo, "avi": CategoryVideo,
	"mov": CategoryVideo, "webm": CategoryVideo,

	// document
	"pdf": CategoryDocument, "doc": CategoryDocument, "docx": CategoryDocument,
	"odt": CategoryDocument, "rtf": CategoryDocument, "epub": CategoryDocument,

	// archive
	"zip": CategoryArchive, "tar": CategoryArchive, "gz": CategoryArchive,
	"rar": CategoryArchive, "7z": CategoryArchive, "bz2": CategoryArchive,

	// spreadsheet
	"xls": CategorySpreadsheet, "xlsx": CategorySpreadsheet,
	"ods": CategorySpreadsheet, "csv": CategorySpreadsheet,

	// presentation
	"ppt": CategoryPresentation, "pptx": CategoryPresentation,
	"odp": CategoryPresentation,

	// code
	"go": CategoryCode, "py": CategoryCode, "js": CategoryCode,
	"ts": CategoryCode, "rs": CategoryCode, "java": CategoryCode,
	"c": CategoryCode, "cpp": CategoryCode, "h": CategoryCode,
	"rb": CategoryCode, "sh": CategoryCode, "sql": CategoryCode,
}

// CategoryForExtension classifies a file extension (with or without a
// leading dot, any case). Unknown extensions map to CategoryOther.
func CategoryForExtension(ext string) FileCategory {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if cat, ok := extensionCategories[ext]; ok {
		return cat
	}
	return CategoryOther
}

// Category classifies the data value by its path extension.
func (v *DataValue) Category() FileCategory {
	return CategoryForExtension(v.Extension())
}

// Valid reports whether c is one of the defined categories.
func (c FileCategory) Valid() bool {
	switch c {
	case CategoryText, CategoryImage, CategoryAudio, CategoryVideo,
		CategoryDocument, CategoryArchive, CategorySpreadsheet,
		CategoryPresentation, CategoryCode, CategoryOther:
		return true
	}
	return false
}
