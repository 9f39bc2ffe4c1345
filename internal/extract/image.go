package extract

import (
	"fmt"
	"slices"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// textTags are the EXIF tags that hold human-written text.
var textTags = map[string]struct{}{
	"Artist":           {},
	"Copyright":        {},
	"ImageDescription": {},
	"UserComment":      {},
	"XPTitle":          {},
	"XPComment":        {},
	"XPAuthor":         {},
	"XPKeywords":       {},
	"XPSubject":        {},
	"Software":         {},
	"Make":             {},
	"Model":            {},
	"HostComputer":     {},
	"DocumentName":     {},
}

// ImageMediaTypes are the image media types that may carry EXIF data.
var ImageMediaTypes = []string{
	"image/jpeg",
	"image/tiff",
	"image/heic",
	"image/heif",
	"image/webp",
	"image/png",
}

// IsImageMediaType reports whether mediaType may carry EXIF data.
func IsImageMediaType(mediaType string) bool {
	return slices.Contains(ImageMediaTypes, mediaType)
}

// ImageText returns the text-bearing EXIF tag values of an image, one per
// line. Images without EXIF data return an empty string and an error.
func ImageText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("exif parser panic: %v", r)
		}
	}()

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return "", fmt.Errorf("failed to locate exif data: %w", err)
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse exif data: %w", err)
	}

	var b strings.Builder
	for _, entry := range entries {
		if _, ok := textTags[entry.TagName]; !ok {
			continue
		}
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "[]\x00"))
		if value == "" {
			continue
		}
		b.WriteString(value)
		b.WriteByte('\n')
	}
	return b.String(), nil
}
