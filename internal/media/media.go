// Package media renders public URLs for stored images.
package media

import (
	"fmt"
	"strings"
)

// thumbnailSizes are the rendition sizes the image pipeline materializes.
// Requested sizes snap up to the nearest rendition.
var thumbnailSizes = []int{60, 120, 255, 510, 540, 1080}

// URLRenderer turns storage paths into URLs the client can fetch.
type URLRenderer interface {
	// ImageURL returns the URL of the original image.
	ImageURL(path string) string
	// ThumbnailURL returns the URL of a rendition of the image at the
	// normalized size.
	ThumbnailURL(path string, size int) string
}

// NormalizeSize snaps a requested thumbnail size to the nearest available
// rendition, clamping to the largest one. Non-positive sizes get the default
// rendition.
func NormalizeSize(size int) int {
	if size <= 0 {
		return 255
	}
	for _, s := range thumbnailSizes {
		if size <= s {
			return s
		}
	}
	return thumbnailSizes[len(thumbnailSizes)-1]
}

// BaseURLRenderer renders URLs under a static media base URL, the layout a
// CDN or object-store bucket exposes.
type BaseURLRenderer struct {
	base string
}

// NewBaseURLRenderer builds a renderer rooted at base.
func NewBaseURLRenderer(base string) *BaseURLRenderer {
	return &BaseURLRenderer{base: strings.TrimRight(base, "/")}
}

func (r *BaseURLRenderer) ImageURL(path string) string {
	return r.base + "/" + strings.TrimLeft(path, "/")
}

func (r *BaseURLRenderer) ThumbnailURL(path string, size int) string {
	size = NormalizeSize(size)
	return fmt.Sprintf("%s/thumbnails/%dx%d/%s", r.base, size, size, strings.TrimLeft(path, "/"))
}
