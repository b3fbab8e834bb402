package filters

import "fmt"

const (
	// maxNativeImageDimension caps width and height so corrupted files that
	// lie about image sizes cannot force huge allocations.
	maxNativeImageDimension = 32768
	// maxNativeImagePixels bounds the total pixel count (64MP).
	maxNativeImagePixels int64 = 64 * 1024 * 1024
)

// ValidateImageBounds rejects image dimensions that are non-positive or too
// large to decode safely.
func ValidateImageBounds(width, height int) error {
	return validateNativeImageBounds(width, height)
}

func validateNativeImageBounds(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image bounds invalid (%d x %d)", width, height)
	}
	if width > maxNativeImageDimension || height > maxNativeImageDimension {
		return fmt.Errorf("image dimension exceeds limit (%d x %d)", width, height)
	}
	if pixels := int64(width) * int64(height); pixels > maxNativeImagePixels {
		return fmt.Errorf("image pixel count %d exceeds limit %d", pixels, maxNativeImagePixels)
	}
	return nil
}
