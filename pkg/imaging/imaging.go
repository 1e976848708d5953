package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/gabriel-vasile/mimetype"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Cap on decoded pixel area; guards against decompression bombs.
const MaxPixels = 50_000_000

// Sniff returns the MIME type detected from the file content itself,
// independent of any declared extension or Content-Type.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// CheckDecodable verifies that data carries a decodable image header of
// one of the registered formats and that its dimensions stay under
// MaxPixels. Only the header is read; the image is never fully decoded.
func CheckDecodable(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("not a decodable image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("image dimensions %dx%d exceed %d megapixel limit",
			cfg.Width, cfg.Height, MaxPixels/1_000_000)
	}
	return nil
}
