package media

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"

	errs "github.com/wirefox/gramhook-server/internal/err"
	xdraw "golang.org/x/image/draw"
)

// Progressive re-encode parameters for oversized images. Resolution is
// clamped first, then quality drops in fixed steps until the artifact fits
// the target or the floor is reached.
const (
	qualityStart = 85
	qualityStep  = 15
	qualityFloor = 20
	maxWidth     = 1920
	maxHeight    = 1080
)

// compressImage re-encodes the image at srcPath as a JPEG no larger than
// target bytes, writing the result to dstPath. Nothing is written when the
// quality floor is reached without fitting; the caller drops the attachment.
func compressImage(srcPath, dstPath string, target int64) (int64, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}

	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return 0, err
	}

	img = clampResolution(img, maxWidth, maxHeight)

	for quality := qualityStart; quality >= qualityFloor; quality -= qualityStep {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return 0, err
		}

		if int64(buf.Len()) <= target {
			if err := os.WriteFile(dstPath, buf.Bytes(), 0o644); err != nil {
				return 0, err
			}

			return int64(buf.Len()), nil
		}
	}

	return 0, errs.ErrorQualityFloorReached
}

// clampResolution scales the image down to fit within maxW x maxH,
// preserving aspect ratio. Images already within bounds pass through.
func clampResolution(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w <= maxW && h <= maxH {
		return img
	}

	scale := float64(maxW) / float64(w)
	if s := float64(maxH) / float64(h); s < scale {
		scale = s
	}

	dst := image.NewRGBA(image.Rect(0, 0, max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)

	return dst
}
