package media

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	errs "github.com/wirefox/gramhook-server/internal/err"
	xdraw "golang.org/x/image/draw"

	// Register decoders for the formats the source platform hands us.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Watermark geometry: the overlay targets 20% of the host width and may not
// exceed 40% of either host dimension.
const (
	watermarkWidthFraction = 0.20
	watermarkMaxFraction   = 0.40
	watermarkJPEGQuality   = 90
)

// watermark holds the overlay image, decoded once at startup and composited
// onto every forwarded picture.
type watermark struct {
	overlay image.Image
}

func loadWatermark(path string) (*watermark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrorWatermarkMissing, err)
	}
	defer f.Close()

	overlay, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrorWatermarkMissing, err)
	}

	return &watermark{overlay: overlay}, nil
}

// apply composites the overlay onto the image at srcPath and writes the
// result as a JPEG to dstPath. The overlay is scaled to the target fraction
// of the host width, capped by the max fraction of either dimension, and
// centered with an alpha "over" blend.
func (w *watermark) apply(srcPath, dstPath string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}

	host, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return err
	}

	hostBounds := host.Bounds()
	overlayBounds := w.overlay.Bounds()

	scaledW, scaledH := overlaySize(
		hostBounds.Dx(), hostBounds.Dy(),
		overlayBounds.Dx(), overlayBounds.Dy(),
	)

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), w.overlay, overlayBounds, xdraw.Src, nil)

	composed := image.NewRGBA(image.Rect(0, 0, hostBounds.Dx(), hostBounds.Dy()))
	xdraw.Draw(composed, composed.Bounds(), host, hostBounds.Min, xdraw.Src)

	offset := image.Pt((hostBounds.Dx()-scaledW)/2, (hostBounds.Dy()-scaledH)/2)
	xdraw.Draw(composed, scaled.Bounds().Add(offset), scaled, image.Point{}, xdraw.Over)

	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}

	if err := jpeg.Encode(out, composed, &jpeg.Options{Quality: watermarkJPEGQuality}); err != nil {
		out.Close()
		os.Remove(dstPath)

		return err
	}

	return out.Close()
}

// overlaySize computes the scaled watermark dimensions for a host image:
// 20% of the host width, shrunk further if either dimension would exceed
// 40% of the corresponding host dimension. Aspect ratio is preserved.
func overlaySize(hostW, hostH, overlayW, overlayH int) (int, int) {
	scale := watermarkWidthFraction * float64(hostW) / float64(overlayW)

	if capW := watermarkMaxFraction * float64(hostW) / float64(overlayW); scale > capW {
		scale = capW
	}

	if capH := watermarkMaxFraction * float64(hostH) / float64(overlayH); scale > capH {
		scale = capH
	}

	return max(int(float64(overlayW)*scale), 1), max(int(float64(overlayH)*scale), 1)
}
