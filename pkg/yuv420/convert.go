package yuv420

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	// Screencast frames arrive as JPEG (and occasionally PNG) payloads.
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// ErrUnsupportedPixelFormat is returned when frame data cannot be decoded
// into a known pixel layout.
var ErrUnsupportedPixelFormat = errors.New("unsupported pixel format")

// Convert decodes raw frame bytes and copies the pixel data into dst's
// planes. The decoded frame must match dst's logical dimensions; when
// scale is set (non-zero and not 1) the frame is resampled to dst's
// dimensions first. Padding rows and columns in dst are left untouched.
func Convert(raw []byte, scale float64, dst *Image) error {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedPixelFormat, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() != dst.Width || bounds.Dy() != dst.Height {
		if scale == 0 || scale == 1 {
			return fmt.Errorf("frame size %dx%d does not match session size %dx%d",
				bounds.Dx(), bounds.Dy(), dst.Width, dst.Height)
		}
		src = resample(src, dst.Width, dst.Height)
	}

	if ycbcr, ok := src.(*image.YCbCr); ok && ycbcr.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		copyI420(ycbcr, dst)
		return nil
	}

	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(src.Bounds())
		draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	}
	rgbaToI420(rgba, dst)
	return nil
}

// resample scales src to width x height with a bilinear kernel.
func resample(src image.Image, width, height int) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return out
}

// copyI420 performs a stride-aware plane copy from an already subsampled
// source into the padded target planes.
func copyI420(src *image.YCbCr, dst *Image) {
	w, h := dst.Width, dst.Height
	cw, ch := (w+1)/2, (h+1)/2

	for y := 0; y < h; y++ {
		copy(dst.Y[y*dst.YStride:y*dst.YStride+w], src.Y[y*src.YStride:])
	}
	for y := 0; y < ch; y++ {
		copy(dst.U[y*dst.CStride:y*dst.CStride+cw], src.Cb[y*src.CStride:])
		copy(dst.V[y*dst.CStride:y*dst.CStride+cw], src.Cr[y*src.CStride:])
	}
}

// rgbaToI420 converts packed RGBA into the padded planar layout using the
// BT.601 studio-swing coefficients.
func rgbaToI420(rgba *image.RGBA, dst *Image) {
	width, height := dst.Width, dst.Height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*rgba.Stride + x*4
			r := int(rgba.Pix[idx])
			g := int(rgba.Pix[idx+1])
			b := int(rgba.Pix[idx+2])

			yVal := ((66*r + 129*g + 25*b + 128) >> 8) + 16
			dst.Y[y*dst.YStride+x] = clamp(yVal)

			if y%2 == 0 && x%2 == 0 {
				uVal := ((-38*r - 74*g + 112*b + 128) >> 8) + 128
				vVal := ((112*r - 94*g - 18*b + 128) >> 8) + 128
				cIdx := (y/2)*dst.CStride + x/2
				dst.U[cIdx] = clamp(uVal)
				dst.V[cIdx] = clamp(vVal)
			}
		}
	}
}

func clamp(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
