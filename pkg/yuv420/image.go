// Package yuv420 provides padded planar YUV 4:2:0 image buffers and
// conversion from captured frame data.
package yuv420

// macroBlockSize is the dimension of a codec macroblock. The codec reads
// the source image in macroblocks and will over-read past the logical
// frame edge unless the planes are padded out to the next multiple.
const macroBlockSize = 16

// Image is a planar YUV 4:2:0 picture. The planes are padded: strides are
// multiples of 16 bytes (the fast path of SIMD colorspace kernels requires
// 16-byte aligned rows) and plane heights are multiples of the macroblock
// size. Pixels outside the logical Width x Height area belong to the
// padding and stay at the neutral fill value.
type Image struct {
	Width  int
	Height int

	YStride int
	CStride int

	Y []byte
	U []byte
	V []byte

	buf []byte
}

func roundUp16(v int) int {
	return ((v - 1) &^ (macroBlockSize - 1)) + macroBlockSize
}

// NewImage allocates a planar buffer for a width x height frame, padded
// for codec consumption. The whole buffer is filled with 128 (neutral luma
// and chroma) so the codec's macroblock over-read at the padded edge does
// not bias adjacent blocks. The buffer is meant to be allocated once per
// session and reused for every frame.
func NewImage(width, height int) *Image {
	yStride := roundUp16(width)
	cStride := roundUp16(yStride / 2)
	yRows := roundUp16(height)
	cRows := yRows / 2

	size := yStride*yRows + 2*cStride*cRows
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 128
	}

	ySize := yStride * yRows
	cSize := cStride * cRows

	return &Image{
		Width:   width,
		Height:  height,
		YStride: yStride,
		CStride: cStride,
		Y:       buf[:ySize:ySize],
		U:       buf[ySize : ySize+cSize : ySize+cSize],
		V:       buf[ySize+cSize:],
		buf:     buf,
	}
}

// BufferSize returns the total allocation in bytes across all planes.
func (img *Image) BufferSize() int {
	return len(img.buf)
}
