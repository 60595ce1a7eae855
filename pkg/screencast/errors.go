package screencast

import "errors"

var (
	// ErrConfiguration means the codec could not be created or initialized.
	ErrConfiguration = errors.New("codec configuration failed")

	// ErrInvalidFrameSize means the requested dimensions are non-positive
	// or odd. Chroma subsampling requires even dimensions.
	ErrInvalidFrameSize = errors.New("invalid frame size")

	// ErrCodec means an encode call failed. Per-frame codec errors are
	// logged and the frame dropped; this sentinel is for wrapping.
	ErrCodec = errors.New("codec error")
)
