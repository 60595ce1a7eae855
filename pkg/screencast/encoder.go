// Package screencast turns an irregular stream of captured screen frames
// into a finalized IVF recording. Frames are pushed once per screen
// update; each frame's display duration is inferred from the gap to the
// next arrival rather than from any encoder tick.
package screencast

import (
	"fmt"
	"math"
	"time"

	"github.com/user/screencast/pkg/ivf"
	"github.com/user/screencast/pkg/ports"
	"github.com/user/screencast/pkg/yuv420"
)

// FPS is the nominal timebase rate in ticks per second. It drives the
// duration-from-elapsed-time math only; frames may arrive at any rate.
const FPS = 30

// CodecFactory creates a codec session with default configuration for the
// given dimensions and timebase rate.
type CodecFactory func(width, height, fps int) (ports.Codec, error)

// Encoder accepts raw frames from a capture source, applies duration
// bookkeeping, and hands frames off to a dedicated encode worker.
//
// SubmitFrame and Finish must be called from a single goroutine, normally
// the capture source's delivery loop.
type Encoder struct {
	worker *worker

	lastFrame     *pendingFrame
	lastFrameTime time.Time
	finished      bool

	// now is replaceable in tests.
	now func() time.Time
}

// New validates the session parameters, initializes the codec and output
// file, and starts the encode worker. All steps are transactional: on any
// failure nothing is left half-open and no file remains on disk.
//
// width and height must be positive and even. scale is an optional
// uniform downscale factor applied to incoming frames before conversion;
// 0 or 1 disables it.
func New(path string, width, height int, scale float64, factory CodecFactory, logger ports.Logger) (*Encoder, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: no codec available", ErrConfiguration)
	}
	if width <= 0 || height <= 0 || width%2 != 0 || height%2 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrameSize, width, height)
	}

	codec, err := factory(width, height, FPS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	writer, err := ivf.NewWriter(path, codec.FourCC(), width, height, ivf.Timebase{Num: 1, Den: FPS})
	if err != nil {
		codec.Close()
		return nil, err
	}

	w := newWorker(codec, writer, yuv420.NewImage(width, height), scale, logger.WithComponent("encoder"))
	go w.run()

	logger.Debug("Encoder initialized: %dx%d at %d fps to %s", width, height, FPS, path)

	return &Encoder{
		worker: w,
		now:    time.Now,
	}, nil
}

// SubmitFrame finalizes the previously buffered frame with a duration
// derived from the elapsed wall-clock time, enqueues it for encoding, and
// buffers raw as the new pending frame. Ownership of raw passes to the
// encoder.
//
// Calling SubmitFrame after Finish is a programming error and panics.
func (e *Encoder) SubmitFrame(raw []byte) {
	if e.finished {
		panic("screencast: SubmitFrame after Finish")
	}
	e.flushLastFrame()
	e.lastFrame = &pendingFrame{data: raw}
}

// flushLastFrame assigns the pending frame its duration and submits it.
// The duration is 1 + round(elapsed*FPS): the +1 floor keeps back-to-back
// frames from producing zero-duration packets, which some decoders
// reject. If the previous frame was already consumed the arrival
// timestamp is left intact.
func (e *Encoder) flushLastFrame() {
	now := e.now()
	if !e.lastFrameTime.IsZero() {
		if e.lastFrame == nil {
			return
		}
		elapsed := now.Sub(e.lastFrameTime)
		e.lastFrame.duration = 1 + int64(math.Round(elapsed.Seconds()*FPS))
		e.worker.submit(e.lastFrame)
		e.lastFrame = nil
	}
	e.lastFrameTime = now
}

// Finish finalizes any still-pending frame, asks the worker to drain the
// codec and close the file, and blocks until that has happened. onDone,
// if non-nil, runs on the calling goroutine after the file is closed, so
// the session owner can safely destroy the encoder upon notification.
// Finish is idempotent; later calls just wait for completion again.
func (e *Encoder) Finish(onDone func()) {
	if e == nil || e.worker == nil {
		if onDone != nil {
			onDone()
		}
		return
	}
	if !e.finished {
		e.finished = true
		e.flushLastFrame()
		e.worker.beginFinish()
	}
	<-e.worker.done
	if onDone != nil {
		onDone()
	}
}

// Err reports the first unrecoverable encode or write failure, wrapped
// with ErrCodec where the codec was at fault. A non-nil result does not
// mean the recording is unusable; packets written before the failure are
// finalized as usual. Only meaningful after Finish has returned.
func (e *Encoder) Err() error {
	if e == nil || e.worker == nil {
		return nil
	}
	return e.worker.err
}

// PacketCount reports the number of packets written to the container.
// Only meaningful after Finish has returned.
func (e *Encoder) PacketCount() uint32 {
	if e == nil || e.worker == nil {
		return 0
	}
	return e.worker.writer.FrameCount()
}
