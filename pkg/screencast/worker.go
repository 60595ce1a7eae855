package screencast

import (
	"fmt"

	"github.com/user/screencast/pkg/ivf"
	"github.com/user/screencast/pkg/ports"
	"github.com/user/screencast/pkg/yuv420"
)

// queueCapacity bounds the frame queue between the caller and the worker.
// A full queue blocks SubmitFrame rather than growing without limit when
// the capture source outpaces the codec.
const queueCapacity = 64

// pendingFrame is one raw frame awaiting encoding. Its duration is
// assigned retroactively, once the next frame arrives or the session ends.
type pendingFrame struct {
	data     []byte
	duration int64
}

// worker owns the codec session, the reusable planar image buffer, and
// the container writer. All three are touched only from the worker
// goroutine; the codec contract forbids concurrent or re-entrant use.
// Frames cross into the worker as one-way ownership transfers through a
// FIFO queue, which keeps presentation timestamps in submission order.
type worker struct {
	codec  ports.Codec
	writer *ivf.Writer
	img    *yuv420.Image
	scale  float64
	logger ports.Logger

	frames chan *pendingFrame
	done   chan struct{}

	pts int64

	// err holds the first unrecoverable failure. Written only by the
	// worker goroutine, read by others only after done is closed.
	err error
}

// setErr records the first failure; later ones are only logged.
func (w *worker) setErr(err error) {
	if w.err == nil {
		w.err = err
	}
}

func newWorker(codec ports.Codec, writer *ivf.Writer, img *yuv420.Image, scale float64, logger ports.Logger) *worker {
	return &worker{
		codec:  codec,
		writer: writer,
		img:    img,
		scale:  scale,
		logger: logger,
		frames: make(chan *pendingFrame, queueCapacity),
		done:   make(chan struct{}),
	}
}

// run is the worker goroutine. It consumes frames in submission order
// until the queue is closed, then drains the codec, finalizes the
// container and signals completion.
func (w *worker) run() {
	for frame := range w.frames {
		w.encodeFrame(frame)
	}
	w.finish()
	close(w.done)
}

// submit hands a finalized frame to the worker. Blocks while the queue is
// full. The caller must not touch the frame afterwards.
func (w *worker) submit(frame *pendingFrame) {
	w.frames <- frame
}

// beginFinish closes the queue so the worker finishes after all frames
// submitted so far have been encoded.
func (w *worker) beginFinish() {
	close(w.frames)
}

// encodeFrame converts one frame and encodes it once per timebase tick of
// its duration. Passing the whole duration to a single encode call
// produced visibly worse quality with the block codec, so the duration is
// expanded into repeated single-tick calls instead.
func (w *worker) encodeFrame(frame *pendingFrame) {
	if err := yuv420.Convert(frame.data, w.scale, w.img); err != nil {
		w.logger.Warn("Dropping frame: %s", err)
		return
	}
	for i := int64(0); i < frame.duration; i++ {
		packets, err := w.codec.Encode(w.img, w.pts, 1)
		if err != nil {
			w.setErr(fmt.Errorf("%w: %v", ErrCodec, err))
			w.logger.Error("Failed to encode frame: %s", err)
			return
		}
		w.writePackets(packets)
	}
}

// writePackets appends emitted packets to the container. The timestamp
// cursor advances by each packet's own duration; codec-side buffering
// means packets are not 1:1 with input frames.
func (w *worker) writePackets(packets []ports.Packet) int {
	for _, pkt := range packets {
		if err := w.writer.WritePacket(pkt.Data, w.pts); err != nil {
			w.setErr(err)
			w.logger.Error("Failed to write packet: %s", err)
		}
		marker := ""
		if pkt.Keyframe {
			marker = "[K] "
		}
		w.logger.Debug("  #%03d %spts=%d sz=%d", w.writer.FrameCount(), marker, w.pts, len(pkt.Data))
		w.pts += pkt.Duration
	}
	return len(packets)
}

// finish drains the codec's internal backlog, then finalizes the file.
// A real codec eventually reports an empty backlog, so the loop
// terminates.
func (w *worker) finish() {
	for {
		packets, err := w.codec.Flush(w.pts)
		if err != nil {
			w.setErr(fmt.Errorf("%w: %v", ErrCodec, err))
			w.logger.Error("Failed to flush codec: %s", err)
			break
		}
		if w.writePackets(packets) == 0 {
			break
		}
	}

	if err := w.codec.Close(); err != nil {
		w.logger.Error("Failed to close codec: %s", err)
	}
	if err := w.writer.Finalize(); err != nil {
		w.setErr(err)
		w.logger.Error("Failed to finalize recording: %s", err)
	}
	w.logger.Debug("Recording finished with %d packets", w.writer.FrameCount())
}
