// Package vp8encoder provides a VP8 codec session using libvpx.
package vp8encoder

/*
#cgo pkg-config: vpx
#include <vpx/vpx_encoder.h>
#include <vpx/vp8cx.h>
#include <stdlib.h>
#include <string.h>

static vpx_codec_iface_t* get_vp8_interface() {
    return vpx_codec_vp8_cx();
}

// Wrapper for vpx_codec_enc_init (it's an ABI-versioned macro)
static vpx_codec_err_t init_encoder(vpx_codec_ctx_t *ctx, vpx_codec_iface_t *iface,
                                    vpx_codec_enc_cfg_t *cfg) {
    return vpx_codec_enc_init_ver(ctx, iface, cfg, 0, VPX_ENCODER_ABI_VERSION);
}

// Helper functions to access packet data
static int is_frame_packet(const vpx_codec_cx_pkt_t *pkt) {
    return pkt->kind == VPX_CODEC_CX_FRAME_PKT;
}

static void* get_frame_buf(const vpx_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.buf;
}

static size_t get_frame_sz(const vpx_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.sz;
}

static int is_keyframe(const vpx_codec_cx_pkt_t *pkt) {
    return (pkt->data.frame.flags & VPX_FRAME_IS_KEY) != 0;
}

static vpx_codec_pts_t get_frame_pts(const vpx_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.pts;
}

static unsigned long get_frame_duration(const vpx_codec_cx_pkt_t *pkt) {
    return pkt->data.frame.duration;
}

// Helper to copy one row into a plane at the given byte offset
static void copy_plane_row(unsigned char *plane, int offset, const void *src, size_t n) {
    memcpy(plane + offset, src, n);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/user/screencast/pkg/ivf"
	"github.com/user/screencast/pkg/ports"
	"github.com/user/screencast/pkg/yuv420"
)

// Encoder implements ports.Codec for VP8 via libvpx. A session is bound
// to one goroutine; libvpx contexts are not re-entrant.
type Encoder struct {
	codec *C.vpx_codec_ctx_t
	cfg   *C.vpx_codec_enc_cfg_t
	raw   *C.vpx_image_t

	width  int
	height int
}

// New creates a VP8 session with default configuration at the given
// dimensions and timebase rate.
func New(width, height, fps int) (ports.Codec, error) {
	e := &Encoder{width: width, height: height}

	e.codec = (*C.vpx_codec_ctx_t)(C.malloc(C.sizeof_vpx_codec_ctx_t))
	if e.codec == nil {
		return nil, fmt.Errorf("failed to allocate codec context")
	}
	C.memset(unsafe.Pointer(e.codec), 0, C.sizeof_vpx_codec_ctx_t)

	e.cfg = (*C.vpx_codec_enc_cfg_t)(C.malloc(C.sizeof_vpx_codec_enc_cfg_t))
	if e.cfg == nil {
		C.free(unsafe.Pointer(e.codec))
		return nil, fmt.Errorf("failed to allocate encoder config")
	}

	iface := C.get_vp8_interface()
	if iface == nil {
		e.cleanup()
		return nil, fmt.Errorf("VP8 codec interface not found")
	}

	if res := C.vpx_codec_enc_config_default(iface, e.cfg, 0); res != C.VPX_CODEC_OK {
		e.cleanup()
		return nil, fmt.Errorf("failed to get default codec config: %s", errString(res))
	}

	e.cfg.g_w = C.uint(width)
	e.cfg.g_h = C.uint(height)
	e.cfg.g_timebase.num = 1
	e.cfg.g_timebase.den = C.int(fps)
	e.cfg.g_error_resilient = C.VPX_ERROR_RESILIENT_DEFAULT

	if res := C.init_encoder(e.codec, iface, e.cfg); res != C.VPX_CODEC_OK {
		e.cleanup()
		return nil, fmt.Errorf("failed to initialize encoder: %s", errString(res))
	}

	e.raw = (*C.vpx_image_t)(C.malloc(C.sizeof_vpx_image_t))
	if e.raw == nil {
		C.vpx_codec_destroy(e.codec)
		e.cleanup()
		return nil, fmt.Errorf("failed to allocate raw frame")
	}
	if C.vpx_img_alloc(e.raw, C.VPX_IMG_FMT_I420, C.uint(width), C.uint(height), 16) == nil {
		C.free(unsafe.Pointer(e.raw))
		e.raw = nil
		C.vpx_codec_destroy(e.codec)
		e.cleanup()
		return nil, fmt.Errorf("failed to allocate image buffer")
	}

	return e, nil
}

// FourCC returns the VP8 container tag.
func (e *Encoder) FourCC() uint32 {
	return ivf.FourCCVP8
}

// Encode submits one planar image for duration ticks starting at pts and
// collects any packets the codec has ready.
func (e *Encoder) Encode(img *yuv420.Image, pts, duration int64) ([]ports.Packet, error) {
	if e.codec == nil {
		return nil, fmt.Errorf("encoder closed")
	}

	e.copyPlanes(img)

	res := C.vpx_codec_encode(e.codec, e.raw, C.vpx_codec_pts_t(pts), C.ulong(duration), 0, C.VPX_DL_REALTIME)
	if res != C.VPX_CODEC_OK {
		return nil, fmt.Errorf("encode failed: %s", errString(res))
	}
	return e.collect(), nil
}

// Flush asks the codec to emit buffered packets. An empty result means
// the backlog is drained.
func (e *Encoder) Flush(pts int64) ([]ports.Packet, error) {
	if e.codec == nil {
		return nil, fmt.Errorf("encoder closed")
	}

	res := C.vpx_codec_encode(e.codec, nil, C.vpx_codec_pts_t(pts), 1, 0, C.VPX_DL_REALTIME)
	if res != C.VPX_CODEC_OK {
		return nil, fmt.Errorf("flush failed: %s", errString(res))
	}
	return e.collect(), nil
}

// Close releases the codec session and image buffer.
func (e *Encoder) Close() error {
	if e.codec != nil {
		C.vpx_codec_destroy(e.codec)
	}
	e.cleanup()
	return nil
}

// copyPlanes copies the padded planar buffer into the C-allocated image,
// row by row since strides may differ.
func (e *Encoder) copyPlanes(img *yuv420.Image) {
	yStride := int(e.raw.stride[0])
	uStride := int(e.raw.stride[1])
	vStride := int(e.raw.stride[2])

	cw, ch := (img.Width+1)/2, (img.Height+1)/2

	copyPlane(e.raw.planes[0], yStride, img.Y, img.YStride, img.Width, img.Height)
	copyPlane(e.raw.planes[1], uStride, img.U, img.CStride, cw, ch)
	copyPlane(e.raw.planes[2], vStride, img.V, img.CStride, cw, ch)
}

func copyPlane(dst *C.uchar, dstStride int, src []byte, srcStride, width, rows int) {
	for y := 0; y < rows; y++ {
		row := src[y*srcStride : y*srcStride+width]
		C.copy_plane_row(dst, C.int(y*dstStride), unsafe.Pointer(&row[0]), C.size_t(width))
	}
}

// collect drains the codec's ready packets.
func (e *Encoder) collect() []ports.Packet {
	var packets []ports.Packet
	var iter C.vpx_codec_iter_t
	for {
		pkt := C.vpx_codec_get_cx_data(e.codec, &iter)
		if pkt == nil {
			break
		}
		if C.is_frame_packet(pkt) == 0 {
			continue
		}
		packets = append(packets, ports.Packet{
			Data:     C.GoBytes(C.get_frame_buf(pkt), C.int(C.get_frame_sz(pkt))),
			PTS:      int64(C.get_frame_pts(pkt)),
			Duration: int64(C.get_frame_duration(pkt)),
			Keyframe: C.is_keyframe(pkt) != 0,
		})
	}
	return packets
}

func (e *Encoder) cleanup() {
	if e.raw != nil {
		C.vpx_img_free(e.raw)
		C.free(unsafe.Pointer(e.raw))
		e.raw = nil
	}
	if e.codec != nil {
		C.free(unsafe.Pointer(e.codec))
		e.codec = nil
	}
	if e.cfg != nil {
		C.free(unsafe.Pointer(e.cfg))
		e.cfg = nil
	}
}

func errString(res C.vpx_codec_err_t) string {
	return C.GoString(C.vpx_codec_err_to_string(res))
}

// Ensure Encoder implements ports.Codec
var _ ports.Codec = (*Encoder)(nil)
