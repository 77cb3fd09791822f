package mpadec

import (
	"fmt"
	"math"

	"ktkr.us/pkg/mpadec/id3"
)

const (
	sampleSize = 2 // signed 16 bit

	// fixed point base of the n-to-m resampler step
	ntomMul = 32768
	// largest upsampling factor the output buffer is sized for
	ntomMax = 8

	// SafeBufferSize holds one output block of any stream at up to
	// ntomMax times upsampling.
	SafeBufferSize = sampleSize * 2 * 1152 * ntomMax
)

// Format is the PCM output format: signed 16 bit little endian samples,
// interleaved when there are 2 channels.
type Format struct {
	Rate     int
	Channels int
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, s16le", f.Rate, f.Channels)
}

// outputFormat picks the output format for the current frame and reports
// whether it differs from the previous one.
func (h *Handle) outputFormat() bool {
	hd := &h.frame.Header
	f := Format{
		Rate:     hd.SampleRate >> uint(h.opts.downSample),
		Channels: hd.Channels(),
	}
	if h.opts.forceRate > 0 {
		f.Rate = h.opts.forceRate
	}
	if h.opts.forceMono {
		f.Channels = 1
	}
	changed := f != h.format
	h.format = f
	return changed
}

// decodeUpdate sets up the output stage for the current frame and format.
func (h *Handle) decodeUpdate() {
	var (
		native = h.frame.SampleRate
		spf    = h.frame.SamplesPerFrame()
		rate   = h.format.Rate
	)
	switch rate {
	case native:
		h.downSample = 0
	case native >> 1:
		h.downSample = 1
	case native >> 2:
		h.downSample = 2
	default:
		h.downSample = 3
	}

	if h.downSample < 3 {
		h.outBlock = sampleSize * h.format.Channels * (spf >> uint(h.downSample))
	} else {
		step := ntomMul * rate / native
		h.outBlock = sampleSize * h.format.Channels * ((ntomMul - 1 + spf*step) / ntomMul)
	}
	h.updateScale()
	h.notef(2, "mpadec: output %s, %d byte blocks of %v, downsampling mode %d",
		h.format, h.outBlock, h.frame.FrameDuration(), h.downSample)
}

// updateScale derives the output scale from the replay gain selected by
// the RVA mode. The scale is lowered if the peak would clip.
func (h *Handle) updateScale() {
	var gain, peak float64
	if h.opts.rva != RVAOff {
		scope := id3.Track
		if h.opts.rva == RVAAlbum {
			if _, ok := h.rva.Get(id3.Album); ok {
				scope = id3.Album
			}
		}
		if g, ok := h.rva.Get(scope); ok {
			gain, peak = g.Gain, g.Peak
		}
	}
	scale := math.Pow(10, gain/20)
	if peak*scale > 1 {
		scale = 1 / peak
	}
	h.scale = scale
	h.notef(3, "mpadec: RVA gain %gdB peak %g, scale %g", gain, peak, scale)
}
