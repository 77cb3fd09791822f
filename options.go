package mpadec

import (
	"io"
	"log"

	"github.com/pkg/errors"
)

// RVAMode selects which replay gain value is applied to the output.
type RVAMode int

const (
	RVAOff RVAMode = iota
	// RVAMix uses the track gain.
	RVAMix
	// RVAAlbum uses the album gain, or the track gain if there is none.
	RVAAlbum
)

func (m RVAMode) String() string {
	switch m {
	case RVAOff:
		return "off"
	case RVAMix:
		return "mix"
	case RVAAlbum:
		return "album"
	}
	return "invalid"
}

// MaxForceRate is the highest rate accepted by WithForceRate.
const MaxForceRate = 96000

const defaultResyncLimit = 1024

// Option configures a Handle.
//
// Example:
//
//	h, err := mpadec.New(
//	    mpadec.WithRVA(mpadec.RVAAlbum),
//	    mpadec.WithForceMono(),
//	)
type Option func(*options)

type options struct {
	startFrame  int
	frameCount  int // -1 = all
	rva         RVAMode
	downSample  int
	forceRate   int // 0 = native
	forceMono   bool
	bufferSize  int
	resyncLimit int // -1 = unlimited
	maxTagSize  uint32
	synth       Synth
	log         *log.Logger
	verbose     int
}

func defaultOptions() *options {
	return &options{
		frameCount:  -1,
		bufferSize:  SafeBufferSize,
		resyncLimit: defaultResyncLimit,
		synth:       Silence{},
		log:         log.New(io.Discard, "", 0),
	}
}

func (o *options) validate() error {
	switch {
	case o.forceRate < 0 || o.forceRate > MaxForceRate:
		return errors.Wrapf(ErrBadRate, "forced rate %d", o.forceRate)
	case o.downSample < 0 || o.downSample > 2:
		return errors.Wrapf(ErrBadRate, "downsampling mode %d", o.downSample)
	case o.rva < RVAOff || o.rva > RVAAlbum:
		return errors.Wrapf(ErrBadRVA, "mode %d", o.rva)
	case o.bufferSize < 0:
		return errors.Wrapf(ErrBadParam, "buffer size %d", o.bufferSize)
	case o.synth == nil:
		return errors.Wrap(ErrBadParam, "nil synth")
	}
	return nil
}

// WithStartFrame skips the first n frames of the stream.
func WithStartFrame(n int) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.startFrame = n
	}
}

// WithFrameCount stops decoding after n frames. A negative n means no
// limit, which is the default.
func WithFrameCount(n int) Option {
	return func(o *options) {
		o.frameCount = n
	}
}

// WithRVA applies replay gain from the stream's tags to the output scale.
func WithRVA(mode RVAMode) Option {
	return func(o *options) {
		o.rva = mode
	}
}

// WithDownSample decodes at half (1) or a quarter (2) of the native rate.
func WithDownSample(n int) Option {
	return func(o *options) {
		o.downSample = n
	}
}

// WithForceRate resamples the output to hz. 0 turns it off.
func WithForceRate(hz int) Option {
	return func(o *options) {
		o.forceRate = hz
	}
}

// WithForceMono mixes the output down to one channel.
func WithForceMono() Option {
	return func(o *options) {
		o.forceMono = true
	}
}

// WithBufferSize sets the size of the output buffer. A buffer smaller than
// one output block makes DecodeFrame fail with ErrNoSpace.
func WithBufferSize(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}

// WithResyncLimit sets how many bytes of garbage are skipped looking for a
// frame header before giving up with ErrSync. A negative n means never give
// up.
func WithResyncLimit(n int) Option {
	return func(o *options) {
		o.resyncLimit = n
	}
}

// WithMaxTagSize makes ID3v2 tags larger than n bytes be skipped instead of
// read into memory.
func WithMaxTagSize(n uint32) Option {
	return func(o *options) {
		o.maxTagSize = n
	}
}

// WithSynth sets the synthesis stage that turns frames into PCM.
func WithSynth(s Synth) Option {
	return func(o *options) {
		o.synth = s
	}
}

// WithLogger sets where warnings and notes go. By default they are
// discarded.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		o.log = l
	}
}

// WithVerbose sets how chatty the logger is. Level 2 adds tag and format
// notes, level 3 every tag frame and replay gain value.
func WithVerbose(level int) Option {
	return func(o *options) {
		o.verbose = level
	}
}
