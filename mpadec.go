// Package mpadec reads MPEG audio streams frame by frame, collecting the
// ID3 metadata and replay gain information interleaved with the audio.
//
// A Handle is driven entirely by its caller. It either pulls from an
// io.Reader (Open) or is fed chunks of bytes (OpenFeed and Feed), in which
// case any step may fail with ErrNeedMore and be retried after feeding more.
// Turning frames into PCM is left to a Synth.
//
// A Handle must not be used from more than one goroutine at a time.
// Separate Handles share nothing.
package mpadec

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pkg/errors"

	"ktkr.us/pkg/mpadec/id3"
	"ktkr.us/pkg/mpadec/id3/id3v1"
	"ktkr.us/pkg/mpadec/mp3"
)

// MetaFlags tell which metadata a Handle has seen.
type MetaFlags int

const (
	// MetaNewID3 is set when a tag has been read since the last call to
	// ID3.
	MetaNewID3 MetaFlags = 1 << iota
	// MetaID3 is set once any ID3 tag has been read.
	MetaID3
)

// Handle decodes one stream at a time.
type Handle struct {
	opts  options
	log   *log.Logger
	synth Synth

	rd   Reader
	feed *feedReader

	num           int // number of the last frame read, -1 before the first
	frame         Frame
	toDecode      bool
	decoderChange bool
	prev          mp3.Header
	havePrev      bool
	resync        int
	vbrChecked    bool
	vbr           *mp3.VBR
	index         []int64 // stream offset of every frame read so far
	audioStart    int64
	streamEnd     int64 // -1 if unknown

	format     Format
	downSample int
	outBlock   int
	buf        []byte
	scale      float64

	tag       *id3.Tag
	rva       id3.RVA
	v1        *id3v1.Tag
	metaFlags MetaFlags
}

// New returns a Handle configured by opts. It has no stream open.
func New(opts ...Option) (*Handle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	h := &Handle{
		opts:  *o,
		log:   o.log,
		synth: o.synth,
		buf:   make([]byte, o.bufferSize),
		tag:   new(id3.Tag),
	}
	h.reset()
	return h, nil
}

func (h *Handle) notef(level int, format string, v ...interface{}) {
	if h.opts.verbose >= level {
		h.log.Printf(format, v...)
	}
}

func (h *Handle) reset() {
	h.rd = nil
	h.feed = nil
	h.num = -1
	h.frame = Frame{}
	h.toDecode = false
	h.decoderChange = true
	h.prev, h.havePrev = mp3.Header{}, false
	h.resync = 0
	h.vbrChecked = false
	h.vbr = nil
	h.index = h.index[:0]
	h.audioStart = 0
	h.streamEnd = -1
	h.format = Format{}
	h.downSample = 0
	h.outBlock = 0
	h.scale = 1
	h.tag.Reset()
	h.rva.Reset()
	h.v1 = nil
	h.metaFlags = 0
	h.synth.Reset()
}

// Open starts decoding r. If r is an io.ReadSeeker, an ID3v1 trailer at its
// end is read right away, and the stream length can be estimated.
func (h *Handle) Open(r io.Reader) error {
	h.Close()
	pos, end := int64(0), int64(-1)
	if rs, ok := r.(io.ReadSeeker); ok {
		var err error
		if pos, err = rs.Seek(0, io.SeekCurrent); err != nil {
			return errors.Wrap(err, "mpadec: open")
		}
		if end, err = h.scanEnd(rs, pos); err != nil {
			return err
		}
	}
	h.rd = newStreamReader(r, pos, end)
	return nil
}

// scanEnd finds the end of the audio data and reads the ID3v1 trailer. It
// returns the size of the stream.
func (h *Handle) scanEnd(rs io.ReadSeeker, pos int64) (int64, error) {
	end, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "mpadec: open")
	}
	h.streamEnd = end
	if end-pos >= id3v1.Size {
		t, err := id3v1.Decode(rs)
		switch {
		case err == nil:
			h.v1 = t
			h.streamEnd -= id3v1.Size
			h.metaFlags |= MetaID3 | MetaNewID3
		case err != id3v1.ErrNoTag:
			return 0, errors.Wrap(err, "mpadec: open")
		}
	}
	if _, err := rs.Seek(pos, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "mpadec: open")
	}
	return end, nil
}

// OpenReader starts decoding from a custom Reader.
func (h *Handle) OpenReader(rd Reader) {
	h.Close()
	h.rd = rd
}

// OpenFeed starts decoding bytes given to Feed.
func (h *Handle) OpenFeed() {
	h.Close()
	h.feed = new(feedReader)
	h.rd = h.feed
}

// Feed appends p to the input of a Handle opened with OpenFeed.
func (h *Handle) Feed(p []byte) error {
	if h.feed == nil {
		return errors.Wrap(ErrNoStream, "not opened for feeding")
	}
	h.feed.feed(p)
	return nil
}

// Close ends decoding of the current stream and forgets its metadata.
func (h *Handle) Close() error {
	h.reset()
	return nil
}

// DecodeFrame decodes the next frame. It returns the frame number and the
// PCM data, which is only valid until the next call.
//
// When the frame read has a new output format, DecodeFrame returns
// ErrNewFormat and decodes the frame on the next call.
func (h *Handle) DecodeFrame() (num int, audio []byte, err error) {
	if h.rd == nil {
		return 0, nil, ErrNoStream
	}
	if len(h.buf) < h.outBlock {
		return h.num, nil, errors.Wrapf(ErrNoSpace, "%d bytes for blocks of %d", len(h.buf), h.outBlock)
	}
	for {
		if h.toDecode {
			h.toDecode = false
			n, err := h.synth.Synthesize(&h.frame, h.format, h.scale, h.buf[:h.outBlock])
			if err != nil {
				return h.frame.Num, nil, errors.Wrapf(err, "mpadec: frame %d", h.frame.Num)
			}
			return h.frame.Num, h.buf[:n], nil
		}
		if err := h.nextFrame(); err != nil {
			return h.num, nil, err
		}
	}
}

// SeekFrame positions the stream so that the next frame decoded is frame
// pos, and returns pos. Frames before the furthest one read so far are
// found through an index; later ones are read and skipped.
func (h *Handle) SeekFrame(pos int) (int, error) {
	if h.rd == nil {
		return 0, ErrNoStream
	}
	if pos < 0 {
		pos = 0
	}
	h.toDecode = false
	h.synth.Reset()

	if pos < len(h.index) {
		if err := h.rd.SeekTo(h.index[pos]); err != nil {
			return h.num + 1, err
		}
		h.num = pos - 1
		return pos, nil
	}
	if len(h.index) > 0 && h.num+1 < len(h.index) {
		// continue from the furthest frame known
		last := len(h.index) - 1
		if err := h.rd.SeekTo(h.index[last]); err != nil {
			return h.num + 1, err
		}
		h.num = last - 1
	}
	for h.num+1 < pos {
		if err := h.readFrame(); err != nil {
			return h.num + 1, err
		}
	}
	h.toDecode = false
	return pos, nil
}

// MetaCheck reports which metadata has been seen.
func (h *Handle) MetaCheck() MetaFlags {
	return h.metaFlags
}

// ID3 returns the tags read so far and clears MetaNewID3. v2 holds the
// ID3v2 data and is never nil; v1 is nil if there was no ID3v1 trailer.
// Both are owned by the Handle and change as decoding goes on.
func (h *Handle) ID3() (v1 *id3v1.Tag, v2 *id3.Tag) {
	h.metaFlags &^= MetaNewID3
	return h.v1, h.tag
}

// Tag returns a copy of the ID3v2 fields, with fields the ID3v2 tag didn't
// set taken from the ID3v1 trailer.
func (h *Handle) Tag() *id3.Tag {
	t := h.tag.Clone()
	if h.v1 != nil {
		h.v1.Fill(t)
	}
	return t
}

// RVA returns the replay gain values read so far.
func (h *Handle) RVA() id3.RVA {
	return h.rva
}

// Scale returns the factor applied to the output for replay gain.
func (h *Handle) Scale() float64 {
	return h.scale
}

// Format returns the current output format, which is zero until the first
// ErrNewFormat.
func (h *Handle) Format() Format {
	return h.format
}

// OutBlock returns the size of the PCM output of one frame.
func (h *Handle) OutBlock() int {
	return h.outBlock
}

// Info describes the stream.
type Info struct {
	mp3.Header
	// VBR is the Xing, Info or VBRI header, if there was one.
	VBR *mp3.VBR
	// Frames is the number of audio frames, or -1 if it is unknown.
	Frames   int
	Duration time.Duration
}

func (i Info) String() string {
	return fmt.Sprintf("MPEG %s layer %d, %d kbps, %d Hz, %s", i.Version, i.Layer, i.Bitrate, i.SampleRate, i.Mode)
}

// Info describes the stream from its most recent frame. The duration comes
// from the VBR header, or is estimated from the bitrate and the stream size.
// ok is false before the first frame has been read.
func (h *Handle) Info() (info Info, ok bool) {
	if !h.havePrev {
		return Info{}, false
	}
	info = Info{Header: h.prev, VBR: h.vbr, Frames: h.Length()}
	switch {
	case h.vbr != nil && h.vbr.Frames > 0:
		info.Duration = mp3.Duration(&h.prev, info.Frames)
	case h.streamEnd >= 0:
		info.Duration = mp3.EstimateDuration(&h.prev, h.streamEnd-h.audioStart)
	}
	return info, true
}

// Length returns the number of audio frames in the stream: from the VBR
// header if there is one, otherwise estimated from the stream size. It
// returns -1 if neither is known.
func (h *Handle) Length() int {
	if h.vbr != nil && h.vbr.Frames > 0 {
		return h.vbr.Frames
	}
	if h.havePrev && h.streamEnd >= 0 {
		return mp3.EstimateFrames(&h.prev, h.streamEnd-h.audioStart)
	}
	return -1
}
