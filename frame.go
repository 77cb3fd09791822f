package mpadec

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"ktkr.us/pkg/mpadec/id3/id3v1"
	"ktkr.us/pkg/mpadec/id3/id3v2"
	"ktkr.us/pkg/mpadec/mp3"
)

// Frame is one MPEG audio frame read from the stream.
type Frame struct {
	mp3.Header
	// Num counts the audio frames of the stream from 0. A VBR info frame
	// is not counted.
	Num int
	// Data holds the bytes following the header, CRC included.
	Data []byte
}

func isEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

func (h *Handle) mark() {
	if m, ok := h.rd.(Marker); ok {
		m.Mark()
	}
}

// readFrame reads the next audio frame into h.frame, interpreting any tags
// on the way. It returns ErrDone at the end of the input.
func (h *Handle) readFrame() error {
	for {
		h.mark()
		start := h.rd.Tell()
		if h.v1 != nil && h.streamEnd >= 0 && start >= h.streamEnd {
			// the trailer was read by Open
			return ErrDone
		}
		b, err := h.rd.Peek(mp3.HeaderSize)
		if err != nil {
			if isEOF(err) {
				return ErrDone
			}
			return err
		}

		switch {
		case string(b[:3]) == id3v2.Magic:
			if err := h.readID3v2(); err != nil {
				return err
			}
			continue
		case string(b[:3]) == id3v1.Magic:
			if err := h.readID3v1(); err != nil {
				return err
			}
			continue
		}

		hd, err := mp3.ParseHeader(binary.BigEndian.Uint32(b))
		if err != nil {
			if err := h.skipGarbage(start, err); err != nil {
				return err
			}
			continue
		}

		if err := h.rd.Skip(mp3.HeaderSize); err != nil {
			return err
		}
		body := make([]byte, hd.BodySize())
		if err := h.rd.ReadFull(body); err != nil {
			if isEOF(err) {
				return errors.Wrapf(io.ErrUnexpectedEOF, "mpadec: frame at offset %d is truncated", start)
			}
			return err
		}
		if h.resync > 0 {
			h.log.Printf("mpadec: skipped %d bytes of garbage before offset %d", h.resync, start)
			h.resync = 0
		}

		if !h.vbrChecked {
			h.vbrChecked = true
			if v, ok := mp3.ParseVBR(&hd, body); ok {
				h.notef(2, "mpadec: %s header, %d frames", v.Tag, v.Frames)
				h.vbr = v
				h.audioStart = start + int64(hd.FrameSize())
				h.prev, h.havePrev = hd, true
				continue
			}
			h.audioStart = start
		}

		if h.havePrev {
			if hd.Compare(&h.prev) == mp3.BigChange {
				h.notef(2, "mpadec: big header change at offset %d", start)
				h.decoderChange = true
			}
		}
		h.prev, h.havePrev = hd, true

		h.num++
		if h.num == len(h.index) {
			h.index = append(h.index, start)
		}
		h.frame = Frame{Header: hd, Num: h.num, Data: body}
		h.toDecode = true
		return nil
	}
}

// skipGarbage steps over one byte that does not start a frame.
func (h *Handle) skipGarbage(start int64, cause error) error {
	if h.opts.resyncLimit >= 0 && h.resync >= h.opts.resyncLimit {
		return errors.Wrapf(ErrSync, "no frame in %d bytes before offset %d (%v)", h.resync, start, cause)
	}
	if err := h.rd.Skip(1); err != nil {
		if isEOF(err) {
			return ErrDone
		}
		return err
	}
	h.resync++
	return nil
}

// readID3v2 interprets a tag into copies of the metadata, which replace the
// originals once the tag has been read. A tag interrupted by ErrNeedMore
// is thus read again from the start without storing anything twice. A fed
// tag is only read once all of it has arrived.
func (h *Handle) readID3v2() error {
	if h.feed != nil {
		b, err := h.rd.Peek(id3v2.HeaderSize)
		if err != nil {
			return err
		}
		if n, ok := id3v2.TagSize(b); ok {
			if err := h.feed.need(n); err != nil {
				return err
			}
		}
	}
	var head [4]byte
	if err := h.rd.ReadFull(head[:]); err != nil {
		if isEOF(err) {
			return ErrDone
		}
		return err
	}
	var (
		tag = h.tag.Clone()
		rva = h.rva
		p   = id3v2.Parser{
			Tag:     tag,
			RVA:     &rva,
			Log:     h.log,
			Verbose: h.opts.verbose,
			MaxSize: h.opts.maxTagSize,
		}
	)
	tag.Version = 0
	err := p.Parse(h.rd, head)
	switch {
	case err == nil:
	case errors.Is(err, id3v2.ErrMalformed):
		h.log.Printf("mpadec: ignoring ID3v2 tag: %v", err)
	default:
		return err
	}

	if tag.Version == 0 {
		// skipped, or broken before any frame was read
		return nil
	}
	h.tag = tag
	h.rva = rva
	h.metaFlags |= MetaID3 | MetaNewID3
	h.updateScale()
	return nil
}

// readID3v1 stores an ID3v1 trailer met in the stream.
func (h *Handle) readID3v1() error {
	buf := make([]byte, id3v1.Size)
	if err := h.rd.ReadFull(buf); err != nil {
		if isEOF(err) {
			// a stray "TAG" in the last bytes
			return ErrDone
		}
		return err
	}
	t, err := id3v1.Parse(buf)
	if err != nil {
		return err
	}
	h.notef(2, "mpadec: ID3v1 tag")
	h.v1 = t
	h.metaFlags |= MetaID3 | MetaNewID3
	return nil
}

// nextFrame reads frames until one is due for decoding and sets up the
// output stage if the format changed.
func (h *Handle) nextFrame() error {
	for {
		if err := h.readFrame(); err != nil {
			return err
		}
		if h.num >= h.opts.startFrame {
			break
		}
	}
	if h.opts.frameCount >= 0 && h.num >= h.opts.startFrame+h.opts.frameCount {
		h.toDecode = false
		return ErrDone
	}
	if h.decoderChange {
		changed := h.outputFormat()
		h.decodeUpdate()
		h.decoderChange = false
		if changed {
			return ErrNewFormat
		}
	}
	return nil
}
