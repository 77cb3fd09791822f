// Package id3v2 reads ID3v2.3 and ID3v2.4 tags into an id3.Tag and id3.RVA.
//
// Only the frames that carry the common text fields, comments and replay
// gain are interpreted. Tags of other versions are skipped whole.
package id3v2

import (
	"bytes"
	"encoding/binary"
	"regexp"

	"github.com/pkg/errors"

	"ktkr.us/pkg/mpadec/id3"
)

// Magic starts every ID3v2 tag.
const Magic = "ID3"

const (
	// HeaderSize is the size of the fixed tag header, magic included.
	HeaderSize = 10

	footerSize      = 10
	frameHeaderSize = 10
)

const (
	// header flags
	flagUnsynchronisation = 1 << 7
	flagExtendedHeader    = 1 << 6
	flagExperimental      = 1 << 5
	flagFooterPresent     = 1 << 4
	flagUnknown           = 0x0f

	// v2.4 frame format flags
	frameGroupingIdentity    = 1 << 6
	frameCompressed          = 1 << 3
	frameEncrypted           = 1 << 2
	frameUnsynchronisation   = 1 << 1
	frameDataLengthIndicator = 1 << 0
	// bits that are undefined in v2.4 (%0abc0000 %0h00kmnp)
	frameBad = 0x8fb0

	// v2.3 frame format flags
	frame23Compressed       = 1 << 7
	frame23Encrypted        = 1 << 6
	frame23GroupingIdentity = 1 << 5
	frame23Bad              = 0x1f1f
)

// ErrMalformed marks a tag that is present but cannot be interpreted. It is a
// soft failure: the stream around the tag is still usable, and any fields
// stored before the problem was found are kept.
var ErrMalformed = errors.New("id3v2: malformed tag")

// Reader is the byte source a tag is read from. ReadFull either fills p or
// returns an error; Parse hands such errors back wrapped, so a reader that
// signals missing input with its own error value can recognize it again.
type Reader interface {
	ReadFull(p []byte) error
	Skip(n int64) error
}

// Header is the fixed ID3v2 tag header.
type Header struct {
	Major    uint8
	Revision uint8
	Flags    uint8
	// Size of the tag after the header, excluding any footer.
	Size uint32
}

func synchsafe32(n uint32) uint32 {
	m := n & 0x7f
	m |= ((n & 0x7f00) >> 1)
	m |= ((n & 0x7f0000) >> 2)
	m |= ((n & 0x7f000000) >> 3)
	return m
}

// Synchsafe decodes the 28 bit integer stored in the first 4 bytes of b.
// ok is false if the top bit of any of the bytes is set.
func Synchsafe(b []byte) (n uint32, ok bool) {
	v := binary.BigEndian.Uint32(b)
	if v&0x80808080 != 0 {
		return 0, false
	}
	return synchsafe32(v), true
}

// PutSynchsafe encodes the low 28 bits of n into the first 4 bytes of b.
func PutSynchsafe(b []byte, n uint32) {
	b[0] = byte(n>>21) & 0x7f
	b[1] = byte(n>>14) & 0x7f
	b[2] = byte(n>>7) & 0x7f
	b[3] = byte(n) & 0x7f
}

// TagSize returns the number of bytes taken by the whole tag starting with
// the header in b, footer included. ok is false if b is shorter than a
// header, lacks the magic or declares a size that is not synchsafe.
func TagSize(b []byte) (n int64, ok bool) {
	if len(b) < HeaderSize || string(b[:len(Magic)]) != Magic {
		return 0, false
	}
	size, ok := Synchsafe(b[6:HeaderSize])
	if !ok {
		return 0, false
	}
	n = HeaderSize + int64(size)
	if b[5]&flagFooterPresent != 0 {
		n += footerSize
	}
	return n, true
}

// Deunsync reverses unsynchronisation by dropping every 0x00 that directly
// follows 0xFF. The result never aliases b.
func Deunsync(b []byte) []byte {
	return bytes.Replace(b, []byte{0xff, 0x00}, []byte{0xff}, -1)
}

// Frame is one frame of a tag. Data aliases the tag body.
type Frame struct {
	ID    string
	Size  uint32
	Flags uint16
	Data  []byte
}

// supported reports whether the frame can be read at all under the given
// major version.
func (f *Frame) supported(major uint8) bool {
	if major == 3 {
		return f.Flags&(frame23Bad|frame23Compressed|frame23Encrypted) == 0
	}
	return f.Flags&(frameBad|frameCompressed|frameEncrypted) == 0
}

// payload returns the frame content with grouping and length prefixes
// removed and unsynchronisation undone.
func (f *Frame) payload(h *Header) ([]byte, bool) {
	data := f.Data
	strip := 0
	unsync := h.Flags&flagUnsynchronisation != 0
	if h.Major == 3 {
		if f.Flags&frame23GroupingIdentity != 0 {
			strip++
		}
	} else {
		if f.Flags&frameGroupingIdentity != 0 {
			strip++
		}
		if f.Flags&frameDataLengthIndicator != 0 {
			strip += 4
		}
		unsync = unsync || f.Flags&frameUnsynchronisation != 0
	}
	if strip > len(data) {
		return nil, false
	}
	data = data[strip:]
	if unsync {
		data = Deunsync(data)
	}
	return data, true
}

var validFramePat = regexp.MustCompile(`^[A-Z0-9]{4}$`)

func validFrameID(id []byte) bool {
	return validFramePat.Match(id)
}

// Parser interprets tags into Tag and RVA.
type Parser struct {
	Tag *id3.Tag
	RVA *id3.RVA

	// Log receives warnings and, depending on Verbose, notes about the
	// frames seen. nil discards everything.
	Log     id3.Logger
	Verbose int

	// MaxSize, if nonzero, is the largest tag that will be read into
	// memory. Larger tags are skipped and reported as malformed.
	MaxSize uint32

	genre bool
}

func (p *Parser) warnf(format string, v ...interface{}) {
	if p.Log != nil {
		p.Log.Printf(format, v...)
	}
}

func (p *Parser) notef(level int, format string, v ...interface{}) {
	if p.Verbose >= level {
		p.warnf(format, v...)
	}
}

// Parse reads one tag from r. head holds the first 4 bytes of the tag,
// "ID3" and the major version, which the caller has already consumed.
//
// A tag with a version other than 2.3 or 2.4, or with flags this package
// does not know, is skipped without touching Tag. A structural problem is
// reported as ErrMalformed. Errors from r are returned wrapped.
func (p *Parser) Parse(r Reader, head [4]byte) error {
	if string(head[:3]) != Magic {
		return errors.Wrap(ErrMalformed, "bad magic")
	}
	if head[3] == 0xff {
		return errors.Wrap(ErrMalformed, "bad major version")
	}

	var buf [HeaderSize - 4]byte
	if err := r.ReadFull(buf[:]); err != nil {
		return errors.Wrap(err, "id3v2: read header")
	}
	h := Header{Major: head[3], Revision: buf[0], Flags: buf[1]}
	if h.Revision == 0xff {
		return errors.Wrap(ErrMalformed, "bad revision")
	}
	size, ok := Synchsafe(buf[2:])
	if !ok {
		return errors.Wrapf(ErrMalformed, "tag size %x is not synchsafe", buf[2:])
	}
	h.Size = size
	p.notef(2, "id3v2: ID3v2.%d rev %d tag of %d bytes", h.Major, h.Revision, h.Size)
	if h.Flags&flagExperimental != 0 {
		p.notef(2, "id3v2: tag is marked experimental")
	}

	if h.Flags&flagUnknown != 0 || h.Major < 3 || h.Major > 4 {
		p.warnf("id3v2: won't parse tag with major version %d and flags 0x%02x", h.Major, h.Flags)
		return errors.Wrap(r.Skip(int64(h.Size)), "id3v2: skip tag")
	}
	if p.MaxSize > 0 && h.Size > p.MaxSize {
		if err := r.Skip(int64(h.Size)); err != nil {
			return errors.Wrap(err, "id3v2: skip tag")
		}
		return errors.Wrapf(ErrMalformed, "tag of %d bytes is over the limit of %d", h.Size, p.MaxSize)
	}

	body := make([]byte, h.Size)
	if err := r.ReadFull(body); err != nil {
		return errors.Wrap(err, "id3v2: read tag")
	}

	p.Tag.Version = int(h.Major)
	p.genre = false
	err := p.readFrames(&h, body)
	if p.genre {
		p.Tag.InterpretGenre()
	}

	if h.Flags&flagFooterPresent != 0 {
		if ferr := r.Skip(footerSize); ferr != nil {
			return errors.Wrap(ferr, "id3v2: skip footer")
		}
	}
	return err
}

// extendedHeaderSize returns the number of bytes the extended header at the
// start of body takes up.
func extendedHeaderSize(h *Header, body []byte) (int, error) {
	if len(body) < 4 {
		return 0, errors.Wrap(ErrMalformed, "truncated extended header")
	}
	var n uint32
	if h.Major == 3 {
		// the v2.3 size field doesn't count itself
		n = binary.BigEndian.Uint32(body) + 4
	} else {
		var ok bool
		n, ok = Synchsafe(body)
		if !ok {
			return 0, errors.Wrap(ErrMalformed, "extended header size is not synchsafe")
		}
	}
	if uint64(n) > uint64(len(body)) {
		return 0, errors.Wrapf(ErrMalformed, "extended header of %d bytes is larger than the tag", n)
	}
	return int(n), nil
}

func (p *Parser) readFrames(h *Header, body []byte) error {
	pos := 0
	if h.Flags&flagExtendedHeader != 0 {
		n, err := extendedHeaderSize(h, body)
		if err != nil {
			return err
		}
		p.notef(3, "id3v2: skipping extended header of %d bytes", n)
		pos = n
	}

	for len(body)-pos >= frameHeaderSize {
		id := body[pos : pos+4]
		if !validFrameID(id) {
			// padding, or garbage we can't tell apart from it
			p.notef(3, "id3v2: tag data ends after %d bytes with %x", pos, id)
			break
		}

		var size uint32
		if h.Major == 3 {
			size = binary.BigEndian.Uint32(body[pos+4:])
		} else {
			var ok bool
			if size, ok = Synchsafe(body[pos+4:]); !ok {
				return errors.Wrapf(ErrMalformed, "non-synchsafe size of %s frame", id)
			}
		}
		start := pos + frameHeaderSize
		if uint64(size) > uint64(len(body)-start) {
			return errors.Wrapf(ErrMalformed, "%s frame of %d bytes overruns the tag", id, size)
		}
		pos = start + int(size)

		f := Frame{
			ID:    string(id),
			Size:  size,
			Flags: binary.BigEndian.Uint16(body[start-2:]),
			Data:  body[start:pos],
		}
		p.notef(3, "id3v2: %s frame of size %d", f.ID, f.Size)

		kind, ok := frameKinds[f.ID]
		if !ok {
			continue
		}
		if !f.supported(h.Major) {
			p.warnf("id3v2: skipping invalid/unsupported %s frame with flags 0x%04x", f.ID, f.Flags)
			continue
		}
		data, ok := f.payload(h)
		if !ok {
			p.warnf("id3v2: %s frame too short for its flags", f.ID)
			continue
		}
		p.interpret(kind, data)
	}
	return nil
}
