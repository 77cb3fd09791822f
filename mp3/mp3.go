// Package mp3 decodes MPEG audio frame headers (layers I to III, MPEG 1, 2
// and 2.5) and the Xing/Info and VBRI headers found in the first frame of
// many streams.
package mp3

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrUnsynced      = errors.New("mp3: missing frame sync")
	ErrReserved      = errors.New("mp3: layer or MPEG version code has reserved value")
	ErrBadBitrate    = errors.New("mp3: disallowed bitrate code")
	ErrBadSampleRate = errors.New("mp3: disallowed sample rate code")
	ErrFreeFormat    = errors.New("mp3: free format streams are not supported")
)

// HeaderSize is the size of a frame header.
const HeaderSize = 4

// AAAAAAAA AAABBCCD EEEEFFGH IIJJKLMM

// Version is the MPEG version code of a header.
type Version int

const (
	Version2_5      Version = 0
	versionReserved Version = 1
	Version2        Version = 2
	Version1        Version = 3
)

func (v Version) String() string {
	switch v {
	case Version1:
		return "1.0"
	case Version2:
		return "2.0"
	case Version2_5:
		return "2.5"
	}
	return "reserved"
}

const (
	layerReserved = 0
	layerIII      = 1
	layerII       = 2
	layerI        = 3
)

// ChannelMode is the channel mode code of a header.
type ChannelMode int

const (
	Stereo ChannelMode = iota
	JointStereo
	DualChannel
	Mono
)

func (m ChannelMode) String() string {
	switch m {
	case Stereo:
		return "stereo"
	case JointStereo:
		return "joint stereo"
	case DualChannel:
		return "dual channel"
	}
	return "mono"
}

var (
	bitrates = [4][4][16]int{
		Version1: {
			layerI:   {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1},
			layerII:  {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},
			layerIII: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},
		},
		Version2: {
			layerI:   {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
			layerII:  {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
			layerIII: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
		},
		Version2_5: {
			layerI:   {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
			layerII:  {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
			layerIII: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
		},
	}

	sampleRates = [4][4]int{
		Version1:   {44100, 48000, 32000, -1},
		Version2:   {22050, 24000, 16000, -1},
		Version2_5: {11025, 12000, 8000, -1},
	}

	samplesPerFrame = [4][4]int{
		Version1: {
			layerI:   384,
			layerII:  1152,
			layerIII: 1152,
		},
		Version2: {
			layerI:   384,
			layerII:  1152,
			layerIII: 576,
		},
		Version2_5: {
			layerI:   384,
			layerII:  1152,
			layerIII: 576,
		},
	}
)

// Header is a decoded frame header.
type Header struct {
	Version Version
	// Layer is 1, 2 or 3.
	Layer      int
	CRC        bool
	Bitrate    int // kbit/s
	SampleRate int // Hz
	Padding    bool
	Private    bool
	Mode       ChannelMode
	ModeExt    int
	Copyright  bool
	Original   bool
	Emphasis   int
}

// IsSync reports whether h starts with the 11 bit frame sync.
func IsSync(h uint32) bool {
	return h>>21 == 0x7ff
}

// ParseHeader decodes the 4 header bytes of a frame, as a big endian word.
func ParseHeader(header uint32) (Header, error) {
	if !IsSync(header) {
		return Header{}, ErrUnsynced
	}
	var (
		version = Version(header>>19) & 0x3
		layer   = int(header>>17) & 0x3
	)
	if version == versionReserved || layer == layerReserved {
		return Header{}, ErrReserved
	}

	var (
		bitrate    = bitrates[version][layer][(header>>12)&0xf]
		samplerate = sampleRates[version][(header>>10)&0x3]
	)
	if bitrate < 0 {
		return Header{}, ErrBadBitrate
	}
	if bitrate == 0 {
		return Header{}, ErrFreeFormat
	}
	if samplerate < 0 {
		return Header{}, ErrBadSampleRate
	}

	return Header{
		Version:    version,
		Layer:      4 - layer,
		CRC:        (header>>16)&0x1 == 0,
		Bitrate:    bitrate,
		SampleRate: samplerate,
		Padding:    (header>>9)&0x1 == 1,
		Private:    (header>>8)&0x1 == 1,
		Mode:       ChannelMode(header>>6) & 0x3,
		ModeExt:    int(header>>4) & 0x3,
		Copyright:  (header>>3)&0x1 == 1,
		Original:   (header>>2)&0x1 == 1,
		Emphasis:   int(header & 0x3),
	}, nil
}

func (h *Header) layerCode() int { return 4 - h.Layer }

// Channels returns 1 for mono streams and 2 otherwise.
func (h *Header) Channels() int {
	if h.Mode == Mono {
		return 1
	}
	return 2
}

// SamplesPerFrame returns the number of samples per channel in one frame.
func (h *Header) SamplesPerFrame() int {
	return samplesPerFrame[h.Version][h.layerCode()]
}

// FrameSize returns the size of the whole frame, header included.
func (h *Header) FrameSize() int {
	if h.Layer == 1 {
		n := 12 * h.Bitrate * 1000 / h.SampleRate
		if h.Padding {
			n++
		}
		// slots are 4 bytes in layer I
		return n * 4
	}
	n := h.SamplesPerFrame() / 8 * h.Bitrate * 1000 / h.SampleRate
	if h.Padding {
		n++
	}
	return n
}

// BodySize returns the number of bytes following the header.
func (h *Header) BodySize() int {
	return h.FrameSize() - HeaderSize
}

// SideInfoSize returns the size of the layer III side information, which
// follows the header and the optional CRC.
func (h *Header) SideInfoSize() int {
	if h.Version == Version1 {
		if h.Mode == Mono {
			return 17
		}
		return 32
	}
	if h.Mode == Mono {
		return 9
	}
	return 17
}

// FrameDuration returns the playing time of one frame.
func (h *Header) FrameDuration() time.Duration {
	return time.Duration(h.SamplesPerFrame()) * time.Second / time.Duration(h.SampleRate)
}

// Change classifies the difference between two consecutive headers.
type Change int

const (
	NoChange Change = iota
	// SmallChange covers differences that don't affect the decoded
	// output format, like the bitrate of a VBR stream.
	SmallChange
	// BigChange means the output format or the decoder has to change.
	BigChange
)

// Compare reports how h differs from prev.
func (h *Header) Compare(prev *Header) Change {
	switch {
	case h.Version != prev.Version,
		h.Layer != prev.Layer,
		h.SampleRate != prev.SampleRate,
		h.Channels() != prev.Channels():
		return BigChange
	case *h != *prev:
		return SmallChange
	}
	return NoChange
}
