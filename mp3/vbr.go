package mp3

import (
	"bytes"
	"encoding/binary"
	"io"
)

// VBR is the information header an encoder writes into the first frame of
// a stream. That frame carries no audio.
type VBR struct {
	// Tag is "Xing", "Info" (the CBR variant of Xing) or "VBRI".
	Tag     string
	Frames  int // 0 if not given
	Bytes   int // 0 if not given
	TOC     []byte
	Quality int
}

const (
	xingFrames = 1 << iota
	xingBytes
	xingTOC
	xingQuality
)

// VBRI sits at a fixed offset after the header, regardless of side info.
const vbriOffset = 32

// ParseVBR looks for a Xing, Info or VBRI header in body, the bytes of a
// frame following its 4 byte header.
func ParseVBR(h *Header, body []byte) (*VBR, bool) {
	if h.Layer == 3 {
		off := h.SideInfoSize()
		if h.CRC {
			off += 2
		}
		if len(body) >= off+8 {
			switch tag := string(body[off : off+4]); tag {
			case "Xing", "Info":
				v, err := decodeXing(bytes.NewReader(body[off+4:]))
				if err == nil {
					v.Tag = tag
					return v, true
				}
			}
		}
	}
	if len(body) >= vbriOffset+4 && string(body[vbriOffset:vbriOffset+4]) == "VBRI" {
		v, err := decodeVBRI(bytes.NewReader(body[vbriOffset+4:]))
		if err == nil {
			return v, true
		}
	}
	return nil, false
}

func decodeXing(r io.Reader) (*VBR, error) {
	var flags uint32
	err := binary.Read(r, binary.BigEndian, &flags)
	if err != nil {
		return nil, err
	}
	var (
		v VBR
		n uint32
	)
	if flags&xingFrames != 0 {
		if err = binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		v.Frames = int(n)
	}
	if flags&xingBytes != 0 {
		if err = binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		v.Bytes = int(n)
	}
	if flags&xingTOC != 0 {
		v.TOC = make([]byte, 100)
		if _, err = io.ReadFull(r, v.TOC); err != nil {
			return nil, err
		}
	}
	if flags&xingQuality != 0 {
		if err = binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		v.Quality = int(n)
	}
	return &v, nil
}

type vbriHeader struct {
	Version      uint16
	Delay        uint16
	Quality      uint16
	NumBytes     uint32
	NumFrames    uint32
	TOCSize      uint16
	TOCScale     uint16
	TOCEntrySize uint16
}

func decodeVBRI(r io.Reader) (*VBR, error) {
	var h vbriHeader
	if err := binary.Read(r, binary.BigEndian, &h); err != nil {
		return nil, err
	}
	// the TOC that follows uses its own entry size and scale; skip it
	return &VBR{
		Tag:     "VBRI",
		Frames:  int(h.NumFrames),
		Bytes:   int(h.NumBytes),
		Quality: int(h.Quality),
	}, nil
}
