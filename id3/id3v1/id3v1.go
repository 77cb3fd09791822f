// Package id3v1 reads the fixed 128 byte ID3v1 (and v1.1) trailer.
package id3v1

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"ktkr.us/pkg/mpadec/id3"
)

const (
	Magic = "TAG"
	Size  = 128
)

// field offsets within the trailer
const (
	offTitle   = 3
	offArtist  = 33
	offAlbum   = 63
	offYear    = 93
	offComment = 97
	offGenre   = 127
)

var ErrNoTag = errors.New("id3v1: no tag")

// Tag is a decoded trailer. The text fields hold the Latin-1 bytes found in
// the file, cut at the first NUL with trailing blanks removed.
type Tag struct {
	Title   string
	Artist  string
	Album   string
	Year    string
	Comment string
	// Track is only present in v1.1 trailers; 0 means none.
	Track int
	Genre byte
}

// Parse decodes a trailer. b must be exactly Size bytes long and start with
// Magic.
func Parse(b []byte) (*Tag, error) {
	if len(b) != Size {
		return nil, errors.Errorf("id3v1: trailer is %d bytes, want %d", len(b), Size)
	}
	if string(b[:len(Magic)]) != Magic {
		return nil, ErrNoTag
	}
	t := &Tag{
		Title:   trimString(b[offTitle:offArtist]),
		Artist:  trimString(b[offArtist:offAlbum]),
		Album:   trimString(b[offAlbum:offYear]),
		Year:    trimString(b[offYear:offComment]),
		Comment: trimString(b[offComment:offGenre]),
		Genre:   b[offGenre],
	}
	// v1.1 steals the last two comment bytes for a NUL and the track number
	if b[offGenre-2] == 0 && b[offGenre-1] != 0 {
		t.Comment = trimString(b[offComment : offGenre-2])
		t.Track = int(b[offGenre-1])
	}
	return t, nil
}

// Decode reads the trailer at the end of r. A seekable r is positioned at
// the trailer directly; anything else is read to the end.
func Decode(r io.Reader) (*Tag, error) {
	buf := make([]byte, Size)

	if seeker, ok := r.(io.Seeker); ok {
		if _, err := seeker.Seek(-Size, io.SeekEnd); err != nil {
			return nil, errors.Wrap(err, "id3v1: seek")
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.Wrap(err, "id3v1: read")
		}
		return Parse(buf)
	}

	tail, err := readTail(r, Size)
	if err != nil {
		return nil, err
	}
	if len(tail) < Size {
		return nil, ErrNoTag
	}
	return Parse(tail)
}

// readTail reads r to EOF and returns its last n bytes.
func readTail(r io.Reader, n int) ([]byte, error) {
	var (
		buf  = make([]byte, 2*n+1<<15)
		fill int
	)
	for {
		m, err := r.Read(buf[fill:])
		fill += m
		if fill == len(buf) {
			fill = copy(buf, buf[fill-n:])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "id3v1: read")
		}
	}
	if fill > n {
		return buf[fill-n : fill], nil
	}
	return buf[:fill], nil
}

// GenreName returns the name of the genre index, or id3.UnknownGenre.
func (t *Tag) GenreName() string {
	return id3.GenreName(int(t.Genre))
}

// Fill copies the trailer into the fields of dst that have not been set.
func (t *Tag) Fill(dst *id3.Tag) {
	fill := func(sb *id3.StringBuf, s string) {
		if !sb.Filled() {
			sb.Set(s)
		}
	}
	fill(&dst.Title, t.Title)
	fill(&dst.Artist, t.Artist)
	fill(&dst.Album, t.Album)
	fill(&dst.Year, t.Year)
	fill(&dst.Comment, t.Comment)
	fill(&dst.Genre, t.GenreName())
}

func trimString(s []byte) string {
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(bytes.TrimRight(s, " "))
}
