package id3v2

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"ktkr.us/pkg/mpadec/id3"
)

type frameKind int

const (
	frameComment frameKind = iota
	frameExtra
	frameRVA2
	frameArtist
	frameAlbum
	frameTitle
	frameYear
	frameGenre
)

var frameKinds = map[string]frameKind{
	"COMM": frameComment,
	"TXXX": frameExtra,
	"RVA2": frameRVA2,
	"TPE1": frameArtist,
	"TALB": frameAlbum,
	"TIT2": frameTitle,
	"TYER": frameYear,
	"TCON": frameGenre,
}

// descriptions that turn a comment into a replay gain value
var commentScopes = map[string]id3.Scope{
	"rva":        id3.Track,
	"mix":        id3.Track,
	"radio":      id3.Track,
	"album":      id3.Album,
	"audiophile": id3.Album,
	"user":       id3.Album,
}

var rva2AlbumPrefixes = [][]byte{[]byte("album"), []byte("audiophile"), []byte("user")}

const (
	masterChannel = 1
	rva2Divisor   = 512
)

func (p *Parser) interpret(kind frameKind, data []byte) {
	switch kind {
	case frameComment:
		p.comment(data)
	case frameExtra:
		p.extra(data)
	case frameRVA2:
		p.rva2(data)
	case frameArtist:
		id3.StoreText(&p.Tag.Artist, data, p.Log)
	case frameAlbum:
		id3.StoreText(&p.Tag.Album, data, p.Log)
	case frameTitle:
		id3.StoreText(&p.Tag.Title, data, p.Log)
	case frameYear:
		id3.StoreText(&p.Tag.Year, data, p.Log)
	case frameGenre:
		id3.StoreText(&p.Tag.Genre, data, p.Log)
		p.genre = true
	}
}

// comment handles COMM: encoding, 3 byte language, short description, text.
// A description naming a replay gain scope makes the text a gain in dB.
// Comments with any other non-empty description are ignored.
func (p *Parser) comment(data []byte) {
	if len(data) < 4 {
		return
	}
	enc := id3.Encoding(data[0])
	if !enc.Valid() {
		enc = id3.Latin1
	}
	desc, text := id3.SplitTerminated(enc, data[4:])
	name := strings.ToLower(string(enc.Decode(desc)))

	if scope, ok := commentScopes[name]; ok {
		if !p.RVA.Accepts(scope, id3.SourceComment) {
			return
		}
		p.notef(3, "id3v2: evaluating %s comment for RVA", name)
		value, _ := id3.SplitTerminated(enc, text)
		gain := atof(enc.Decode(value))
		p.RVA.Update(scope, id3.Gain, gain, id3.SourceComment)
		p.RVA.Update(scope, id3.Peak, 0, id3.SourceComment)
		p.notef(3, "id3v2: RVA value %fdB", gain)
		return
	}
	if name != "" {
		return
	}

	body := make([]byte, 0, len(text)+1)
	body = append(body, data[0])
	body = append(body, text...)
	id3.StoreText(&p.Tag.Comment, body, p.Log)
}

// extra handles TXXX frames in the replaygain_{track,album}_{gain,peak}
// convention. Only Latin-1 frames are considered.
func (p *Parser) extra(data []byte) {
	if len(data) < 1 || id3.Encoding(data[0]) != id3.Latin1 {
		return
	}
	desc, value := id3.SplitTerminated(id3.Latin1, data[1:])
	name := strings.ToLower(string(desc))

	var scope id3.Scope
	switch {
	case strings.HasPrefix(name, "replaygain_track_"):
		scope = id3.Track
	case strings.HasPrefix(name, "replaygain_album_"):
		scope = id3.Album
	default:
		return
	}
	var field id3.Field
	switch name[len("replaygain_track_"):] {
	case "gain":
		field = id3.Gain
	case "peak":
		field = id3.Peak
	default:
		return
	}

	v := atof(value)
	if p.RVA.Update(scope, field, v, id3.SourceTXXX) {
		p.notef(3, "id3v2: RVA %s %s %f", scope, name[len(name)-4:], v)
	}
}

// rva2 handles RVA2: identification, then per channel a type byte, a
// signed 16 bit gain in 1/512 dB, the number of peak bits and the peak.
// Only the master channel is used, and its peak is not decoded.
func (p *Parser) rva2(data []byte) {
	ident, rest := id3.SplitTerminated(id3.Latin1, data)
	p.notef(3, "id3v2: RVA2 identification %q", ident)

	scope := id3.Track
	for _, prefix := range rva2AlbumPrefixes {
		if len(ident) >= len(prefix) && bytes.EqualFold(ident[:len(prefix)], prefix) {
			scope = id3.Album
			break
		}
	}
	if !p.RVA.Accepts(scope, id3.SourceRVA2) {
		return
	}

	for len(rest) >= 3 {
		if rest[0] == masterChannel {
			gain := float64(int16(binary.BigEndian.Uint16(rest[1:]))) / rva2Divisor
			p.RVA.Update(scope, id3.Gain, gain, id3.SourceRVA2)
			p.RVA.Update(scope, id3.Peak, 0, id3.SourceRVA2)
			p.notef(3, "id3v2: RVA value %fdB", gain)
			return
		}
		if len(rest) < 4 {
			return
		}
		n := 4 + (int(rest[3])+7)/8
		if n > len(rest) {
			return
		}
		rest = rest[n:]
	}
}

// atof parses the longest prefix of s that forms a decimal number, after
// leading blanks. It returns 0 if there is none.
func atof(s []byte) float64 {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	j := i
	if j < len(s) && (s[j] == '+' || s[j] == '-') {
		j++
	}
	digits := 0
	for ; j < len(s) && isDigit(s[j]); j++ {
		digits++
	}
	if j < len(s) && s[j] == '.' {
		j++
		for ; j < len(s) && isDigit(s[j]); j++ {
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
		k := j + 1
		if k < len(s) && (s[k] == '+' || s[k] == '-') {
			k++
		}
		if k < len(s) && isDigit(s[k]) {
			for k < len(s) && isDigit(s[k]) {
				k++
			}
			j = k
		}
	}
	// out of range values come back as ±Inf or 0 along with the error
	v, _ := strconv.ParseFloat(string(s[i:j]), 64)
	return v
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
