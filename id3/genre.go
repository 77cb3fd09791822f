package id3

import (
	"bytes"
	"strconv"
)

// UnknownGenre is used for genre numbers outside the table.
const UnknownGenre = "Unknown"

var genres = []string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient", "Trip-Hop",
	"Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical", "Instrumental", "Acid",
	"House", "Game", "Sound Clip", "Gospel", "Noise", "Alternative Rock", "Bass",
	"Soul", "Punk", "Space", "Meditative", "Instrumental Pop", "Instrumental Rock",
	"Ethnic", "Gothic", "Darkwave", "Techno-Industrial", "Electronic", "Pop-Folk",
	"Eurodance", "Dream", "Southern Rock", "Comedy", "Cult", "Gangsta", "Top 40",
	"Christian Rap", "Pop/Funk", "Jungle", "Native US", "Cabaret", "New Wave",
	"Psychadelic", "Rave", "Showtunes", "Trailer", "Lo-Fi", "Tribal", "Acid Punk",
	"Acid Jazz", "Polka", "Retro", "Musical", "Rock & Roll", "Hard Rock", "Folk",
	"Folk-Rock", "National Folk", "Swing", "Fast Fusion", "Bebop", "Latin",
	"Revival", "Celtic", "Bluegrass", "Avantgarde", "Gothic Rock",
	"Progressive Rock", "Psychedelic Rock", "Symphonic Rock", "Slow Rock",
	"Big Band", "Chorus", "Easy Listening", "Acoustic", "Humour", "Speech",
	"Chanson", "Opera", "Chamber Music", "Sonata", "Symphony", "Booty Bass",
	"Primus", "Porn Groove", "Satire", "Slow Jam", "Club", "Tango", "Samba",
	"Folklore", "Ballad", "Power Ballad", "Rhytmic Soul", "Freestyle", "Duet",
	"Punk Rock", "Drum Solo", "Acapella", "Euro-House", "Dance Hall", "Goa",
	"Drum & Bass", "Club-House", "Hardcore", "Terror", "Indie", "BritPop",
	"Negerpunk", "Polsk Punk", "Beat", "Christian Gangsta Rap", "Heavy Metal",
	"Black Metal", "Crossover", "Contemporary Christian", "Christian Rock",
	"Merengue", "Salsa", "Thrash Metal", "Anime", "JPop", "Synthpop",
}

// GenreName returns the name of the ID3v1 genre number n.
func GenreName(n int) string {
	if n < 0 || n >= len(genres) {
		return UnknownGenre
	}
	return genres[n]
}

const (
	genreText = iota
	genreNumber
)

// InterpretGenre turns a raw TCON value into a readable, comma separated
// list. It understands the ID3v2.3 form "(17)(18)Free text", with "((" as an
// escaped parenthesis, and the ID3v2.4 form of bare numbers on separate
// lines. Numbers are looked up in the genre table; whatever text follows
// the numbers is kept as the last entry.
//
// Applying InterpretGenre to its own output returns it unchanged. For that
// reason, when no number was resolved and the leftover text would itself be
// rewritten by another pass (as "((17)" would, yielding "(17)"), the value is
// kept as it was.
func InterpretGenre(raw []byte) []byte {
	var (
		out   []byte
		num   int
		rest  int
		state = genreText
	)
	add := func(s []byte) {
		if len(out) > 0 {
			out = append(out, ", "...)
		}
		out = append(out, s...)
	}

scan:
	for i := 0; i <= len(raw); i++ {
		var c byte
		if i < len(raw) {
			c = raw[i]
		}
		switch state {
		case genreText:
			rest = i
			switch {
			case c == '\n' && i < len(raw):
				rest = i + 1
			case c == '(':
				num = i + 1
				state = genreNumber
			case isDigit(c):
				num = i
				state = genreNumber
			default:
				break scan
			}
		case genreNumber:
			switch {
			case c == '(' && i == num:
				// "((" escapes a literal parenthesis
				rest = i
				break scan
			case c == ')' || c == '\n' || c == 0:
				if i == num {
					break scan
				}
				n, err := strconv.Atoi(string(raw[num:i]))
				if err != nil {
					n = -1
				}
				add([]byte(GenreName(n)))
				rest = i + 1
				state = genreText
			case !isDigit(c):
				break scan
			}
		}
	}

	if rest < len(raw) {
		tail := raw[rest:]
		if len(out) == 0 && rest > 0 && !bytes.Equal(InterpretGenre(tail), tail) {
			tail = raw
		}
		add(tail)
	}
	if out == nil {
		out = []byte{}
	}
	return out
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
