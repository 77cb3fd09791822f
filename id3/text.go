package id3

import "fmt"

// Encoding is the text encoding byte that starts every ID3v2 text field.
type Encoding byte

const (
	Latin1   Encoding = 0x00 // ISO-8859-1, NUL terminated
	UTF16BOM Encoding = 0x01 // UTF-16 with byte order mark, NUL word terminated
	UTF16BE  Encoding = 0x02 // UTF-16BE, NUL word terminated
	UTF8     Encoding = 0x03 // UTF-8, NUL terminated
)

// Placeholder replaces every character that has no Latin-1 representation.
const Placeholder = '*'

// Valid reports whether e is one of the four defined encodings.
func (e Encoding) Valid() bool { return e <= UTF8 }

// Width returns the size in bytes of one code unit, including the terminator.
func (e Encoding) Width() int {
	if e == UTF16BOM || e == UTF16BE {
		return 2
	}
	return 1
}

func (e Encoding) String() string {
	switch e {
	case Latin1:
		return "ISO-8859-1"
	case UTF16BOM:
		return "UTF-16"
	case UTF16BE:
		return "UTF-16BE"
	case UTF8:
		return "UTF-8"
	}
	return fmt.Sprintf("encoding(0x%02x)", byte(e))
}

// Decode converts src, which must not contain the terminator, to Latin-1.
// Undefined encodings are read as Latin-1.
//
// The conversion is lossy on purpose: UTF-16 code units above 0xFF become
// Placeholder (a surrogate pair yields one), and UTF-8 is only decoded for
// ASCII, every multi-byte sequence becoming one Placeholder.
func (e Encoding) Decode(src []byte) []byte {
	switch e {
	case UTF16BOM:
		return decodeUTF16BOM(src)
	case UTF16BE:
		return decodeUTF16(src, true)
	case UTF8:
		return decodeUTF8(src)
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func decodeUTF16BOM(src []byte) []byte {
	if len(src) < 2 {
		return nil
	}
	switch {
	case src[0] == 0xFF && src[1] == 0xFE:
		return decodeUTF16(src[2:], false)
	case src[0] == 0xFE && src[1] == 0xFF:
		return decodeUTF16(src[2:], true)
	}
	// no BOM at all; big endian is the ID3 default
	return decodeUTF16(src, true)
}

func decodeUTF16(src []byte, bigEndian bool) []byte {
	src = src[:len(src)-len(src)%2]
	dst := make([]byte, 0, len(src)/2)
	for i := 0; i < len(src); i += 2 {
		var w uint16
		if bigEndian {
			w = uint16(src[i])<<8 | uint16(src[i+1])
		} else {
			w = uint16(src[i]) | uint16(src[i+1])<<8
		}
		switch {
		case w >= 0xDC00 && w <= 0xDFFF:
			// low surrogate, already accounted for by its high half
		case w > 0xFF:
			dst = append(dst, Placeholder)
		default:
			dst = append(dst, byte(w))
		}
	}
	return dst
}

func decodeUTF8(src []byte) []byte {
	dst := make([]byte, 0, len(src))
	for _, c := range src {
		switch {
		case c&0xC0 == 0x80:
			// continuation byte
		case c&0x80 != 0:
			dst = append(dst, Placeholder)
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

func decodeLatin1(buf []byte) string {
	r := make([]rune, len(buf))
	for i := range buf {
		r[i] = rune(buf[i])
	}
	return string(r)
}

// WideByteLen returns the length of the first string in s whose characters
// are width bytes wide. The terminating NUL unit is included when there is one.
func WideByteLen(width int, s []byte) int {
	l := 0
	for l+width <= len(s) {
		zero := true
		for _, c := range s[l : l+width] {
			if c != 0 {
				zero = false
				break
			}
		}
		l += width
		if zero {
			return l
		}
	}
	return l
}

// Logger receives warnings about recoverable oddities in tag data.
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...interface{})
}

func logf(l Logger, format string, v ...interface{}) {
	if l != nil {
		l.Printf(format, v...)
	}
}

// StoreText decodes a text field body (encoding byte followed by one or more
// terminated strings) and appends every string found to sb as its own line.
func StoreText(sb *StringBuf, src []byte, l Logger) {
	if len(src) == 0 {
		return
	}
	enc := Encoding(src[0])
	if !enc.Valid() {
		logf(l, "id3: unknown text encoding %d, assuming %s", src[0], Latin1)
		enc = Latin1
	}
	text := src[1:]
	w := enc.Width()
	if odd := len(text) % w; odd != 0 {
		logf(l, "id3: text of %d bytes is not a multiple of %d for %s, trimming", len(text), w, enc)
		text = text[:len(text)-odd]
	}
	for len(text) > 0 {
		n := WideByteLen(w, text)
		sb.AppendLine(enc.Decode(trimTerminator(text[:n], w)))
		text = text[n:]
	}
}

// trimTerminator drops a trailing NUL unit of the given width.
func trimTerminator(s []byte, width int) []byte {
	if len(s) < width {
		return s
	}
	for _, c := range s[len(s)-width:] {
		if c != 0 {
			return s
		}
	}
	return s[:len(s)-width]
}

// SplitTerminated splits s after its first string of the given encoding,
// returning that string without terminator and the remaining bytes.
func SplitTerminated(enc Encoding, s []byte) (str, rest []byte) {
	n := WideByteLen(enc.Width(), s)
	return trimTerminator(s[:n], enc.Width()), s[n:]
}
