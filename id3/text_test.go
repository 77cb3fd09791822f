package id3

import (
	"bytes"
	"fmt"
	"testing"
)

type recordLogger struct {
	lines []string
}

func (l *recordLogger) Printf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestEncodingDecode(t *testing.T) {
	tests := []struct {
		name string
		enc  Encoding
		in   []byte
		want string
	}{
		{"latin1", Latin1, []byte{'a', 0xE9, 'b'}, "a\xe9b"},
		{"utf16 le bom", UTF16BOM, []byte{0xFF, 0xFE, 'H', 0, 'i', 0}, "Hi"},
		{"utf16 be bom", UTF16BOM, []byte{0xFE, 0xFF, 0, 'H', 0, 'i'}, "Hi"},
		{"utf16 no bom", UTF16BOM, []byte{0, 'H', 0, 'i'}, "Hi"},
		{"utf16 short", UTF16BOM, []byte{0xFF}, ""},
		{"utf16be", UTF16BE, []byte{0, 'O', 0, 'K', 0, 0xE9}, "OK\xe9"},
		{"utf16be wide", UTF16BE, []byte{0x04, 0x14, 0, 'a'}, "*a"},
		{"utf16 surrogate pair", UTF16BE, []byte{0xD8, 0x3D, 0xDE, 0x00, 0, '!'}, "*!"},
		{"utf16 odd length", UTF16BE, []byte{0, 'a', 0}, "a"},
		{"utf8 ascii", UTF8, []byte("plain"), "plain"},
		{"utf8 two byte", UTF8, []byte("caf\xc3\xa9!"), "caf*!"},
		{"utf8 four byte", UTF8, []byte("\xf0\x9f\x8e\xb5x"), "*x"},
		{"undefined reads latin1", Encoding(9), []byte("x"), "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.enc.Decode(tt.in)
			if string(got) != tt.want {
				t.Errorf("Decode(%x) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodingWidth(t *testing.T) {
	want := map[Encoding]int{Latin1: 1, UTF16BOM: 2, UTF16BE: 2, UTF8: 1}
	for enc, w := range want {
		if enc.Width() != w {
			t.Errorf("%s.Width() = %d, want %d", enc, enc.Width(), w)
		}
		if !enc.Valid() {
			t.Errorf("%s.Valid() = false", enc)
		}
	}
	if Encoding(4).Valid() {
		t.Error("Encoding(4).Valid() = true")
	}
}

func TestWideByteLen(t *testing.T) {
	tests := []struct {
		width int
		in    []byte
		want  int
	}{
		{1, []byte("abc\x00def"), 4},
		{1, []byte("abc"), 3},
		{1, []byte{0}, 1},
		{2, []byte{0, 'a', 0, 0, 0, 'b'}, 4},
		{2, []byte{'a', 0, 'b', 0}, 4},
		{2, []byte{0, 'a', 0}, 2},
		{1, nil, 0},
	}
	for _, tt := range tests {
		if got := WideByteLen(tt.width, tt.in); got != tt.want {
			t.Errorf("WideByteLen(%d, %q) = %d, want %d", tt.width, tt.in, got, tt.want)
		}
	}
}

func TestStoreTextMultiValue(t *testing.T) {
	var sb StringBuf
	StoreText(&sb, []byte("\x00Hello\x00World\x00"), nil)
	if got := sb.String(); got != "Hello\nWorld" {
		t.Errorf("StoreText = %q, want %q", got, "Hello\nWorld")
	}
}

func TestStoreTextUnterminated(t *testing.T) {
	var sb StringBuf
	StoreText(&sb, []byte("\x00Title"), nil)
	if got := sb.String(); got != "Title" {
		t.Errorf("StoreText = %q, want %q", got, "Title")
	}
}

func TestStoreTextUTF16PerValueBOM(t *testing.T) {
	src := []byte{byte(UTF16BOM),
		0xFF, 0xFE, 'A', 0, 0, 0,
		0xFE, 0xFF, 0, 'B', 0, 0,
	}
	var sb StringBuf
	StoreText(&sb, src, nil)
	if got := sb.String(); got != "A\nB" {
		t.Errorf("StoreText = %q, want %q", got, "A\nB")
	}
}

func TestStoreTextTrimsPartialUnit(t *testing.T) {
	var sb StringBuf
	var l recordLogger
	StoreText(&sb, []byte{byte(UTF16BE), 0, 'o', 0, 'k', 0}, &l)
	if got := sb.String(); got != "ok" {
		t.Errorf("StoreText = %q, want %q", got, "ok")
	}
	if len(l.lines) != 1 {
		t.Errorf("got %d warnings, want 1: %q", len(l.lines), l.lines)
	}
}

func TestStoreTextUnknownEncoding(t *testing.T) {
	var sb StringBuf
	var l recordLogger
	StoreText(&sb, []byte("\x07abc"), &l)
	if got := sb.String(); got != "abc" {
		t.Errorf("StoreText = %q, want %q", got, "abc")
	}
	if len(l.lines) != 1 {
		t.Errorf("got %d warnings, want 1", len(l.lines))
	}
}

func TestStoreTextAppendsToExisting(t *testing.T) {
	var sb StringBuf
	StoreText(&sb, []byte("\x00first"), nil)
	StoreText(&sb, []byte("\x00second"), nil)
	if got := sb.String(); got != "first\nsecond" {
		t.Errorf("StoreText = %q, want %q", got, "first\nsecond")
	}
}

func TestStoreTextEmpty(t *testing.T) {
	var sb StringBuf
	StoreText(&sb, nil, nil)
	if sb.Filled() {
		t.Error("empty source filled the field")
	}
	StoreText(&sb, []byte{0, 0}, nil)
	if !sb.Filled() || sb.String() != "" {
		t.Errorf("lone terminator: filled=%v value=%q, want filled empty value", sb.Filled(), sb.String())
	}
}

func TestSplitTerminated(t *testing.T) {
	str, rest := SplitTerminated(UTF16BE, []byte{0, 'x', 0, 0, 0, 'y'})
	if !bytes.Equal(str, []byte{0, 'x'}) || !bytes.Equal(rest, []byte{0, 'y'}) {
		t.Errorf("SplitTerminated = %x, %x", str, rest)
	}
	str, rest = SplitTerminated(Latin1, []byte("no terminator"))
	if string(str) != "no terminator" || len(rest) != 0 {
		t.Errorf("SplitTerminated = %q, %q", str, rest)
	}
}
