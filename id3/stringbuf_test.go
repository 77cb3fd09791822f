package id3

import "testing"

func TestStringBufFilledVsEmpty(t *testing.T) {
	var sb StringBuf
	if sb.Filled() {
		t.Fatal("zero StringBuf reports filled")
	}
	sb.Set("")
	if !sb.Filled() {
		t.Fatal("empty value not reported as filled")
	}
	if sb.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (terminator only)", sb.Len())
	}
	if sb.String() != "" {
		t.Errorf("String() = %q, want empty", sb.String())
	}
}

func TestStringBufAppendLine(t *testing.T) {
	var sb StringBuf
	sb.AppendLine([]byte("Hello"))
	sb.AppendLine([]byte("World"))
	if got := sb.String(); got != "Hello\nWorld" {
		t.Errorf("String() = %q, want %q", got, "Hello\nWorld")
	}
	if sb.Len() != len("Hello\nWorld")+1 {
		t.Errorf("Len() = %d, want %d", sb.Len(), len("Hello\nWorld")+1)
	}
	if cap(sb.p) < sb.Len() {
		t.Errorf("capacity %d < Len() = %d", cap(sb.p), sb.Len())
	}
}

func TestStringBufAdd(t *testing.T) {
	var sb StringBuf
	sb.Add("Rock")
	sb.Add(", ")
	sb.Add("Pop")
	if got := sb.String(); got != "Rock, Pop" {
		t.Errorf("String() = %q, want %q", got, "Rock, Pop")
	}
	sb.Reset()
	if sb.Filled() || sb.Bytes() != nil {
		t.Error("Reset() left a value behind")
	}
}

func TestStringBufLatin1(t *testing.T) {
	var sb StringBuf
	sb.AppendLine([]byte{'c', 'a', 'f', 0xE9})
	if got := sb.String(); got != "café" {
		t.Errorf("String() = %q, want %q", got, "café")
	}
	if got := sb.Bytes(); len(got) != 4 || got[3] != 0xE9 {
		t.Errorf("Bytes() = %x, want raw Latin-1", got)
	}
}

func TestStringBufCloneIsIndependent(t *testing.T) {
	var sb StringBuf
	sb.Set("one")
	c := sb.clone()
	sb.Set("two")
	if c.String() != "one" {
		t.Errorf("clone changed with original: %q", c.String())
	}
}
