package id3

// StringBuf accumulates Latin-1 text for one tag field. A filled buffer always
// ends in a single NUL byte, and Len counts it, so an empty but present value
// (Len 1) can be told apart from a value that was never set (Len 0).
type StringBuf struct {
	p []byte
}

// Len returns the number of bytes in use including the terminator.
func (sb *StringBuf) Len() int { return len(sb.p) }

// Filled reports whether a value has been stored.
func (sb *StringBuf) Filled() bool { return len(sb.p) > 0 }

// Reset marks the buffer as unset, keeping its storage.
func (sb *StringBuf) Reset() { sb.p = sb.p[:0] }

// Grow makes room for n more bytes.
func (sb *StringBuf) Grow(n int) {
	if n <= cap(sb.p)-len(sb.p) {
		return
	}
	p := make([]byte, len(sb.p), 2*cap(sb.p)+n)
	copy(p, sb.p)
	sb.p = p
}

// AppendLine stores s as an additional value. Values already present are
// kept and separated from s by a line break.
func (sb *StringBuf) AppendLine(s []byte) {
	sb.Grow(len(s) + 1)
	if len(sb.p) > 0 {
		sb.p[len(sb.p)-1] = '\n'
	}
	sb.p = append(sb.p, s...)
	sb.p = append(sb.p, 0)
}

// Add concatenates s onto the stored value.
func (sb *StringBuf) Add(s string) {
	sb.Grow(len(s) + 1)
	if len(sb.p) > 0 {
		sb.p = sb.p[:len(sb.p)-1]
	}
	sb.p = append(sb.p, s...)
	sb.p = append(sb.p, 0)
}

// Set replaces the stored value with s.
func (sb *StringBuf) Set(s string) {
	sb.Reset()
	sb.Add(s)
}

// Bytes returns the raw Latin-1 value without its terminator. The slice is
// only valid until the next modification.
func (sb *StringBuf) Bytes() []byte {
	if len(sb.p) == 0 {
		return nil
	}
	return sb.p[:len(sb.p)-1]
}

// String returns the value converted to UTF-8.
func (sb *StringBuf) String() string {
	return decodeLatin1(sb.Bytes())
}

func (sb *StringBuf) clone() StringBuf {
	if sb.p == nil {
		return StringBuf{}
	}
	p := make([]byte, len(sb.p))
	copy(p, sb.p)
	return StringBuf{p: p}
}
