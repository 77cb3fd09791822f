package mpadec

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Reader is the byte source a Handle pulls frames and tags from.
//
// ReadFull, Peek and Skip either deliver all n bytes or fail. At the end of
// the input ReadFull and Peek return io.EOF when no bytes were left and
// io.ErrUnexpectedEOF otherwise; Skip always returns io.ErrUnexpectedEOF. A
// reader that is waiting for more input returns ErrNeedMore.
type Reader interface {
	ReadFull(p []byte) error
	// Peek returns the next n bytes without consuming them. The slice is
	// only valid until the next call.
	Peek(n int) ([]byte, error)
	Skip(n int64) error
	// Tell returns the stream offset of the next byte.
	Tell() int64
	// SeekTo moves to an offset returned by Tell earlier, or fails with
	// ErrNoSeek.
	SeekTo(pos int64) error
}

// Marker is implemented by readers that rewind on ErrNeedMore. Mark sets
// the position to rewind to; the Handle marks the start of every frame and
// tag, so that an interrupted step is retried from the beginning once more
// input has been fed.
type Marker interface {
	Mark()
}

// feedReader holds the bytes given to Handle.Feed.
type feedReader struct {
	buf  []byte
	pos  int
	mark int
	base int64 // stream offset of buf[0]
}

func (r *feedReader) feed(p []byte) {
	r.buf = append(r.buf, p...)
}

func (r *feedReader) Mark() {
	// drop what has been consumed once it is worth the copy
	if r.pos > 0 && r.pos >= len(r.buf)/2 {
		n := copy(r.buf, r.buf[r.pos:])
		r.buf = r.buf[:n]
		r.base += int64(r.pos)
		r.pos = 0
	}
	r.mark = r.pos
}

func (r *feedReader) needMore() error {
	r.pos = r.mark
	return ErrNeedMore
}

// need returns ErrNeedMore unless n bytes are buffered past the read
// position.
func (r *feedReader) need(n int64) error {
	if int64(len(r.buf)-r.pos) < n {
		return r.needMore()
	}
	return nil
}

func (r *feedReader) ReadFull(p []byte) error {
	if len(r.buf)-r.pos < len(p) {
		return r.needMore()
	}
	r.pos += copy(p, r.buf[r.pos:])
	return nil
}

func (r *feedReader) Peek(n int) ([]byte, error) {
	if len(r.buf)-r.pos < n {
		return nil, r.needMore()
	}
	return r.buf[r.pos : r.pos+n], nil
}

func (r *feedReader) Skip(n int64) error {
	if int64(len(r.buf)-r.pos) < n {
		return r.needMore()
	}
	r.pos += int(n)
	return nil
}

func (r *feedReader) Tell() int64 {
	return r.base + int64(r.pos)
}

func (r *feedReader) SeekTo(pos int64) error {
	if pos < r.base || pos > r.base+int64(len(r.buf)) {
		return errors.Wrapf(ErrNoSeek, "offset %d is no longer buffered", pos)
	}
	r.pos = int(pos - r.base)
	r.mark = r.pos
	return nil
}

// streamReader reads from an io.Reader, seeking if it is an io.Seeker.
type streamReader struct {
	src    io.Reader
	seeker io.Seeker
	r      *bufio.Reader
	pos    int64
	end    int64 // size of src, -1 if unknown
}

func newStreamReader(src io.Reader, pos, end int64) *streamReader {
	r := &streamReader{src: src, r: bufio.NewReader(src), pos: pos, end: end}
	r.seeker, _ = src.(io.Seeker)
	return r
}

func (r *streamReader) ReadFull(p []byte) error {
	n, err := io.ReadFull(r.r, p)
	r.pos += int64(n)
	return err
}

func (r *streamReader) Peek(n int) ([]byte, error) {
	b, err := r.r.Peek(n)
	if err == io.EOF && len(b) > 0 {
		err = io.ErrUnexpectedEOF
	}
	return b, err
}

func (r *streamReader) Skip(n int64) error {
	if r.seeker != nil && n > int64(r.r.Buffered()) {
		var err error
		to := r.pos + n
		if r.end >= 0 && to > r.end {
			// a seek past the end would succeed
			to, err = r.end, io.ErrUnexpectedEOF
		}
		if _, serr := r.seeker.Seek(to, io.SeekStart); serr != nil {
			return serr
		}
		r.r.Reset(r.src)
		r.pos = to
		return err
	}
	for n > 0 {
		chunk := n
		if chunk > 1<<30 {
			chunk = 1 << 30
		}
		m, err := r.r.Discard(int(chunk))
		r.pos += int64(m)
		n -= int64(m)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *streamReader) Tell() int64 {
	return r.pos
}

func (r *streamReader) SeekTo(pos int64) error {
	if r.seeker == nil {
		return errors.Wrap(ErrNoSeek, "stream is not seekable")
	}
	if _, err := r.seeker.Seek(pos, io.SeekStart); err != nil {
		return errors.Wrap(err, "mpadec: seek")
	}
	r.r.Reset(r.src)
	r.pos = pos
	return nil
}
