package mpadec

import (
	"github.com/pkg/errors"
)

// Status is the outcome of a decoding step, for callers that prefer to
// switch on a code rather than compare errors.
type Status int

const (
	StatusOK Status = iota
	StatusDone
	StatusError
	StatusNeedMore
	StatusNewFormat
	StatusNoSpace
)

var statusNames = [...]string{
	StatusOK:        "ok",
	StatusDone:      "done",
	StatusError:     "error",
	StatusNeedMore:  "need more",
	StatusNewFormat: "new format",
	StatusNoSpace:   "no space",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

var (
	// ErrDone reports the clean end of the stream, or of the range of
	// frames selected with WithStartFrame and WithFrameCount.
	ErrDone = errors.New("mpadec: end of stream")
	// ErrNeedMore means the feed has run dry. The step can be retried
	// after Feed.
	ErrNeedMore = errors.New("mpadec: need more input")
	// ErrNewFormat means the output format changed with the frame just
	// read. The frame is decoded by the next call.
	ErrNewFormat = errors.New("mpadec: new output format")
	// ErrNoSpace means the output buffer is smaller than one block.
	ErrNoSpace = errors.New("mpadec: output buffer too small")

	ErrNoStream = errors.New("mpadec: no stream open")
	ErrNoSeek   = errors.New("mpadec: reader cannot seek there")
	ErrSync     = errors.New("mpadec: too much garbage between frames")
	ErrBadRate  = errors.New("mpadec: invalid sample rate or downsampling")
	ErrBadRVA   = errors.New("mpadec: invalid RVA mode")
	ErrBadParam = errors.New("mpadec: invalid parameter")
)

// StatusOf maps an error returned by a Handle to its Status. nil is
// StatusOK and any error not listed above is StatusError.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrDone):
		return StatusDone
	case errors.Is(err, ErrNeedMore):
		return StatusNeedMore
	case errors.Is(err, ErrNewFormat):
		return StatusNewFormat
	case errors.Is(err, ErrNoSpace):
		return StatusNoSpace
	}
	return StatusError
}
