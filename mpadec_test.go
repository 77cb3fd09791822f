package mpadec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"

	"ktkr.us/pkg/mpadec/id3"
	"ktkr.us/pkg/mpadec/id3/id3v1"
	"ktkr.us/pkg/mpadec/id3/id3v2"
)

// MPEG 1 layer III, 128 kbps, 44.1 kHz, stereo, no CRC: 417 byte frames.
const (
	testHeader    = 0xfffb9000
	testFrameSize = 417
)

func mpegFrame() []byte {
	b := make([]byte, testFrameSize)
	binary.BigEndian.PutUint32(b, testHeader)
	return b
}

func mpegFrames(n int) []byte {
	return bytes.Repeat(mpegFrame(), n)
}

func xingFrame(frames uint32) []byte {
	b := mpegFrame()
	off := 4 + 32 // header, stereo MPEG 1 side info
	copy(b[off:], "Xing")
	binary.BigEndian.PutUint32(b[off+4:], 1) // frame count only
	binary.BigEndian.PutUint32(b[off+8:], frames)
	return b
}

func id3Frame(id string, body []byte) []byte {
	b := make([]byte, 10, 10+len(body))
	copy(b, id)
	id3v2.PutSynchsafe(b[4:], uint32(len(body)))
	return append(b, body...)
}

func id3Tag(frames ...[]byte) []byte {
	body := bytes.Join(frames, nil)
	b := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0}
	id3v2.PutSynchsafe(b[6:], uint32(len(body)))
	return append(b, body...)
}

func latin1(s string) []byte {
	return append([]byte{byte(id3.Latin1)}, s...)
}

func trailer(title, artist string) []byte {
	b := make([]byte, id3v1.Size)
	copy(b, id3v1.Magic)
	copy(b[3:33], title)
	copy(b[33:63], artist)
	b[127] = 17
	return b
}

// recordSynth remembers what it was asked to do.
type recordSynth struct {
	frames []int
	scale  float64
	resets int
}

func (s *recordSynth) Synthesize(f *Frame, format Format, scale float64, out []byte) (int, error) {
	s.frames = append(s.frames, f.Num)
	s.scale = scale
	return len(out), nil
}

func (s *recordSynth) Reset() { s.resets++ }

func newHandle(t *testing.T, opts ...Option) *Handle {
	t.Helper()
	h, err := New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

type step struct {
	num    int
	status Status
}

func decodeAll(t *testing.T, h *Handle) []step {
	t.Helper()
	var steps []step
	for i := 0; i < 100; i++ {
		num, _, err := h.DecodeFrame()
		s := StatusOf(err)
		if s == StatusError {
			t.Fatalf("DecodeFrame: %v", err)
		}
		steps = append(steps, step{num, s})
		if s == StatusDone {
			return steps
		}
	}
	t.Fatal("no end of stream")
	return nil
}

func sameSteps(a, b []step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDecodeSequence(t *testing.T) {
	h := newHandle(t)
	if err := h.Open(bytes.NewReader(mpegFrames(3))); err != nil {
		t.Fatal(err)
	}
	got := decodeAll(t, h)
	want := []step{
		{0, StatusNewFormat},
		{0, StatusOK},
		{1, StatusOK},
		{2, StatusOK},
		{2, StatusDone},
	}
	if !sameSteps(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
	if f := h.Format(); f != (Format{Rate: 44100, Channels: 2}) {
		t.Errorf("Format() = %v", f)
	}
	if h.OutBlock() != 4608 {
		t.Errorf("OutBlock() = %d, want 4608", h.OutBlock())
	}
	if n := h.Length(); n != 3 {
		t.Errorf("Length() = %d, want 3", n)
	}
	// 1251 bytes at 128 kbps
	info, ok := h.Info()
	if want := 78187500 * time.Nanosecond; !ok || info.Duration < want-time.Microsecond || info.Duration > want+time.Microsecond {
		t.Errorf("Info().Duration = %v, want %v", info.Duration, want)
	}
}

func TestDecodeFrameAudio(t *testing.T) {
	h := newHandle(t)
	if err := h.Open(bytes.NewReader(mpegFrames(1))); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.DecodeFrame(); err != ErrNewFormat {
		t.Fatalf("first DecodeFrame error = %v, want ErrNewFormat", err)
	}
	num, audio, err := h.DecodeFrame()
	if err != nil || num != 0 || len(audio) != 4608 {
		t.Errorf("DecodeFrame() = %d, %d bytes, %v", num, len(audio), err)
	}
}

func TestNoStream(t *testing.T) {
	h := newHandle(t)
	if _, _, err := h.DecodeFrame(); err != ErrNoStream {
		t.Errorf("DecodeFrame error = %v, want ErrNoStream", err)
	}
	if err := h.Feed([]byte{1}); !errors.Is(err, ErrNoStream) {
		t.Errorf("Feed error = %v, want ErrNoStream", err)
	}
	if _, err := h.SeekFrame(1); err != ErrNoStream {
		t.Errorf("SeekFrame error = %v, want ErrNoStream", err)
	}
}

func TestFeed(t *testing.T) {
	h := newHandle(t)
	h.OpenFeed()
	stream := mpegFrames(2)

	if _, _, err := h.DecodeFrame(); err != ErrNeedMore {
		t.Fatalf("empty feed error = %v, want ErrNeedMore", err)
	}
	if err := h.Feed(stream[:200]); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.DecodeFrame(); StatusOf(err) != StatusNeedMore {
		t.Fatalf("partial frame error = %v, want ErrNeedMore", err)
	}
	if err := h.Feed(stream[200:]); err != nil {
		t.Fatal(err)
	}
	want := []step{{0, StatusNewFormat}, {0, StatusOK}, {1, StatusOK}, {1, StatusNeedMore}}
	for _, w := range want {
		num, _, err := h.DecodeFrame()
		if got := (step{num, StatusOf(err)}); got != w {
			t.Errorf("DecodeFrame() = %v, want %v (%v)", got, w, err)
		}
	}
}

func TestFeedSplitTag(t *testing.T) {
	h := newHandle(t)
	h.OpenFeed()
	stream := append(id3Tag(id3Frame("TIT2", latin1("Title"))), mpegFrames(1)...)

	h.Feed(stream[:12])
	if _, _, err := h.DecodeFrame(); StatusOf(err) != StatusNeedMore {
		t.Fatalf("partial tag error = %v, want ErrNeedMore", err)
	}
	if h.MetaCheck() != 0 {
		t.Errorf("MetaCheck() = %v before the tag was complete", h.MetaCheck())
	}
	h.Feed(stream[12:])
	if _, _, err := h.DecodeFrame(); err != ErrNewFormat {
		t.Fatalf("DecodeFrame error = %v, want ErrNewFormat", err)
	}
	if got := h.Tag().Title.String(); got != "Title" {
		t.Errorf("title = %q, want %q", got, "Title")
	}
}

func TestStartAndCount(t *testing.T) {
	h := newHandle(t, WithStartFrame(1), WithFrameCount(2))
	if err := h.Open(bytes.NewReader(mpegFrames(5))); err != nil {
		t.Fatal(err)
	}
	got := decodeAll(t, h)
	want := []step{
		{1, StatusNewFormat},
		{1, StatusOK},
		{2, StatusOK},
		{3, StatusDone},
	}
	if !sameSteps(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestNoSpace(t *testing.T) {
	h := newHandle(t, WithBufferSize(1000))
	if err := h.Open(bytes.NewReader(mpegFrames(1))); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.DecodeFrame(); err != ErrNewFormat {
		t.Fatalf("first DecodeFrame error = %v, want ErrNewFormat", err)
	}
	_, _, err := h.DecodeFrame()
	if StatusOf(err) != StatusNoSpace {
		t.Errorf("DecodeFrame error = %v, want ErrNoSpace", err)
	}
}

func TestResync(t *testing.T) {
	stream := append(make([]byte, 10), mpegFrames(2)...)

	h := newHandle(t)
	if err := h.Open(bytes.NewReader(stream)); err != nil {
		t.Fatal(err)
	}
	got := decodeAll(t, h)
	want := []step{{0, StatusNewFormat}, {0, StatusOK}, {1, StatusOK}, {1, StatusDone}}
	if !sameSteps(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}

	h = newHandle(t, WithResyncLimit(5))
	if err := h.Open(bytes.NewReader(stream)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.DecodeFrame(); !errors.Is(err, ErrSync) || StatusOf(err) != StatusError {
		t.Errorf("DecodeFrame error = %v, want ErrSync", err)
	}
}

func TestID3v2BeforeAudio(t *testing.T) {
	stream := append(id3Tag(
		id3Frame("TIT2", latin1("Title")),
		id3Frame("TPE1", latin1("Artist")),
		id3Frame("TCON", latin1("(17)")),
	), mpegFrames(2)...)

	h := newHandle(t)
	if err := h.Open(bytes.NewReader(stream)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := h.DecodeFrame(); err != ErrNewFormat {
		t.Fatalf("DecodeFrame error = %v, want ErrNewFormat", err)
	}
	if got := h.MetaCheck(); got != MetaID3|MetaNewID3 {
		t.Errorf("MetaCheck() = %v", got)
	}
	v1, v2 := h.ID3()
	if v1 != nil {
		t.Errorf("unexpected ID3v1 tag %+v", v1)
	}
	if v2.Version != 4 || v2.Title.String() != "Title" || v2.Artist.String() != "Artist" || v2.Genre.String() != "Rock" {
		t.Errorf("tag = %q %q %q (v%d)", v2.Title.String(), v2.Artist.String(), v2.Genre.String(), v2.Version)
	}
	if got := h.MetaCheck(); got != MetaID3 {
		t.Errorf("MetaCheck() after ID3() = %v, want MetaID3", got)
	}
	if n := h.Length(); n != 2 {
		t.Errorf("Length() = %d, want 2", n)
	}
}

func TestID3v1Trailer(t *testing.T) {
	stream := append(id3Tag(id3Frame("TIT2", latin1("v2 title"))), mpegFrames(2)...)
	stream = append(stream, trailer("v1 title", "v1 artist")...)

	for name, r := range map[string]io.Reader{
		"seeker": bytes.NewReader(stream),
		"stream": struct{ io.Reader }{bytes.NewReader(stream)},
	} {
		h := newHandle(t)
		if err := h.Open(r); err != nil {
			t.Fatal(err)
		}
		got := decodeAll(t, h)
		if last := got[len(got)-1]; last != (step{1, StatusDone}) {
			t.Errorf("%s: last step = %v", name, last)
		}
		v1, _ := h.ID3()
		if v1 == nil || v1.Title != "v1 title" {
			t.Fatalf("%s: ID3v1 = %+v", name, v1)
		}
		tag := h.Tag()
		if tag.Title.String() != "v2 title" || tag.Artist.String() != "v1 artist" || tag.Genre.String() != "Rock" {
			t.Errorf("%s: merged tag = %q %q %q", name, tag.Title.String(), tag.Artist.String(), tag.Genre.String())
		}
	}
}

func TestXingFrameNotCounted(t *testing.T) {
	stream := append(xingFrame(2), mpegFrames(2)...)
	h := newHandle(t)
	if err := h.Open(bytes.NewReader(stream)); err != nil {
		t.Fatal(err)
	}
	got := decodeAll(t, h)
	want := []step{{0, StatusNewFormat}, {0, StatusOK}, {1, StatusOK}, {1, StatusDone}}
	if !sameSteps(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
	info, ok := h.Info()
	if !ok {
		t.Fatal("Info() not available")
	}
	if info.VBR == nil || info.VBR.Tag != "Xing" || info.Frames != 2 {
		t.Errorf("Info() = %+v", info)
	}
	if want := 2 * 1152 * 1e9 / 44100; math.Abs(float64(info.Duration)-want) > 1 {
		t.Errorf("Duration = %v", info.Duration)
	}
}

func TestSeekFrame(t *testing.T) {
	s := new(recordSynth)
	h := newHandle(t, WithSynth(s))
	if err := h.Open(bytes.NewReader(mpegFrames(5))); err != nil {
		t.Fatal(err)
	}

	// forward, past anything read
	if pos, err := h.SeekFrame(3); err != nil || pos != 3 {
		t.Fatalf("SeekFrame(3) = %d, %v", pos, err)
	}
	if num, _, err := h.DecodeFrame(); num != 3 || err != ErrNewFormat {
		t.Fatalf("DecodeFrame() = %d, %v; want 3, ErrNewFormat", num, err)
	}
	if num, _, err := h.DecodeFrame(); num != 3 || err != nil {
		t.Fatalf("DecodeFrame() = %d, %v", num, err)
	}

	// back, through the index
	if pos, err := h.SeekFrame(1); err != nil || pos != 1 {
		t.Fatalf("SeekFrame(1) = %d, %v", pos, err)
	}
	var nums []int
	for {
		num, _, err := h.DecodeFrame()
		if err == ErrDone {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		nums = append(nums, num)
	}
	if len(nums) != 4 || nums[0] != 1 || nums[3] != 4 {
		t.Errorf("frames after seek = %v, want [1 2 3 4]", nums)
	}
	// New, Open and both seeks
	if s.resets != 4 {
		t.Errorf("synth reset %d times, want 4", s.resets)
	}
}

func TestSeekFrameFeed(t *testing.T) {
	h := newHandle(t)
	h.OpenFeed()
	h.Feed(mpegFrames(3))
	h.DecodeFrame()
	if num, _, err := h.DecodeFrame(); num != 0 || err != nil {
		t.Fatalf("DecodeFrame() = %d, %v", num, err)
	}
	if pos, err := h.SeekFrame(0); err != nil || pos != 0 {
		t.Fatalf("SeekFrame(0) = %d, %v", pos, err)
	}
	for want := 0; want < 3; want++ {
		if num, _, err := h.DecodeFrame(); num != want || err != nil {
			t.Fatalf("DecodeFrame() = %d, %v; want %d", num, err, want)
		}
	}
	if _, _, err := h.DecodeFrame(); err != ErrNeedMore {
		t.Fatalf("DecodeFrame error = %v, want ErrNeedMore", err)
	}
	// consumed input is dropped
	if _, err := h.SeekFrame(0); !errors.Is(err, ErrNoSeek) {
		t.Errorf("SeekFrame(0) error = %v, want ErrNoSeek", err)
	}
}

func TestRVAScale(t *testing.T) {
	rva2 := func(ident string, gain int16) []byte {
		b := append([]byte(ident), 0, 1)
		return append(b, byte(uint16(gain)>>8), byte(gain), 0)
	}
	tests := []struct {
		mode RVAMode
		tag  []byte
		want float64
	}{
		{RVAOff, id3Tag(id3Frame("RVA2", rva2("track", 1024))), 1},
		{RVAMix, id3Tag(id3Frame("RVA2", rva2("track", 1024))), math.Pow(10, 0.1)},
		{RVAMix, id3Tag(id3Frame("RVA2", rva2("album", 1024))), 1},
		{RVAAlbum, id3Tag(id3Frame("RVA2", rva2("track", -3072))), math.Pow(10, -0.3)},
		{RVAAlbum, id3Tag(
			id3Frame("RVA2", rva2("track", 1024)),
			id3Frame("RVA2", rva2("album", -1024)),
		), math.Pow(10, -0.1)},
		{RVAMix, id3Tag(
			id3Frame("TXXX", latin1("replaygain_track_gain\x006 dB")),
			id3Frame("TXXX", latin1("replaygain_track_peak\x000.9")),
		), 1 / 0.9},
	}
	for i, tt := range tests {
		s := new(recordSynth)
		h := newHandle(t, WithRVA(tt.mode), WithSynth(s))
		if err := h.Open(bytes.NewReader(append(tt.tag, mpegFrames(1)...))); err != nil {
			t.Fatal(err)
		}
		decodeAll(t, h)
		if math.Abs(h.Scale()-tt.want) > 1e-9 || math.Abs(s.scale-tt.want) > 1e-9 {
			t.Errorf("%d: scale = %g (synth %g), want %g", i, h.Scale(), s.scale, tt.want)
		}
	}
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		opts     []Option
		format   Format
		outBlock int
	}{
		{nil, Format{44100, 2}, 4608},
		{[]Option{WithDownSample(1)}, Format{22050, 2}, 2304},
		{[]Option{WithDownSample(2), WithForceMono()}, Format{11025, 1}, 576},
		{[]Option{WithForceRate(48000)}, Format{48000, 2}, 5016},
		{[]Option{WithForceRate(44100), WithForceMono()}, Format{44100, 1}, 2304},
	}
	for _, tt := range tests {
		h := newHandle(t, tt.opts...)
		if err := h.Open(bytes.NewReader(mpegFrames(1))); err != nil {
			t.Fatal(err)
		}
		if _, _, err := h.DecodeFrame(); err != ErrNewFormat {
			t.Fatalf("DecodeFrame error = %v", err)
		}
		if h.Format() != tt.format || h.OutBlock() != tt.outBlock {
			t.Errorf("format %v, block %d; want %v, %d", h.Format(), h.OutBlock(), tt.format, tt.outBlock)
		}
	}
}

func TestNewOptionErrors(t *testing.T) {
	tests := []struct {
		opt Option
		err error
	}{
		{WithForceRate(-1), ErrBadRate},
		{WithForceRate(MaxForceRate + 1), ErrBadRate},
		{WithDownSample(3), ErrBadRate},
		{WithRVA(RVAMode(7)), ErrBadRVA},
		{WithBufferSize(-1), ErrBadParam},
		{WithSynth(nil), ErrBadParam},
	}
	for _, tt := range tests {
		if _, err := New(tt.opt); !errors.Is(err, tt.err) {
			t.Errorf("New() error = %v, want %v", err, tt.err)
		}
	}
	if _, err := New(WithForceRate(MaxForceRate), WithLogger(nil)); err != nil {
		t.Errorf("New() error = %v", err)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{ErrDone, StatusDone},
		{errors.Wrap(ErrNeedMore, "tag"), StatusNeedMore},
		{ErrNewFormat, StatusNewFormat},
		{ErrNoSpace, StatusNoSpace},
		{ErrSync, StatusError},
		{io.ErrUnexpectedEOF, StatusError},
	}
	for _, tt := range tests {
		if got := StatusOf(tt.err); got != tt.want {
			t.Errorf("StatusOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTruncatedFrame(t *testing.T) {
	h := newHandle(t)
	if err := h.Open(bytes.NewReader(mpegFrames(2)[:600])); err != nil {
		t.Fatal(err)
	}
	h.DecodeFrame()
	h.DecodeFrame()
	_, _, err := h.DecodeFrame()
	if errors.Cause(err) != io.ErrUnexpectedEOF {
		t.Errorf("DecodeFrame error = %v, want unexpected EOF", err)
	}
}

func TestMalformedTagIgnored(t *testing.T) {
	bad := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0x80} // size not synchsafe
	stream := append(bad, id3Tag(id3Frame("TIT2", latin1("Good")))...)
	stream = append(stream, mpegFrames(2)...)

	h := newHandle(t)
	if err := h.Open(bytes.NewReader(stream)); err != nil {
		t.Fatal(err)
	}
	got := decodeAll(t, h)
	want := []step{{0, StatusNewFormat}, {0, StatusOK}, {1, StatusOK}, {1, StatusDone}}
	if !sameSteps(got, want) {
		t.Errorf("steps = %v, want %v", got, want)
	}
	if title := h.Tag().Title.String(); title != "Good" {
		t.Errorf("title = %q, want %q", title, "Good")
	}
	if h.MetaCheck()&MetaID3 == 0 {
		t.Error("MetaID3 not set")
	}
}

func TestTruncatedSkippedTag(t *testing.T) {
	// version 2.5 tags are skipped unread; 1000 bytes declared, 20 present
	raw := []byte{'I', 'D', '3', 5, 0, 0, 0, 0, 0, 0}
	id3v2.PutSynchsafe(raw[6:], 1000)
	raw = append(raw, make([]byte, 20)...)

	for name, r := range map[string]io.Reader{
		"seeker": bytes.NewReader(raw),
		"stream": struct{ io.Reader }{bytes.NewReader(raw)},
	} {
		h := newHandle(t)
		if err := h.Open(r); err != nil {
			t.Fatal(err)
		}
		_, _, err := h.DecodeFrame()
		if StatusOf(err) != StatusError || errors.Cause(err) != io.ErrUnexpectedEOF {
			t.Errorf("%s: DecodeFrame error = %v (%v), want unexpected EOF", name, err, StatusOf(err))
		}
	}
}

func TestFeedLargeTagInChunks(t *testing.T) {
	art := make([]byte, 1<<20)
	stream := append(id3Tag(
		id3Frame("TIT2", latin1("Title")),
		id3Frame("APIC", art),
	), mpegFrames(1)...)

	h := newHandle(t)
	h.OpenFeed()

	const chunk = 4096
	var (
		before, after runtime.MemStats
		err           error
		calls         int
	)
	runtime.ReadMemStats(&before)
	for off := 0; off < len(stream); off += chunk {
		end := off + chunk
		if end > len(stream) {
			end = len(stream)
		}
		h.Feed(stream[off:end])
		calls++
		if _, _, err = h.DecodeFrame(); err != ErrNeedMore {
			break
		}
	}
	runtime.ReadMemStats(&after)

	if err != ErrNewFormat {
		t.Fatalf("DecodeFrame error = %v after %d calls, want ErrNewFormat", err, calls)
	}
	if got := h.Tag().Title.String(); got != "Title" {
		t.Errorf("title = %q, want %q", got, "Title")
	}
	// the input buffer and one copy of the tag body, not one per call
	if total := after.TotalAlloc - before.TotalAlloc; total > 16<<20 {
		t.Errorf("allocated %d bytes over %d calls for a %d byte tag", total, calls, len(art))
	}
}
