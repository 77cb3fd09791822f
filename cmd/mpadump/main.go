// Command mpadump prints the stream information, tags and replay gain of
// MPEG audio files, and can render one of them to a WAV file.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"ktkr.us/pkg/fmtutil"
	"ktkr.us/pkg/mpadec"
	"ktkr.us/pkg/mpadec/id3"
	"ktkr.us/pkg/mpadec/mp3"
)

var (
	flagRVA     = flag.String("rva", "off", "replay gain to report the scale for: off, mix or album")
	flagVerbose = flag.Int("v", 0, "log level for tag and format notes")
	flagJobs    = flag.Int("j", runtime.NumCPU(), "files to read at once")
	flagWAV     = flag.String("wav", "", "render the first file to this WAV file, with replay gain applied")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatalf("usage: %s [flags] <mp3 filename>...", os.Args[0])
	}

	var mode mpadec.RVAMode
	switch *flagRVA {
	case "off":
		mode = mpadec.RVAOff
	case "mix", "track":
		mode = mpadec.RVAMix
	case "album":
		mode = mpadec.RVAAlbum
	default:
		log.Fatalf("unknown replay gain mode %q", *flagRVA)
	}

	var (
		paths   = flag.Args()
		reports = make([]*report, len(paths))
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(*flagJobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := scan(path, mode)
			if err != nil {
				return errors.Wrap(err, path)
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	for _, r := range reports {
		log.Print(r)
	}

	if *flagWAV != "" {
		if err := render(paths[0], *flagWAV, reports[0].scale); err != nil {
			log.Fatal(err)
		}
	}
}

type report struct {
	path   string
	info   mpadec.Info
	frames int
	tag    *id3.Tag
	rva    id3.RVA
	scale  float64
}

func (r *report) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n", r.path)
	fmt.Fprintf(&b, "  %s\n", r.info)
	fmt.Fprintf(&b, "  %d frames, %s", r.frames, fmtutil.HMS(r.info.Duration))
	if r.info.VBR != nil {
		fmt.Fprintf(&b, " (%s header: %d frames)", r.info.VBR.Tag, r.info.VBR.Frames)
	}
	b.WriteByte('\n')

	field := func(name string, sb *id3.StringBuf) {
		if sb.Filled() {
			fmt.Fprintf(&b, "  %-8s %q\n", name+":", sb.String())
		}
	}
	field("Title", &r.tag.Title)
	field("Artist", &r.tag.Artist)
	field("Album", &r.tag.Album)
	field("Year", &r.tag.Year)
	field("Genre", &r.tag.Genre)
	field("Comment", &r.tag.Comment)

	for _, scope := range []id3.Scope{id3.Track, id3.Album} {
		if g, ok := r.rva.Get(scope); ok {
			fmt.Fprintf(&b, "  RVA %-5s %+.2f dB, peak %g (%s)\n", scope, g.Gain, g.Peak, g.Level)
		}
	}
	fmt.Fprintf(&b, "  scale    %g", r.scale)
	return b.String()
}

// scan reads a whole file through a Handle. The frames are not synthesized,
// only counted.
func scan(path string, mode mpadec.RVAMode) (*report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := mpadec.New(
		mpadec.WithRVA(mode),
		mpadec.WithLogger(log.New(os.Stderr, path+": ", 0)),
		mpadec.WithVerbose(*flagVerbose),
	)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	if err := h.Open(f); err != nil {
		return nil, err
	}

	r := &report{path: path}
	for {
		_, _, err := h.DecodeFrame()
		switch mpadec.StatusOf(err) {
		case mpadec.StatusOK:
			r.frames++
			continue
		case mpadec.StatusNewFormat:
			continue
		case mpadec.StatusDone:
		default:
			return nil, err
		}
		break
	}

	info, ok := h.Info()
	if !ok {
		return nil, errors.New("no MPEG audio frames")
	}
	if info.VBR == nil {
		// count beats estimate
		info.Frames = r.frames
	}
	info.Duration = mp3.Duration(&info.Header, info.Frames)
	r.info = info
	r.tag = h.Tag()
	r.rva = h.RVA()
	r.scale = h.Scale()
	return r, nil
}

// render decodes path to 16 bit PCM and writes it to a WAV file at out,
// multiplying every sample by scale.
func render(path, out string, scale float64) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	dec, err := gomp3.NewDecoder(in)
	if err != nil {
		return errors.Wrap(err, "decoding "+path)
	}

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	defer w.Close()

	// go-mp3 always produces 16 bit stereo
	const channels = 2
	enc := wav.NewEncoder(w, dec.SampleRate(), 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: dec.SampleRate()},
		SourceBitDepth: 16,
	}

	pcm := make([]byte, 8192)
	for {
		n, err := io.ReadFull(dec, pcm)
		if n > 0 {
			buf.Data = scaleSamples(buf.Data[:0], pcm[:n&^1], scale)
			if werr := enc.Write(buf); werr != nil {
				return errors.Wrap(werr, "writing "+out)
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "decoding "+path)
		}
	}
	return errors.Wrap(enc.Close(), "writing "+out)
}

func scaleSamples(dst []int, pcm []byte, scale float64) []int {
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(uint16(pcm[i])|uint16(pcm[i+1])<<8)) * scale
		switch {
		case s > 32767:
			s = 32767
		case s < -32768:
			s = -32768
		}
		dst = append(dst, int(s))
	}
	return dst
}
