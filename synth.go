package mpadec

// Synth is the signal processing stage: it turns the audio data of a frame
// into signed 16 bit little endian PCM in the negotiated output format.
type Synth interface {
	// Synthesize decodes f into out, which holds exactly one output block,
	// applying scale to the samples. It returns the number of bytes
	// written.
	Synthesize(f *Frame, format Format, scale float64, out []byte) (int, error)

	// Reset drops any state carried between frames. It is called when the
	// stream is opened and after seeking.
	Reset()
}

// Silence is a Synth that produces one block of silence per frame. It
// keeps the timing and framing of the stream intact.
type Silence struct{}

func (Silence) Synthesize(f *Frame, format Format, scale float64, out []byte) (int, error) {
	for i := range out {
		out[i] = 0
	}
	return len(out), nil
}

func (Silence) Reset() {}
