package mp3

import (
	"math"
	"time"
)

// Duration returns the playing time of frames frames shaped like h.
func Duration(h *Header, frames int) time.Duration {
	samples := int64(frames) * int64(h.SamplesPerFrame())
	return time.Duration(samples) * time.Second / time.Duration(h.SampleRate)
}

// EstimateFrames guesses the number of frames in size bytes of audio by
// assuming every frame is as big as the one described by h. This is only
// accurate for CBR streams.
func EstimateFrames(h *Header, size int64) int {
	if size <= 0 {
		return 0
	}
	// average frame size including padding slots
	avg := float64(h.SamplesPerFrame()) / 8 * float64(h.Bitrate*1000) / float64(h.SampleRate)
	return int(math.Floor(float64(size)/avg + 0.5))
}

// EstimateDuration guesses the playing time of size bytes of audio from
// the bitrate in h.
func EstimateDuration(h *Header, size int64) time.Duration {
	if size <= 0 {
		return 0
	}
	secs := float64(size) / float64(h.Bitrate*1000/8)
	return time.Duration(secs * float64(time.Second))
}
