package id3

// Scope selects which of the two replay gain slots a value belongs to.
type Scope int

const (
	Track Scope = iota // track gain, also called mix or radio gain
	Album              // album gain, also called audiophile or user gain
)

func (s Scope) String() string {
	if s == Album {
		return "album"
	}
	return "track"
}

// Source ranks where a replay gain value came from. A slot only accepts a
// value from a source ranked the same as or higher than the one that last
// wrote it, so that once a more authoritative frame has been seen, legacy
// conventions encountered later cannot override it.
type Source int

const (
	SourceNone    Source = iota // slot never written
	SourceComment               // COMM frame with an RVA description
	SourceTXXX                  // TXXX replaygain_* frame
	SourceRVA2                  // RVA2 frame
)

func (s Source) String() string {
	switch s {
	case SourceComment:
		return "COMM"
	case SourceTXXX:
		return "TXXX"
	case SourceRVA2:
		return "RVA2"
	}
	return "none"
}

// Field selects the value inside a slot.
type Field int

const (
	Gain Field = iota // dB
	Peak              // linear amplitude
)

// GainInfo is one replay gain slot.
type GainInfo struct {
	Gain  float64
	Peak  float64
	Level Source
}

// RVA holds the track and album replay gain slots.
type RVA struct {
	Scopes [2]GainInfo
}

// Update writes v into the slot for scope if src ranks at least as high as
// the source that wrote the slot last. It reports whether v was accepted.
func (r *RVA) Update(scope Scope, f Field, v float64, src Source) bool {
	g := &r.Scopes[scope]
	if src < g.Level {
		return false
	}
	switch f {
	case Gain:
		g.Gain = v
	case Peak:
		g.Peak = v
	}
	g.Level = src
	return true
}

// Accepts reports whether a value from src would be written into scope.
func (r *RVA) Accepts(scope Scope, src Source) bool {
	return src >= r.Scopes[scope].Level
}

// Get returns the slot for scope and whether it has ever been written.
func (r *RVA) Get(scope Scope) (GainInfo, bool) {
	g := r.Scopes[scope]
	return g, g.Level != SourceNone
}

// Reset clears both slots.
func (r *RVA) Reset() {
	*r = RVA{}
}
