// Package id3 holds the metadata model shared by the ID3v1 and ID3v2 readers:
// text fields, text decoding, replay gain values and the genre table.
package id3

// Tag is the textual metadata collected for one stream.
type Tag struct {
	// Version is the major ID3v2 version that was interpreted (3 or 4), or 0
	// if no ID3v2 tag has been read.
	Version int

	Title   StringBuf
	Artist  StringBuf
	Album   StringBuf
	Year    StringBuf
	Comment StringBuf
	Genre   StringBuf
}

// Reset forgets all values.
func (t *Tag) Reset() {
	t.Version = 0
	t.Title.Reset()
	t.Artist.Reset()
	t.Album.Reset()
	t.Year.Reset()
	t.Comment.Reset()
	t.Genre.Reset()
}

// Clone returns a deep copy of t.
func (t *Tag) Clone() *Tag {
	return &Tag{
		Version: t.Version,
		Title:   t.Title.clone(),
		Artist:  t.Artist.clone(),
		Album:   t.Album.clone(),
		Year:    t.Year.clone(),
		Comment: t.Comment.clone(),
		Genre:   t.Genre.clone(),
	}
}

// InterpretGenre rewrites the genre field into its readable form.
// See InterpretGenre.
func (t *Tag) InterpretGenre() {
	if !t.Genre.Filled() {
		return
	}
	g := InterpretGenre(t.Genre.Bytes())
	t.Genre.Set(string(g))
}
