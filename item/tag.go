package item

import "github.com/go-tagengine/tagengine/picture"

// TagItem is a single (key, value) pair (§3).
type TagItem struct {
	Key   KeyOrUnknown
	Value Value
}

// Known constructs a TagItem for a closed Key.
func Known(k Key, v Value) TagItem { return TagItem{Key: KeyOrUnknown{K: k}, Value: v} }

// Raw constructs a TagItem for an unmapped on-disk key.
func Raw(name string, v Value) TagItem { return TagItem{Key: KeyOrUnknown{Unknown: name}, Value: v} }

// Tag is the format-neutral container (§3): a tag type plus ordered items
// and pictures. Item order mirrors on-disk order (§5's ordering guarantee).
type Tag struct {
	Type     TagType
	items    []TagItem
	pictures []*picture.Picture
}

// New constructs an empty Tag of the given type.
func New(t TagType) *Tag { return &Tag{Type: t} }

// Items returns the items in on-disk order. The returned slice must not be
// mutated; use Insert/Push/Retain instead.
func (t *Tag) Items() []TagItem { return t.items }

// Pictures returns the attached pictures in on-disk order.
func (t *Tag) Pictures() []*picture.Picture { return t.pictures }

// Get returns the first item's value for k, or the zero Value and false.
func (t *Tag) Get(k Key) (Value, bool) {
	for _, it := range t.items {
		if it.Key.K == k {
			return it.Value, true
		}
	}
	return Value{}, false
}

// GetAll returns every item for k, in on-disk order.
func (t *Tag) GetAll(k Key) []Value {
	var out []Value
	for _, it := range t.items {
		if it.Key.K == k {
			out = append(out, it.Value)
		}
	}
	return out
}

// Insert replaces the first existing item for it.Key (if any) in place, or
// appends it.
func (t *Tag) Insert(it TagItem) {
	for i, existing := range t.items {
		if existing.Key == it.Key {
			t.items[i] = it
			return
		}
	}
	t.items = append(t.items, it)
}

// Push appends it unconditionally, allowing duplicate keys (used by formats
// where multiple values for one key are meaningful, e.g. multi-valued
// ID3v2.4 text frames split upstream into one TagItem per value).
func (t *Tag) Push(it TagItem) {
	t.items = append(t.items, it)
}

// Remove deletes every item for k.
func (t *Tag) Remove(k Key) {
	t.Retain(func(it TagItem) bool { return it.Key.K != k })
}

// Retain keeps only the items for which keep returns true.
func (t *Tag) Retain(keep func(TagItem) bool) {
	out := t.items[:0]
	for _, it := range t.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	t.items = out
}

// PushPicture appends a picture.
func (t *Tag) PushPicture(p *picture.Picture) { t.pictures = append(t.pictures, p) }

// RemovePictures clears every attached picture.
func (t *Tag) RemovePictures() { t.pictures = nil }

// Len reports the number of items (pictures excluded, matching the native
// tag TagExt capability set described in §9).
func (t *Tag) Len() int { return len(t.items) }

// IsEmpty reports whether the tag has neither items nor pictures.
func (t *Tag) IsEmpty() bool { return len(t.items) == 0 && len(t.pictures) == 0 }

// convenience text accessors (§6 public API shape)

func (t *Tag) getText(k Key) string {
	v, ok := t.Get(k)
	if !ok {
		return ""
	}
	return v.String()
}

func (t *Tag) setText(k Key, s string) {
	if s == "" {
		t.Remove(k)
		return
	}
	t.Insert(Known(k, NewText(s)))
}

func (t *Tag) Title() string         { return t.getText(TrackTitle) }
func (t *Tag) SetTitle(s string)     { t.setText(TrackTitle, s) }
func (t *Tag) Artist() string        { return t.getText(TrackArtist) }
func (t *Tag) SetArtist(s string)    { t.setText(TrackArtist, s) }
func (t *Tag) Album() string         { return t.getText(AlbumTitle) }
func (t *Tag) SetAlbum(s string)     { t.setText(AlbumTitle, s) }
func (t *Tag) Genre() string         { return t.getText(Genre) }
func (t *Tag) SetGenre(s string)     { t.setText(Genre, s) }
func (t *Tag) Comment() string       { return t.getText(Comment) }
func (t *Tag) SetComment(s string)   { t.setText(Comment, s) }
func (t *Tag) Year() string          { return t.getText(RecordingDate) }
func (t *Tag) SetYear(s string)      { t.setText(RecordingDate, s) }

// Track returns the (number, total) pair, zero where absent.
func (t *Tag) Track() (int, int) {
	n, _ := t.Get(TrackNumber)
	total, _ := t.Get(TrackTotal)
	return atoiOrZero(n.Text), atoiOrZero(total.Text)
}

// SetTrack sets the track number/total pair; total == 0 omits TrackTotal.
func (t *Tag) SetTrack(number, total int) {
	t.setText(TrackNumber, itoaOrEmpty(number))
	if total > 0 {
		t.setText(TrackTotal, itoaOrEmpty(total))
	} else {
		t.Remove(TrackTotal)
	}
}

// Disc returns the (number, total) pair, zero where absent.
func (t *Tag) Disc() (int, int) {
	n, _ := t.Get(DiscNumber)
	total, _ := t.Get(DiscTotal)
	return atoiOrZero(n.Text), atoiOrZero(total.Text)
}

// SetDisc sets the disc number/total pair; total == 0 omits DiscTotal.
func (t *Tag) SetDisc(number, total int) {
	t.setText(DiscNumber, itoaOrEmpty(number))
	if total > 0 {
		t.setText(DiscTotal, itoaOrEmpty(total))
	} else {
		t.Remove(DiscTotal)
	}
}

func atoiOrZero(s string) int {
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func itoaOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if len(b) == 0 {
		b = []byte{'0'}
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
