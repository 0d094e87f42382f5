// Package id3genre carries the fixed ID3v1/TCON genre table shared by the
// ID3v1 and ID3v2 engines.
package id3genre

// Table is the standard ID3v1 genre list (genres 0-79), indexed by genre
// byte.
var Table = [...]string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient",
	"Trip-Hop", "Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical",
	"Instrumental", "Acid", "House", "Game", "Sound Clip", "Gospel",
	"Noise", "AlternRock", "Bass", "Soul", "Punk", "Space", "Meditative",
	"Instrumental Pop", "Instrumental Rock", "Ethnic", "Gothic",
	"Darkwave", "Techno-Industrial", "Electronic", "Pop-Folk",
	"Eurodance", "Dream", "Southern Rock", "Comedy", "Cult", "Gangsta",
	"Top 40", "Christian Rap", "Pop/Funk", "Jungle", "Native American",
	"Cabaret", "New Wave", "Psychadelic", "Rave", "Showtunes", "Trailer",
	"Lo-Fi", "Tribal", "Acid Punk", "Acid Jazz", "Polka", "Retro",
	"Musical", "Rock & Roll", "Hard Rock",
}

// Name returns the genre name for byte g, or "" if g is out of range.
func Name(g byte) string {
	if int(g) < len(Table) {
		return Table[g]
	}
	return ""
}

// ParseTCON resolves an ID3v2 TCON/COM value such as "(17)" or "(4)Eurodisco"
// to its textual genre, falling back to the literal text when it is not a
// "(n)" reference.
func ParseTCON(s string) string {
	if len(s) < 2 || s[0] != '(' {
		return s
	}
	i := 1
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == 1 || i >= len(s) || s[i] != ')' {
		return s
	}
	if name := Name(byte(n)); name != "" {
		rest := s[i+1:]
		if rest == "" {
			return name
		}
		return rest
	}
	return s
}
