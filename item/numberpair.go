package item

import "strings"

// ParseNumberPair implements the §4.4 parser policy for "n" / "n/t" fields
// (TRCK, trkn, TRACKNUMBER+TRACKTOTAL, ...): accepts "n" or "n/t" with
// optional surrounding and internal whitespace, rejects further slashes,
// non-digits, or more than two fields. A missing total yields (n, nil); a
// missing/invalid number yields (nil, nil).
func ParseNumberPair(s string) (number, total *int) {
	fields := strings.Split(s, "/")
	if len(fields) > 2 {
		return nil, nil
	}

	n, ok := parseDigits(fields[0])
	if !ok {
		return nil, nil
	}

	if len(fields) == 1 {
		return &n, nil
	}

	t, ok := parseDigits(fields[1])
	if !ok {
		return &n, nil
	}
	return &n, &t
}

func parseDigits(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// FormatNumberPair renders (number, total) back to the "n" / "n/t" shared
// on-disk form. total == nil omits the slash.
func FormatNumberPair(number int, total *int) string {
	s := itoaOrEmpty(number)
	if s == "" {
		s = "0"
	}
	if total == nil || *total <= 0 {
		return s
	}
	return s + "/" + itoaOrEmpty(*total)
}
