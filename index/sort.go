package index

import (
	"cmp"
	"fmt"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortMode selects the ordering of both sequences.
type SortMode int

const (
	NameAsc SortMode = iota
	NameDesc
	SizeAsc
	SizeDesc
	TimeAsc
	TimeDesc
)

var sortModeNames = map[SortMode]string{
	NameAsc:  "name-asc",
	NameDesc: "name-desc",
	SizeAsc:  "size-asc",
	SizeDesc: "size-desc",
	TimeAsc:  "time-asc",
	TimeDesc: "time-desc",
}

func (m SortMode) String() string {
	if s, ok := sortModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("SortMode(%d)", int(m))
}

// ParseSortMode accepts the names printed by String.
func ParseSortMode(s string) (SortMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range sortModeNames {
		if name == s {
			return m, nil
		}
	}
	return NameAsc, fmt.Errorf("unknown sort mode %q", s)
}

// SortModes lists every mode in declaration order.
func SortModes() []SortMode {
	return []SortMode{NameAsc, NameDesc, SizeAsc, SizeDesc, TimeAsc, TimeDesc}
}

// collator compares names numerically ("a2" < "a10"). With a locale it uses
// the CLDR rules for that language; otherwise byte order with digit runs
// compared by value. Not safe for concurrent use.
type collator struct {
	locale string
	c      *collate.Collator
}

func newCollator(locale string) *collator {
	cl := &collator{locale: locale}
	if locale == "" || locale == "C" {
		return cl
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return cl
	}
	cl.c = collate.New(tag, collate.Numeric)
	return cl
}

// compare is a total order: it never returns 0 for distinct strings.
// Names that differ only in leading zeros fall through to byte order.
func (cl *collator) compare(a, b string) int {
	if a == b {
		return 0
	}
	var r int
	if cl.c != nil {
		r = cl.c.CompareString(a, b)
	} else {
		r = naturalCompare(a, b)
	}
	if r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

// naturalCompare orders a and b byte by byte, except that a run of digits
// is one token compared by numeric value. A number token sorts where '0'
// would, so it stays below letters and above '-' or '.'.
func naturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		da, db := isDigit(ca), isDigit(cb)
		switch {
		case da && db:
			ei, ej := digitRun(a, i), digitRun(b, j)
			if r := compareNumber(a[i:ei], b[j:ej]); r != 0 {
				return r
			}
			i, j = ei, ej
		case da:
			if cb < '0' {
				return 1
			}
			return -1
		case db:
			if ca < '0' {
				return -1
			}
			return 1
		default:
			if ca != cb {
				return cmp.Compare(ca, cb)
			}
			i++
			j++
		}
	}
	return cmp.Compare(len(a)-i, len(b)-j)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func digitRun(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return i
}

// compareNumber compares two digit runs by value.
func compareNumber(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	if r := cmp.Compare(len(x), len(y)); r != 0 {
		return r
	}
	return strings.Compare(x, y)
}

type compareFunc func(a, b Entry) int

func byPath(cl *collator) compareFunc {
	return func(a, b Entry) int {
		return cl.compare(a.Path, b.Path)
	}
}

func bySize(cl *collator) compareFunc {
	return func(a, b Entry) int {
		if r := cmp.Compare(a.Size, b.Size); r != 0 {
			return r
		}
		return cl.compare(a.Path, b.Path)
	}
}

func byTime(cl *collator) compareFunc {
	return func(a, b Entry) int {
		if r := a.ModTime.Compare(b.ModTime); r != 0 {
			return r
		}
		return cl.compare(a.Path, b.Path)
	}
}

func reversed(key func(*collator) compareFunc) func(*collator) compareFunc {
	return func(cl *collator) compareFunc {
		f := key(cl)
		return func(a, b Entry) int { return f(b, a) }
	}
}

var strategies = map[SortMode]func(*collator) compareFunc{
	NameAsc:  byPath,
	NameDesc: reversed(byPath),
	SizeAsc:  bySize,
	SizeDesc: reversed(bySize),
	TimeAsc:  byTime,
	TimeDesc: reversed(byTime),
}

func (m SortMode) comparator(cl *collator) compareFunc {
	if s, ok := strategies[m]; ok {
		return s(cl)
	}
	return byPath(cl)
}
