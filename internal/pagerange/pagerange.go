// Package pagerange expands page selector strings such as "1,3,6,12-16"
// into ordered page sequences.
package pagerange

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// All is the selector sentinel meaning every page of a source.
const All = "all"

// DefaultMaxPages bounds how many pages one selector may expand to.
const DefaultMaxPages = 10000

// RangeOrderError is returned when a range starts after it ends ("5-2").
type RangeOrderError struct {
	Start int
	End   int
}

func (e *RangeOrderError) Error() string {
	return fmt.Sprintf("page range %d-%d: start is greater than end", e.Start, e.End)
}

// ParseError names a selector token that is not a page number or a range.
type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid page token %q: %s", e.Token, e.Reason)
}

// IsAll reports whether s is the "all" sentinel (case-insensitive).
func IsAll(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), All)
}

// Parse expands a selector into page numbers. Tokens are emitted left to
// right and ranges ascend internally; nothing is sorted or deduplicated.
// At most DefaultMaxPages pages are produced.
func Parse(s string) ([]int, error) {
	return ParseLimit(s, DefaultMaxPages)
}

// ParseLimit is Parse with a custom page limit. A selector that would expand
// to more than limit pages fails with a ParseError naming the token that
// crossed the limit. A non-positive limit means DefaultMaxPages.
func ParseLimit(s string, limit int) ([]int, error) {
	if limit <= 0 {
		limit = DefaultMaxPages
	}
	s = stripSpace(s)
	if s == "" {
		return nil, &ParseError{Token: s, Reason: "empty selector"}
	}

	var pages []int
	for _, tok := range strings.Split(s, ",") {
		if tok == "" {
			return nil, &ParseError{Token: tok, Reason: "empty token"}
		}
		switch strings.Count(tok, "-") {
		case 0:
			n, err := parsePage(tok, tok)
			if err != nil {
				return nil, err
			}
			if len(pages)+1 > limit {
				return nil, tooMany(tok, limit)
			}
			pages = append(pages, n)
		case 1:
			lo, hi, _ := strings.Cut(tok, "-")
			start, err := parsePage(tok, lo)
			if err != nil {
				return nil, err
			}
			end, err := parsePage(tok, hi)
			if err != nil {
				return nil, err
			}
			if start > end {
				return nil, &RangeOrderError{Start: start, End: end}
			}
			if end-start+1 > limit-len(pages) {
				return nil, tooMany(tok, limit)
			}
			for p := start; p <= end; p++ {
				pages = append(pages, p)
			}
		default:
			return nil, &ParseError{Token: tok, Reason: "more than one hyphen"}
		}
	}
	return pages, nil
}

// Validate checks that every page of an explicit list is a positive number
// and that the list holds at most limit pages (DefaultMaxPages when limit <= 0).
func Validate(pages []int, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxPages
	}
	if len(pages) == 0 {
		return &ParseError{Reason: "empty page list"}
	}
	if len(pages) > limit {
		return tooMany(strconv.Itoa(len(pages))+" pages", limit)
	}
	for _, p := range pages {
		if p < 1 {
			return &ParseError{Token: strconv.Itoa(p), Reason: "page numbers start at 1"}
		}
	}
	return nil
}

// Format renders pages back into selector syntax, folding ascending
// consecutive runs into ranges. Format(Parse(s)) is equivalent to s.
func Format(pages []int) string {
	var b strings.Builder
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(pages[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(pages[j]))
		}
		i = j + 1
	}
	return b.String()
}

// Sequence returns 1..n.
func Sequence(n int) []int {
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}

func tooMany(tok string, limit int) *ParseError {
	return &ParseError{Token: tok, Reason: fmt.Sprintf("selects more than %d pages", limit)}
}

func parsePage(tok, s string) (int, error) {
	if s == "" {
		return 0, &ParseError{Token: tok, Reason: "missing page number"}
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, &ParseError{Token: tok, Reason: "not a number"}
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ParseError{Token: tok, Reason: err.Error()}
	}
	if n < 1 {
		return 0, &ParseError{Token: tok, Reason: "page numbers start at 1"}
	}
	return n, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
