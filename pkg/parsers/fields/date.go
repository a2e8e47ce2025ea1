package fields

import (
	"strings"
	"time"

	"github.com/lightningdb/chililog/pkg/abstract"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

func newDateParser(cfg *abstract.RepositoryFieldConfig) (parseFunc, error) {
	pattern, ok := cfg.Property(abstract.FieldPropertyDateFormat)
	if !ok || pattern == "" {
		return nil, xerrors.Errorf("date field requires the %s property", abstract.FieldPropertyDateFormat)
	}
	tz, _ := cfg.Property(abstract.FieldPropertyDateTimezone)
	layout, loc, err := DateLayout(pattern, tz)
	if err != nil {
		return nil, err
	}
	return func(raw *string) (any, error) {
		if raw == nil {
			return nil, errMissing
		}
		t, err := time.ParseInLocation(layout, strings.TrimSpace(*raw), loc)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}, nil
}

// DateLayout converts a SimpleDateFormat style pattern (yyyy-MM-dd HH:mm:ss.SSS) into a Go layout
// and resolves the time zone the pattern is anchored to (UTC when tz is empty).
// Numeric elements are converted to their non-padded Go forms so both "2011-01-02" and "2011-1-2" parse.
func DateLayout(pattern, tz string) (string, *time.Location, error) {
	loc := time.UTC
	if tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return "", nil, xerrors.Errorf("unknown time zone %q: %w", tz, err)
		}
	}

	var layout, literal strings.Builder
	flush := func(next byte) error {
		text := literal.String()
		literal.Reset()
		if err := checkLiteral(text, next); err != nil {
			return xerrors.Errorf("date format %q: %w", pattern, err)
		}
		layout.WriteString(text)
		return nil
	}
	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c == '\'' {
			next, err := quotedLiteral(pattern, i, &literal)
			if err != nil {
				return "", nil, err
			}
			i = next
			continue
		}
		if !isLetter(c) {
			literal.WriteByte(c)
			i++
			continue
		}
		if err := flush(c); err != nil {
			return "", nil, err
		}
		n := 1
		for i+n < len(pattern) && pattern[i+n] == c {
			n++
		}
		elem, err := layoutElement(c, n, layout.String())
		if err != nil {
			return "", nil, xerrors.Errorf("date format %q: %w", pattern, err)
		}
		layout.WriteString(elem)
		i += n
	}
	if err := flush(0); err != nil {
		return "", nil, err
	}
	return layout.String(), loc, nil
}

// layoutWords are the alphabetic tokens of Go layouts. Go has no escape, so literal text containing them
// (or any digit) would be read as a date element.
var layoutWords = []string{"Jan", "Mon", "MST", "PM", "pm"}

// checkLiteral rejects literal text that the Go layout would read as an element. next is the pattern
// letter that follows the literal, 0 at the end of the pattern.
func checkLiteral(text string, next byte) error {
	if strings.ContainsAny(text, "0123456789") {
		return xerrors.Errorf("literal %q contains digits", text)
	}
	for _, word := range layoutWords {
		if strings.Contains(text, word) {
			return xerrors.Errorf("literal %q contains %q", text, word)
		}
	}
	if next == 'd' && strings.HasSuffix(text, "_") {
		return xerrors.Errorf("literal %q cannot precede a day", text)
	}
	return nil
}

// quotedLiteral copies the quoted text starting at pattern[start] and returns the index after it.
// Two consecutive quotes stand for one literal quote, inside or outside of quoted text.
func quotedLiteral(pattern string, start int, layout *strings.Builder) (int, error) {
	if start+1 < len(pattern) && pattern[start+1] == '\'' {
		layout.WriteByte('\'')
		return start + 2, nil
	}
	for i := start + 1; i < len(pattern); i++ {
		if pattern[i] != '\'' {
			layout.WriteByte(pattern[i])
			continue
		}
		if i+1 < len(pattern) && pattern[i+1] == '\'' {
			layout.WriteByte('\'')
			i++
			continue
		}
		return i + 1, nil
	}
	return 0, xerrors.Errorf("date format %q has an unterminated quote", pattern)
}

func layoutElement(c byte, n int, before string) (string, error) {
	switch c {
	case 'y':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M':
		switch {
		case n <= 2:
			return "1", nil
		case n == 3:
			return "Jan", nil
		default:
			return "January", nil
		}
	case 'd':
		return "2", nil
	case 'H':
		return "15", nil
	case 'h':
		return "3", nil
	case 'm':
		return "4", nil
	case 's':
		return "5", nil
	case 'S':
		if !strings.HasSuffix(before, ".") && !strings.HasSuffix(before, ",") {
			return "", xerrors.New("milliseconds must follow a '.' or ','")
		}
		return strings.Repeat("9", n), nil
	case 'a':
		return "PM", nil
	case 'E':
		if n <= 3 {
			return "Mon", nil
		}
		return "Monday", nil
	case 'z':
		return "MST", nil
	case 'Z':
		return "-0700", nil
	case 'X':
		switch n {
		case 1:
			return "Z07", nil
		case 2:
			return "Z0700", nil
		default:
			return "Z07:00", nil
		}
	}
	return "", xerrors.Errorf("unsupported pattern letter %q", string(c))
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
