package fields

import (
	"strconv"
	"strings"

	"github.com/lightningdb/chililog/pkg/abstract"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// numberFormat is a DecimalFormat style pattern such as "#,##0" or "0.00".
// Parsing with a format consumes the longest numeric prefix and ignores the rest.
type numberFormat struct {
	grouping bool
}

func newNumberFormat(pattern string) (*numberFormat, error) {
	if strings.IndexFunc(pattern, func(r rune) bool { return r == '0' || r == '#' }) < 0 {
		return nil, xerrors.Errorf("number format %q has no digits", pattern)
	}
	return &numberFormat{grouping: strings.Contains(pattern, ",")}, nil
}

// prefix returns the sign, integer digits and fraction digits of the numeric prefix of s.
func (f *numberFormat) prefix(s string) (neg bool, intDigits, fracDigits string, err error) {
	s = strings.TrimSpace(s)
	i := 0
	if i < len(s) && s[i] == '-' {
		neg = true
		i++
	}
	var intPart strings.Builder
	for i < len(s) {
		c := s[i]
		if isDigit(c) {
			intPart.WriteByte(c)
			i++
			continue
		}
		if f.grouping && c == ',' && intPart.Len() > 0 && i+1 < len(s) && isDigit(s[i+1]) {
			i++
			continue
		}
		break
	}
	var fracPart strings.Builder
	if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
		i++
		for i < len(s) && isDigit(s[i]) {
			fracPart.WriteByte(s[i])
			i++
		}
	}
	if intPart.Len() == 0 && fracPart.Len() == 0 {
		return false, "", "", xerrors.Errorf("no number at the start of %q", s)
	}
	if intPart.Len() == 0 {
		intPart.WriteByte('0')
	}
	return neg, intPart.String(), fracPart.String(), nil
}

func (f *numberFormat) parseInt(s string, bitSize int) (int64, error) {
	neg, intDigits, _, err := f.prefix(s)
	if err != nil {
		return 0, err
	}
	if neg {
		intDigits = "-" + intDigits
	}
	return strconv.ParseInt(intDigits, 10, bitSize)
}

func (f *numberFormat) parseFloat(s string) (float64, error) {
	neg, intDigits, fracDigits, err := f.prefix(s)
	if err != nil {
		return 0, err
	}
	literal := intDigits
	if fracDigits != "" {
		literal += "." + fracDigits
	}
	if neg {
		literal = "-" + literal
	}
	return strconv.ParseFloat(literal, 64)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func newIntegerParser(cfg *abstract.RepositoryFieldConfig, bitSize int) (parseFunc, error) {
	convert := func(v int64) any {
		if bitSize == 32 {
			return int32(v)
		}
		return v
	}
	pattern, ok := cfg.Property(abstract.FieldPropertyNumberFormat)
	if !ok || pattern == "" {
		return func(raw *string) (any, error) {
			if raw == nil {
				return nil, errMissing
			}
			v, err := strconv.ParseInt(strings.TrimSpace(*raw), 10, bitSize)
			if err != nil {
				return nil, err
			}
			return convert(v), nil
		}, nil
	}
	format, err := newNumberFormat(pattern)
	if err != nil {
		return nil, err
	}
	return func(raw *string) (any, error) {
		if raw == nil {
			return nil, ErrNullValue
		}
		v, err := format.parseInt(*raw, bitSize)
		if err != nil {
			return nil, err
		}
		return convert(v), nil
	}, nil
}

func newDoubleParser(cfg *abstract.RepositoryFieldConfig) (parseFunc, error) {
	pattern, ok := cfg.Property(abstract.FieldPropertyNumberFormat)
	if !ok || pattern == "" {
		return func(raw *string) (any, error) {
			if raw == nil {
				return nil, errMissing
			}
			return strconv.ParseFloat(strings.TrimSpace(*raw), 64)
		}, nil
	}
	format, err := newNumberFormat(pattern)
	if err != nil {
		return nil, err
	}
	return func(raw *string) (any, error) {
		if raw == nil {
			return nil, ErrNullValue
		}
		return format.parseFloat(*raw)
	}, nil
}
