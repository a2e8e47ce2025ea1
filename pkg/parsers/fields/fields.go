// Package fields converts raw string values into the typed values of repository fields.
package fields

import (
	"fmt"
	"strings"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

var (
	// ErrNullValue is returned for a null value of a field that has a number format.
	ErrNullValue = xerrors.New("value is null")
	errMissing   = xerrors.New("value is missing")
)

// Parser coerces one raw value into the data type of a field.
// A nil raw value means the field was absent from the message.
type Parser interface {
	Parse(raw *string) (any, error)
	Config() *abstract.RepositoryFieldConfig
}

// FieldParseError reports a value that cannot be coerced and has no usable default.
type FieldParseError struct {
	Field    string
	DataType abstract.DataType
	Value    *string
	Err      error
}

func (e *FieldParseError) Error() string {
	value := "null"
	if e.Value != nil {
		value = fmt.Sprintf("%q", *e.Value)
	}
	return fmt.Sprintf("field %s: cannot parse %s as %s: %v", e.Field, value, e.DataType, e.Err)
}

func (e *FieldParseError) Unwrap() error {
	return e.Err
}

func (e *FieldParseError) Code() coded.Code {
	return codes.FieldParse
}

type parseFunc func(raw *string) (any, error)

type fieldParser struct {
	cfg          abstract.RepositoryFieldConfig
	parse        parseFunc
	defaultValue any
	hasDefault   bool
}

// New builds the parser for cfg.DataType. The default value, when configured, is parsed here
// and must be valid for the data type.
func New(cfg abstract.RepositoryFieldConfig) (Parser, error) {
	var parse parseFunc
	var err error
	switch cfg.DataType {
	case abstract.DataTypeString, "":
		parse = parseString
	case abstract.DataTypeInteger:
		parse, err = newIntegerParser(&cfg, 32)
	case abstract.DataTypeLong:
		parse, err = newIntegerParser(&cfg, 64)
	case abstract.DataTypeDouble:
		parse, err = newDoubleParser(&cfg)
	case abstract.DataTypeBoolean:
		parse, err = newBooleanParser(&cfg)
	case abstract.DataTypeDate:
		parse, err = newDateParser(&cfg)
	default:
		return nil, xerrors.Errorf("field %s: unknown data type %q", cfg.Name, cfg.DataType)
	}
	if err != nil {
		return nil, xerrors.Errorf("field %s: %w", cfg.Name, err)
	}

	p := &fieldParser{cfg: cfg, parse: parse}
	if raw, ok := cfg.Property(abstract.FieldPropertyDefaultValue); ok {
		v, err := parse(&raw)
		if err != nil {
			return nil, xerrors.Errorf("field %s: default value %q is not a valid %s: %w", cfg.Name, raw, cfg.DataType, err)
		}
		p.defaultValue = v
		p.hasDefault = true
	}
	return p, nil
}

func (p *fieldParser) Config() *abstract.RepositoryFieldConfig {
	return &p.cfg
}

func (p *fieldParser) Parse(raw *string) (any, error) {
	if p.hasDefault && p.isBlank(raw) {
		return p.defaultValue, nil
	}
	v, err := p.parse(raw)
	if err == nil {
		return v, nil
	}
	if p.hasDefault {
		return p.defaultValue, nil
	}
	return nil, &FieldParseError{Field: p.cfg.Name, DataType: p.cfg.DataType, Value: raw, Err: err}
}

// isBlank is true for values that fall back to the default before parsing is attempted.
// An empty string is a legal String value.
func (p *fieldParser) isBlank(raw *string) bool {
	if raw == nil {
		return true
	}
	if p.cfg.DataType == abstract.DataTypeString {
		return false
	}
	return strings.TrimSpace(*raw) == ""
}

func parseString(raw *string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	return *raw, nil
}
