package parsers

import (
	"strings"

	"github.com/lightningdb/chililog/pkg/abstract"
	"github.com/spf13/cast"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

const defaultDelimiter = ","

// delimited splits the body on a delimiter; every field reads one 1-based token position.
type delimited struct {
	delimiter string
	positions []int
}

func newDelimited(cfg *abstract.RepositoryParserConfig) (extractor, error) {
	d := &delimited{delimiter: cfg.Property(abstract.PropertyDelimiter)}
	if d.delimiter == "" {
		d.delimiter = defaultDelimiter
	}
	for i, field := range cfg.Fields {
		position, err := fieldIndex(&field, abstract.FieldPropertyPosition, i+1)
		if err != nil {
			return nil, err
		}
		d.positions = append(d.positions, position)
	}
	return d, nil
}

func (d *delimited) extract(body string) ([]*string, []error, []abstract.Field, error) {
	tokens := strings.Split(body, d.delimiter)
	values := make([]*string, len(d.positions))
	errs := make([]error, len(d.positions))
	for i, position := range d.positions {
		if position > len(tokens) {
			errs[i] = xerrors.Errorf("message has %d tokens, position %d is missing", len(tokens), position)
			continue
		}
		values[i] = &tokens[position-1]
	}
	return values, errs, nil, nil
}

// fieldIndex reads a 1-based index property of a field, falling back to def.
func fieldIndex(field *abstract.RepositoryFieldConfig, property string, def int) (int, error) {
	raw, ok := field.Property(property)
	if !ok || raw == "" {
		return def, nil
	}
	idx, err := cast.ToIntE(strings.TrimSpace(raw))
	if err != nil {
		return 0, xerrors.Errorf("field %s: invalid %s %q: %w", field.Name, property, raw, err)
	}
	if idx < 1 {
		return 0, xerrors.Errorf("field %s: %s must be 1 or greater, got %d", field.Name, property, idx)
	}
	return idx, nil
}
