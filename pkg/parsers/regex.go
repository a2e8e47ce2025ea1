package parsers

import (
	"regexp"

	"github.com/lightningdb/chililog/pkg/abstract"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// regex matches the whole body against a pattern; every field reads one capture group.
type regex struct {
	re     *regexp.Regexp
	groups []int
}

func newRegex(cfg *abstract.RepositoryParserConfig) (extractor, error) {
	pattern := cfg.Property(abstract.PropertyPattern)
	if pattern == "" {
		return nil, xerrors.Errorf("regex parser requires the %s property", abstract.PropertyPattern)
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, xerrors.Errorf("invalid pattern %q: %w", pattern, err)
	}
	r := &regex{re: re}
	for i, field := range cfg.Fields {
		group, err := fieldIndex(&field, abstract.FieldPropertyGroup, i+1)
		if err != nil {
			return nil, err
		}
		if group > re.NumSubexp() {
			return nil, xerrors.Errorf("field %s reads group %d, pattern has %d groups", field.Name, group, re.NumSubexp())
		}
		r.groups = append(r.groups, group)
	}
	return r, nil
}

func (r *regex) extract(body string) ([]*string, []error, []abstract.Field, error) {
	match := r.re.FindStringSubmatchIndex(body)
	if match == nil {
		return nil, nil, nil, xerrors.New("message does not match the pattern")
	}
	values := make([]*string, len(r.groups))
	errs := make([]error, len(r.groups))
	for i, group := range r.groups {
		start, end := match[2*group], match[2*group+1]
		if start < 0 {
			errs[i] = xerrors.Errorf("group %d did not participate in the match", group)
			continue
		}
		value := body[start:end]
		values[i] = &value
	}
	return values, errs, nil, nil
}
