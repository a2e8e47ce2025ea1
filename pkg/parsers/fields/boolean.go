package fields

import (
	"regexp"
	"strings"

	"github.com/lightningdb/chililog/pkg/abstract"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// newBooleanParser never fails: a value is true when it matches the true pattern
// (or equals "true" ignoring case when no pattern is configured) and false otherwise.
func newBooleanParser(cfg *abstract.RepositoryFieldConfig) (parseFunc, error) {
	pattern, ok := cfg.Property(abstract.FieldPropertyTruePattern)
	if !ok || pattern == "" {
		return func(raw *string) (any, error) {
			return raw != nil && strings.EqualFold(strings.TrimSpace(*raw), "true"), nil
		}, nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, xerrors.Errorf("invalid true pattern %q: %w", pattern, err)
	}
	return func(raw *string) (any, error) {
		return raw != nil && re.MatchString(*raw), nil
	}, nil
}
