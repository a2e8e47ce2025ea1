package coded

import (
	"fmt"
	"strings"

	"github.com/lightningdb/chililog/pkg/util/set"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// Code is a stable, dotted error identifier. Codes are registered once at init; a duplicate panics.
type Code string

func (c Code) ID() string {
	return string(c)
}

// Contains reports whether any coded error in the chain of err carries c.
func (c Code) Contains(err error) bool {
	var codedErr CodedError
	unwrappedErr := err
	for xerrors.As(unwrappedErr, &codedErr) {
		if codedErr.Code() == c {
			return true
		}
		unwrappedErr = xerrors.Unwrap(codedErr)
	}
	return false
}

var knownCodes = set.New[Code]()
var codeDescriptions = make(map[Code]string)

func Register(parts ...string) Code {
	code := Code(strings.Join(parts, "."))
	if knownCodes.Contains(code) {
		panic(fmt.Sprintf("code: %s already registered", code))
	}
	knownCodes.Add(code)
	return code
}

func RegisterShortDescription(code Code, description string) {
	if !knownCodes.Contains(code) {
		panic(fmt.Sprintf("code: %s not registered, cannot register description", code))
	}
	codeDescriptions[code] = description
}

func GetShortDescription(code Code) (string, bool) {
	description, exists := codeDescriptions[code]
	return description, exists
}

func All() []Code {
	return knownCodes.SortedSliceFunc(func(a, b Code) bool {
		return a < b
	})
}
