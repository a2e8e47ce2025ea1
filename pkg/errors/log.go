package errors

import (
	"github.com/lightningdb/chililog/pkg/errors/coded"
	"github.com/lightningdb/chililog/pkg/errors/codes"
	"go.uber.org/multierr"
	"go.ytsaurus.tech/library/go/core/log"
)

const (
	KeyCode     = "code"
	KeyCodePath = "code_path"
)

// LogError writes err at error level with its code and code path. Every error of a multierr
// combination gets its own record.
func LogError(logger log.Logger, msg string, err error, fields ...log.Field) {
	for _, e := range multierr.Errors(err) {
		code, ok := coded.CodeOf(e)
		if !ok {
			code = codes.Unspecified
		}
		logger.Error(msg, append(fields,
			log.Error(e),
			log.String(KeyCode, code.ID()),
			log.String(KeyCodePath, CodePath(e)),
		)...)
	}
}
