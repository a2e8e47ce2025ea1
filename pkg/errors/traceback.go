package errors

import (
	"strings"

	"go.ytsaurus.tech/library/go/core/xerrors"
)

// shortName reduces "pkg/path/name.Type.Method" to "Type.Method", or to "Method" for plain functions.
func shortName(qualified string) string {
	last := qualified[strings.LastIndex(qualified, "/")+1:]
	parts := strings.Split(last, ".")
	switch len(parts) {
	case 0, 1:
		return ""
	case 2:
		return parts[1]
	default:
		return parts[len(parts)-2] + "." + parts[len(parts)-1]
	}
}

// CodePath lists the functions that wrapped err, innermost first, joined by dots.
func CodePath(err error) string {
	seen := map[error]bool{}
	var path []string
	for err != nil && !seen[err] {
		seen[err] = true
		if st, ok := err.(xerrors.ErrorStackTrace); ok {
			if frames := st.StackTrace().Frames(); len(frames) > 0 {
				if name := shortName(frames[0].Function); name != "" {
					path = append([]string{name}, path...)
				}
			}
		}
		err = xerrors.Unwrap(err)
	}
	return strings.Join(path, ".")
}
