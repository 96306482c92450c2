package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Field returns an error describing a problem with a single field. It
// returns nil if err is nil.
//
// The field is addressed by a path in the dotted form used by the
// configuration keys, for example Store.Dir or History[3].Timestamp. A
// validation method of a nested structure should return paths relative to
// itself and let the caller prefix them with Nest.
func Field(path string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	if len(args) > 0 {
		description = fmt.Sprintf(description, args...)
	}
	return &fieldError{parent: err, path: path, desc: description}
}

// AppendField adds err, reported for the field at given path, to errs.
func AppendField(errs error, path string, err error) error {
	return Append(errs, Field(path, err, ""))
}

// Nest prefixes the path of every field error found in err with given
// prefix. Errors that are not bound to a field are reported for the prefix
// itself. It returns nil if err is nil.
func Nest(prefix string, err error) error {
	if isNilErr(err) {
		return nil
	}
	if u, ok := err.(unpacker); ok {
		var res error
		for _, e := range u.Unpack() {
			res = Append(res, Nest(prefix, e))
		}
		return res
	}
	if f, ok := err.(*fieldError); ok {
		return &fieldError{parent: f.parent, path: joinPath(prefix, f.path), desc: f.desc}
	}
	return Field(prefix, err, "")
}

func joinPath(prefix, path string) string {
	switch {
	case prefix == "":
		return path
	case path == "":
		return prefix
	case strings.HasPrefix(path, "["):
		return prefix + path
	default:
		return prefix + "." + path
	}
}

type fieldError struct {
	parent error
	path   string
	desc   string
}

func (err *fieldError) Error() string {
	if err.desc == "" {
		return fmt.Sprintf("%s: %s", err.path, err.parent)
	}
	return fmt.Sprintf("%s: %s: %s", err.path, err.desc, err.parent)
}

// Cause implements the causer interface.
func (err *fieldError) Cause() error {
	return err.parent
}

// Field returns the path of the field this error was created for.
func (err *fieldError) Field() string {
	return err.path
}

// FieldErrors returns all field errors reported for given path or for any
// field nested under it. Asking for Store returns errors of both Store.Dir
// and Store.Name. An empty path matches all field errors.
func FieldErrors(err error, path string) []error {
	var res []error
	walkFields(err, func(f *fieldError) {
		if underPath(f.path, path) {
			res = append(res, f)
		}
	})
	return res
}

// FieldPaths returns the paths of all field errors found in err, in the
// order they were reported.
func FieldPaths(err error) []string {
	var res []string
	walkFields(err, func(f *fieldError) {
		res = append(res, f.path)
	})
	return res
}

func underPath(path, parent string) bool {
	if parent == "" || path == parent {
		return true
	}
	if !strings.HasPrefix(path, parent) {
		return false
	}
	switch path[len(parent)] {
	case '.', '[':
		return true
	default:
		return false
	}
}

// walkFields calls fn for every outermost field error found in err.
func walkFields(err error, fn func(*fieldError)) {
	for !isNilErr(err) {
		switch e := err.(type) {
		case *fieldError:
			fn(e)
			return
		case unpacker:
			for _, child := range e.Unpack() {
				walkFields(child, fn)
			}
			return
		case causer:
			err = e.Cause()
		default:
			return
		}
	}
}
