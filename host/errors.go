package host

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownClass  = errors.New("unknown class")
	ErrNotWeakable   = errors.New("object cannot be weakly referenced")
	ErrArgumentCount = errors.New("wrong number of arguments")
	ErrTypeMismatch  = errors.New("argument type mismatch")
	ErrNilObject     = errors.New("nil object")
)

// ReflectionError reports that a reflective host call itself failed, for
// example because an invoked method threw.
type ReflectionError struct {
	Op     string // "invoke", "get", "set", "fields", "methods", "class"
	Class  string
	Member string
	Err    error
}

func (e *ReflectionError) Error() string {
	switch {
	case e.Member != "":
		return fmt.Sprintf("%s %s.%s: %v", e.Op, e.Class, e.Member, e.Err)
	case e.Class != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Class, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ReflectionError) Unwrap() error {
	return e.Err
}

// Recovered converts a recovered panic value into a ReflectionError.
func Recovered(op, class, member string, r any) *ReflectionError {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", r)
	}
	return &ReflectionError{Op: op, Class: class, Member: member, Err: err}
}
