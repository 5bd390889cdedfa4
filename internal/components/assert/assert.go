// Package assert holds constructor-time invariant checks. A failed check
// is a programming error in the caller, so it panics rather than
// returning an error.
package assert

// NotNil panics when value is nil.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}

// NotEmptyStr panics when str is empty.
func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
