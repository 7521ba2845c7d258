package watch

import "errors"

// ErrOverflow is returned when the native notifier reports a dropped/
// overflowed event stream (spec §4.1 Overflow). The supervisor treats this
// as a fatal generation error and restarts.
var ErrOverflow = errors.New("watch: notifier event overflow")

// ErrRootNotFound wraps a walk failure caused by the root directory having
// disappeared (spec §4.1 Initial-walk retries).
var ErrRootNotFound = errors.New("watch: root directory not found")
