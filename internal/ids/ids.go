package ids

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable subject identifier.
// ulid.Make draws from a process-wide monotonic entropy source that is safe
// for concurrent use.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether id has the shape produced by New.
func Valid(id string) bool {
	_, err := ulid.ParseStrict(strings.TrimSpace(id))
	return err == nil
}
