package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Ref returns a prefixed identifier, e.g. "tpl/01J...". Prefixes keep
// template content and exported artifacts apart in the object store without
// a directory convention leaking into callers.
func Ref(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return New()
	}
	return prefix + "/" + New()
}
