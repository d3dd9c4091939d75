package schema

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ID identifies one built schema. Two schema values compare equal by ID when
// they were built from the same name and source text, so identity survives
// copies and does not depend on pointer equality.
type ID uint64

// NewID derives an identity token from a schema name and its SDL sources.
func NewID(name string, sources ...string) ID {
	d := xxhash.New()
	_, _ = d.WriteString(name)
	for _, src := range sources {
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(src)
	}
	return ID(d.Sum64())
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}
