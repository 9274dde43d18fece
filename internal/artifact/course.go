package artifact

import (
	"github.com/roach88/golfkpi/internal/canon"
	"github.com/roach88/golfkpi/internal/kernel"
)

const entitySnapshot = "course_snapshot"

// Hole is one row of a frozen course layout.
type Hole struct {
	Number        int
	Par           int
	HandicapIndex int
}

// CourseSnapshot is a frozen course layout. Rounds reference it by hash and
// never consult a mutable course definition.
type CourseSnapshot struct {
	CourseName string
	TeeSet     string
	HoleCount  int
	Holes      []Hole
}

// ParseCourseSnapshot validates a raw course snapshot document. Hole numbers
// must run 1..hole_count in order, handicap indexes must be unique, and text
// fields must be NFC normalized.
func ParseCourseSnapshot(raw []byte) (*CourseSnapshot, error) {
	obj, _, err := prepare(entitySnapshot, defCourseSnapshot, raw)
	if err != nil {
		return nil, err
	}

	d := &decoder{entity: entitySnapshot}
	cs := &CourseSnapshot{
		CourseName: d.str(obj, "course_name", "course_name"),
		TeeSet:     d.str(obj, "tee_set", "tee_set"),
		HoleCount:  d.integer(obj, "hole_count", "hole_count"),
	}
	for i, hv := range d.array(obj, "holes", "holes") {
		field := fieldPath("holes", i)
		h := d.object(hv, field)
		cs.Holes = append(cs.Holes, Hole{
			Number:        d.integer(h, "hole_number", field+".hole_number"),
			Par:           d.integer(h, "par", field+".par"),
			HandicapIndex: d.integer(h, "handicap_index", field+".handicap_index"),
		})
	}
	if d.err != nil {
		return nil, d.err
	}

	if err := cs.Validate(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Validate checks the layout rules the structural schema cannot express.
func (cs *CourseSnapshot) Validate() error {
	if cs.CourseName == "" || !isNFC(cs.CourseName) {
		return kernel.Validationf(entitySnapshot, "course_name", "must be non-empty and NFC normalized")
	}
	if cs.TeeSet == "" || !isNFC(cs.TeeSet) {
		return kernel.Validationf(entitySnapshot, "tee_set", "must be non-empty and NFC normalized")
	}
	if cs.HoleCount != 9 && cs.HoleCount != 18 {
		return kernel.Validationf(entitySnapshot, "hole_count", "must be 9 or 18, got %d", cs.HoleCount)
	}
	if len(cs.Holes) != cs.HoleCount {
		return kernel.Validationf(entitySnapshot, "holes", "has %d entries, hole_count is %d", len(cs.Holes), cs.HoleCount)
	}

	seen := make(map[int]bool, len(cs.Holes))
	for i, h := range cs.Holes {
		if h.Number != i+1 {
			return kernel.Validationf(entitySnapshot, fieldPath("holes", i, "hole_number"),
				"expected %d, got %d", i+1, h.Number)
		}
		if h.Par < 3 || h.Par > 6 {
			return kernel.Validationf(entitySnapshot, fieldPath("holes", i, "par"), "must be 3..6, got %d", h.Par)
		}
		if h.HandicapIndex < 1 || h.HandicapIndex > 18 {
			return kernel.Validationf(entitySnapshot, fieldPath("holes", i, "handicap_index"),
				"must be 1..18, got %d", h.HandicapIndex)
		}
		if seen[h.HandicapIndex] {
			return kernel.Validationf(entitySnapshot, fieldPath("holes", i, "handicap_index"),
				"duplicate handicap index %d", h.HandicapIndex)
		}
		seen[h.HandicapIndex] = true
	}
	return nil
}

// Hole returns the layout row for a hole number.
func (cs *CourseSnapshot) Hole(number int) (Hole, bool) {
	if number < 1 || number > len(cs.Holes) {
		return Hole{}, false
	}
	return cs.Holes[number-1], true
}

// Par returns the total par of the layout.
func (cs *CourseSnapshot) Par() int {
	total := 0
	for _, h := range cs.Holes {
		total += h.Par
	}
	return total
}

// Value rebuilds the canonical document from the typed fields.
func (cs *CourseSnapshot) Value() canon.Value {
	holes := make(canon.Array, 0, len(cs.Holes))
	for _, h := range cs.Holes {
		holes = append(holes, canon.Object{
			"hole_number":    canon.Number(h.Number),
			"par":            canon.Number(h.Par),
			"handicap_index": canon.Number(h.HandicapIndex),
		})
	}
	return canon.Object{
		"course_name": canon.String(cs.CourseName),
		"tee_set":     canon.String(cs.TeeSet),
		"hole_count":  canon.Number(cs.HoleCount),
		"holes":       holes,
	}
}

// Identity returns the snapshot hash and the canonical bytes it was
// computed over.
func (cs *CourseSnapshot) Identity() (hash string, canonical []byte, err error) {
	return canon.HashValue(cs.Value())
}

// StoredSnapshot is a course snapshot as read back from the store.
type StoredSnapshot struct {
	Hash      string
	Canonical []byte
	Snapshot  *CourseSnapshot
}

// DecodeStoredSnapshot rebuilds the typed snapshot from stored canonical
// bytes, trusting hash as given.
func DecodeStoredSnapshot(hash string, canonical []byte) (*StoredSnapshot, error) {
	cs, err := ParseCourseSnapshot(canonical)
	if err != nil {
		return nil, err
	}
	return &StoredSnapshot{Hash: hash, Canonical: canonical, Snapshot: cs}, nil
}
