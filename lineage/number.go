// Package lineage manages the structured quotation number and the strictly
// ordered version lineage behind it, including the compensating rollback for
// abandoned versions.
package lineage

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// numberPattern is the strict wire format of a document number:
// prefix, 4-digit sequential, dot, 2-digit year code, 4-digit time code,
// "V", version ordinal. Example: CZ0001.251703V2.
var numberPattern = regexp.MustCompile(`^([A-Z]+)(\d{4})\.(\d{2})(\d{4})V([1-9]\d*)$`)

// basePattern matches a lineage base number, i.e. a document number without
// its version suffix.
var basePattern = regexp.MustCompile(`^[A-Z]+\d{4}\.\d{6}$`)

// ValidBase reports whether s is a well-formed lineage base number.
func ValidBase(s string) bool {
	return basePattern.MatchString(s)
}

// Number is a parsed document number. The Prefix/Sequential/YearCode/TimeCode
// quadruple identifies a lineage and is immutable once assigned; only the
// Version ordinal advances. An unparseable input yields IsValid=false and
// callers must never assume default values for any field.
type Number struct {
	Prefix     string
	Sequential int
	YearCode   string
	TimeCode   string
	Version    int
	IsValid    bool
}

// Parse decodes a document number string.
func Parse(s string) Number {
	m := numberPattern.FindStringSubmatch(s)
	if m == nil {
		return Number{}
	}

	sequential, err := strconv.Atoi(m[2])
	if err != nil {
		return Number{}
	}
	version, err := strconv.Atoi(m[5])
	if err != nil {
		return Number{}
	}

	return Number{
		Prefix:     m[1],
		Sequential: sequential,
		YearCode:   m[3],
		TimeCode:   m[4],
		Version:    version,
		IsValid:    true,
	}
}

// String builds the canonical string form. An invalid Number renders empty.
func (n Number) String() string {
	if !n.IsValid {
		return ""
	}
	return fmt.Sprintf("%s%04d.%s%sV%d", n.Prefix, n.Sequential, n.YearCode, n.TimeCode, n.Version)
}

// Base returns the lineage identity portion, without the version suffix.
func (n Number) Base() string {
	if !n.IsValid {
		return ""
	}
	return fmt.Sprintf("%s%04d.%s%s", n.Prefix, n.Sequential, n.YearCode, n.TimeCode)
}

// SameLineage reports whether two numbers share lineage identity.
func (n Number) SameLineage(other Number) bool {
	return n.IsValid && other.IsValid &&
		n.Prefix == other.Prefix &&
		n.Sequential == other.Sequential &&
		n.YearCode == other.YearCode &&
		n.TimeCode == other.TimeCode
}

// maxSequential is the largest counter the 4-digit sequential field can hold.
const maxSequential = 9999

// NextForNewLineage allocates the first number of a brand-new lineage:
// the sequential counter advances past lastSequential and the current
// year/time are stamped, with version 1. The counter must stay within the
// 4-digit field; past that no parseable number exists for the prefix.
func NextForNewLineage(prefix string, lastSequential int, now time.Time) (Number, error) {
	next := lastSequential + 1
	if next < 1 || next > maxSequential {
		return Number{}, fmt.Errorf("sequential counter %d out of range for prefix %s", next, prefix)
	}
	return Number{
		Prefix:     prefix,
		Sequential: next,
		YearCode:   now.Format("06"),
		TimeCode:   now.Format("1504"),
		Version:    1,
		IsValid:    true,
	}, nil
}

// NextVersionForLineage derives a new number within an existing lineage. The
// sequential/year/time identity is preserved verbatim; only the version suffix
// is replaced. The new ordinal must advance strictly: ordinals are never
// reused.
func NextVersionForLineage(current string, newVersionOrdinal int) (Number, error) {
	parsed := Parse(current)
	if !parsed.IsValid {
		return Number{}, fmt.Errorf("invalid document number %q", current)
	}
	if newVersionOrdinal <= parsed.Version {
		return Number{}, fmt.Errorf("version ordinal %d does not advance past %d", newVersionOrdinal, parsed.Version)
	}

	parsed.Version = newVersionOrdinal
	return parsed, nil
}

// IncrementVersion advances a number to the next version ordinal.
func IncrementVersion(current string) (Number, error) {
	parsed := Parse(current)
	if !parsed.IsValid {
		return Number{}, fmt.Errorf("invalid document number %q", current)
	}
	return NextVersionForLineage(current, parsed.Version+1)
}
