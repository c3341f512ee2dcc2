// Package sfs handles Svensk författningssamling identifiers and the natural
// ordering of Swedish statute section designations.
package sfs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`^(\d{4}):(\d+)$`)

// Normalize strips an optional "SFS " prefix and surrounding whitespace so
// that "SFS 1977:1160", " 1977:1160" and "1977:1160" all resolve to the same
// stored document number. Lookups that skip this step miss documents ingested
// with the prefix.
func Normalize(number string) string {
	trimmed := strings.TrimSpace(number)
	trimmed = strings.TrimPrefix(trimmed, "SFS")
	return strings.TrimSpace(trimmed)
}

// Valid reports whether number (after normalization) is a well-formed SFS
// identifier such as "1977:1160".
func Valid(number string) bool {
	return numberPattern.MatchString(Normalize(number))
}

// Parse splits a normalized SFS number into its year and ordinal parts.
func Parse(number string) (year, ordinal int, err error) {
	match := numberPattern.FindStringSubmatch(Normalize(number))
	if match == nil {
		return 0, 0, fmt.Errorf("malformed SFS number %q", number)
	}
	year, _ = strconv.Atoi(match[1])
	ordinal, _ = strconv.Atoi(match[2])
	return year, ordinal, nil
}

// Compare orders two SFS numbers by year, then ordinal. Legislative numbering
// is monotonic within a year, so this matches publication order. Malformed
// numbers sort after well-formed ones, and among themselves lexically, so the
// result is still a total order.
func Compare(a, b string) int {
	yearA, ordA, errA := Parse(a)
	yearB, ordB, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(Normalize(a), Normalize(b))
	case errA != nil:
		return 1
	case errB != nil:
		return -1
	}
	if yearA != yearB {
		return yearA - yearB
	}
	return ordA - ordB
}

var sectionPattern = regexp.MustCompile(`^(\d+)\s*([a-zå-ö]?)$`)

// CompareSections orders section designations in natural statute order:
// numeric part first, then the optional letter suffix ("2" < "27" < "27 a" <
// "27 b"). The "§" sign and surrounding space are ignored.
func CompareSections(a, b string) int {
	numA, sufA := splitSection(a)
	numB, sufB := splitSection(b)
	if numA != numB {
		return numA - numB
	}
	if sufA != sufB {
		return strings.Compare(sufA, sufB)
	}
	// Fall back to the raw designation for anything the pattern missed.
	return strings.Compare(normalizeSection(a), normalizeSection(b))
}

func normalizeSection(designation string) string {
	trimmed := strings.TrimSpace(designation)
	trimmed = strings.TrimSuffix(trimmed, "§")
	return strings.TrimSpace(strings.ToLower(trimmed))
}

func splitSection(designation string) (number int, suffix string) {
	match := sectionPattern.FindStringSubmatch(normalizeSection(designation))
	if match == nil {
		return 0, ""
	}
	number, _ = strconv.Atoi(match[1])
	return number, match[2]
}
