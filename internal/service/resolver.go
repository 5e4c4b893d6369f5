package service

import (
	"unicode/utf8"

	"github.com/raphaelgruber/refcheck/internal/models"
)

// CanonicalName returns the longest of the record's candidate names.
// On a tie in length the first-listed candidate wins.
// A record without names yields a *ResolutionError.
func CanonicalName(rd models.ReferenceDatabase) (string, error) {
	if len(rd.Names) == 0 {
		return "", &ResolutionError{Identity: rd.Identity, Err: errNoNames}
	}

	longest := ""
	longestLen := 0
	for _, name := range rd.Names {
		// Strict comparison keeps the first of equally long names.
		if n := utf8.RuneCountInString(name); n > longestLen {
			longest, longestLen = name, n
		}
	}
	return longest, nil
}

// DisplayLabel returns the label used in report messages.
// Records whose display name is already their canonical name use the
// snapshot's extended display name; all others get "[class:id] canonical"
// so the best-known name is shown next to the record identity.
func DisplayLabel(rd models.ReferenceDatabase) (string, error) {
	canonical, err := CanonicalName(rd)
	if err != nil {
		return "", err
	}
	if rd.DisplayName == canonical {
		return rd.ExtendedLabel(), nil
	}
	return models.InstanceLabel(rd.SchemaClass, rd.Identity, canonical), nil
}
