// Package models defines data structures for knowledgebase snapshot records.
package models

import (
	"fmt"
	"strconv"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// InstanceLabel formats a record as "[class:identity] name".
func InstanceLabel(schemaClass, identity, name string) string {
	return fmt.Sprintf("[%s:%s] %s", schemaClass, identity, name)
}

// RecordIDString extracts the identifier part of a SurrealDB RecordID as a string.
// String and integer IDs are supported; anything else is an error.
func RecordIDString(id surrealmodels.RecordID) (string, error) {
	switch v := id.ID.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	default:
		return "", fmt.Errorf("unexpected ID type: %T (expected string or integer)", id.ID)
	}
}

// MustRecordIDString extracts the string ID, panicking if it is not a string or integer.
// Use only in tests and fixtures where the ID type is known.
func MustRecordIDString(id surrealmodels.RecordID) string {
	s, err := RecordIDString(id)
	if err != nil {
		panic(err)
	}
	return s
}
