package db

import (
	"fmt"
	"strings"
)

// referenceDatabaseTable holds the reference database records of a SurrealDB snapshot.
const referenceDatabaseTable = "reference_database"

const referenceDatabaseSchemaSQL = `
    -- ==========================================================================
    -- REFERENCE DATABASE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS reference_database SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS schema_class ON reference_database TYPE string DEFAULT "ReferenceDatabase";
    -- Candidate names in attribute order
    DEFINE FIELD IF NOT EXISTS names ON reference_database TYPE array<string>;
    DEFINE FIELD IF NOT EXISTS display_name ON reference_database TYPE string;
    DEFINE FIELD IF NOT EXISTS extended_display_name ON reference_database TYPE option<string>;
`

const referrerSchemaTemplate = `
    -- ==========================================================================
    -- REFERRER TABLE %[1]s
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS %[1]s SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS reference_database ON %[1]s TYPE option<record<reference_database>>;
    DEFINE INDEX IF NOT EXISTS %[1]s_reference_database ON %[1]s FIELDS reference_database;
`

// SchemaSQL returns the schema of a SurrealDB snapshot with the given referrer tables.
// Table names must already be validated identifiers.
func SchemaSQL(referrerTables []string) string {
	var b strings.Builder
	b.WriteString(referenceDatabaseSchemaSQL)
	for _, table := range referrerTables {
		fmt.Fprintf(&b, referrerSchemaTemplate, table)
	}
	return b.String()
}
