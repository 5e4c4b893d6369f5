package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/refcheck/internal/models"
)

// referenceDatabaseRecord is the stored shape of a reference_database row.
type referenceDatabaseRecord struct {
	ID                  surrealmodels.RecordID `json:"id"`
	SchemaClass         string                 `json:"schema_class"`
	Names               []string               `json:"names"`
	DisplayName         string                 `json:"display_name"`
	ExtendedDisplayName *string                `json:"extended_display_name,omitempty"`
}

type countRow struct {
	C int `json:"c"`
}

// FetchReferenceDatabases returns every reference database record in the snapshot.
func (c *Client) FetchReferenceDatabases(ctx context.Context) ([]models.ReferenceDatabase, error) {
	results, err := surrealdb.Query[[]referenceDatabaseRecord](ctx, c.db,
		`SELECT * FROM reference_database`, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch reference databases: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.ReferenceDatabase{}, nil
	}

	records := (*results)[0].Result
	rds := make([]models.ReferenceDatabase, 0, len(records))
	ids := make(map[string]surrealmodels.RecordID, len(records))
	for _, rec := range records {
		identity, err := models.RecordIDString(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("reference database %v: %w", rec.ID, err)
		}
		ids[identity] = rec.ID

		rd := models.ReferenceDatabase{
			Identity:    identity,
			SchemaClass: rec.SchemaClass,
			Names:       rec.Names,
			DisplayName: rec.DisplayName,
		}
		if rd.SchemaClass == "" {
			rd.SchemaClass = models.ReferenceDatabaseClass
		}
		if rec.ExtendedDisplayName != nil {
			rd.ExtendedDisplayName = *rec.ExtendedDisplayName
		}
		rds = append(rds, rd)
	}
	c.rememberIDs(ids)

	return rds, nil
}

// CountReferrers counts records in the referrer tables linking to the given
// reference database.
func (c *Client) CountReferrers(ctx context.Context, identity string) (int, error) {
	rd := c.recordID(identity)

	total := 0
	for _, table := range c.cfg.ReferrerTables {
		results, err := surrealdb.Query[[]countRow](ctx, c.db, `
			SELECT count() AS c FROM type::table($tb) WHERE reference_database = $rd GROUP ALL
		`, map[string]any{"tb": table, "rd": rd})
		if err != nil {
			return 0, fmt.Errorf("count %s referrers: %w", table, wrapQueryError(err))
		}

		// GROUP ALL over zero rows yields no row at all
		if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
			total += (*results)[0].Result[0].C
		}
	}
	return total, nil
}

// SeedReferenceDatabase stores a reference database record. Used for fixtures and tests.
func (c *Client) SeedReferenceDatabase(ctx context.Context, rd models.ReferenceDatabase) error {
	var extended *string
	if rd.ExtendedDisplayName != "" {
		extended = &rd.ExtendedDisplayName
	}
	schemaClass := rd.SchemaClass
	if schemaClass == "" {
		schemaClass = models.ReferenceDatabaseClass
	}

	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("reference_database", $id) SET
			schema_class = $schema_class,
			names = $names,
			display_name = $display_name,
			extended_display_name = $extended_display_name
	`, map[string]any{
		"id":                    rd.Identity,
		"schema_class":          schemaClass,
		"names":                 rd.Names,
		"display_name":          rd.DisplayName,
		"extended_display_name": extended,
	})
	if err != nil {
		return fmt.Errorf("seed reference database %s: %w", rd.Identity, wrapQueryError(err))
	}
	return nil
}

// SeedReferrers creates n records in table linking to the reference database.
// Used for fixtures and tests.
func (c *Client) SeedReferrers(ctx context.Context, table, identity string, n int) error {
	if err := validateIdentifiers([]string{table}); err != nil {
		return err
	}
	rd := surrealmodels.NewRecordID(referenceDatabaseTable, identity)
	for i := 0; i < n; i++ {
		_, err := surrealdb.Query[any](ctx, c.db, `
			CREATE type::table($tb) SET reference_database = $rd
		`, map[string]any{"tb": table, "rd": rd})
		if err != nil {
			return fmt.Errorf("seed %s referrer: %w", table, wrapQueryError(err))
		}
	}
	return nil
}
