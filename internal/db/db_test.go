// Package db provides integration tests for the SurrealDB snapshot backend.
package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/refcheck/internal/models"
	"github.com/raphaelgruber/refcheck/internal/service"
)

var surrealURL string

// TestMain starts a SurrealDB container for the integration tests. Without
// Docker, or in short mode, those tests are skipped and the rest still run.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Printf("SurrealDB container unavailable, skipping integration tests: %v", err)
		os.Exit(m.Run())
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}
	surrealURL = fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port())

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

// testClient connects to a fresh snapshot database in the test container.
func testClient(t *testing.T, database string) (*Client, context.Context) {
	t.Helper()
	if surrealURL == "" {
		t.Skip("SurrealDB container not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	client, err := NewClient(ctx, Config{
		URL:            surrealURL,
		Namespace:      "test",
		Database:       database,
		Username:       "root",
		Password:       "root",
		AuthLevel:      "root",
		ReferrerTables: []string{"reference_entity", "database_identifier"},
	}, nil)
	require.NoError(t, err, "should connect to SurrealDB")
	t.Cleanup(func() { client.Close(ctx) })

	require.NoError(t, client.InitSchema(ctx))
	require.NoError(t, client.WipeData(ctx))
	return client, ctx
}

func seed(t *testing.T, ctx context.Context, c *Client, rd models.ReferenceDatabase, entities, xrefs int) {
	t.Helper()
	require.NoError(t, c.SeedReferenceDatabase(ctx, rd))
	require.NoError(t, c.SeedReferrers(ctx, "reference_entity", rd.Identity, entities))
	require.NoError(t, c.SeedReferrers(ctx, "database_identifier", rd.Identity, xrefs))
}

func TestClientFetchAndCount(t *testing.T) {
	client, ctx := testClient(t, "fetch_count")
	assert.Equal(t, "fetch_count", client.Name())

	seed(t, ctx, client, models.ReferenceDatabase{
		Identity:    "uniprot",
		Names:       []string{"UniProt", "UniProtKB"},
		DisplayName: "UniProt",
	}, 3, 2)
	seed(t, ctx, client, models.ReferenceDatabase{
		Identity:            "chebi",
		Names:               []string{"ChEBI"},
		DisplayName:         "ChEBI",
		ExtendedDisplayName: "ChEBI (Chemical Entities of Biological Interest)",
	}, 0, 0)

	rds, err := client.FetchReferenceDatabases(ctx)
	require.NoError(t, err)
	require.Len(t, rds, 2)

	byID := make(map[string]models.ReferenceDatabase)
	for _, rd := range rds {
		byID[rd.Identity] = rd
	}
	assert.Equal(t, []string{"UniProt", "UniProtKB"}, byID["uniprot"].Names)
	assert.Equal(t, models.ReferenceDatabaseClass, byID["uniprot"].SchemaClass)
	assert.Empty(t, byID["uniprot"].ExtendedDisplayName)
	assert.Equal(t, "ChEBI (Chemical Entities of Biological Interest)", byID["chebi"].ExtendedDisplayName)

	n, err := client.CountReferrers(ctx, "uniprot")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = client.CountReferrers(ctx, "chebi")
	require.NoError(t, err)
	assert.Zero(t, n, "GROUP ALL over no rows counts as zero")
}

func TestClientEmptySnapshot(t *testing.T) {
	client, ctx := testClient(t, "empty")

	rds, err := client.FetchReferenceDatabases(ctx)
	require.NoError(t, err)
	assert.Empty(t, rds)
}

func TestClientComparison(t *testing.T) {
	previous, ctx := testClient(t, "gk_previous")
	current, _ := testClient(t, "gk_current")

	seed(t, ctx, previous, models.ReferenceDatabase{Identity: "1", Names: []string{"UniProt"}, DisplayName: "UniProt"}, 10, 0)
	seed(t, ctx, previous, models.ReferenceDatabase{Identity: "2", Names: []string{"ENSEMBL"}, DisplayName: "ENSEMBL"}, 5, 0)
	seed(t, ctx, previous, models.ReferenceDatabase{Identity: "3", Names: []string{"OMIM"}, DisplayName: "OMIM"}, 0, 2)
	seed(t, ctx, current, models.ReferenceDatabase{Identity: "7", Names: []string{"UniProt"}, DisplayName: "UniProt"}, 10, 0)
	seed(t, ctx, current, models.ReferenceDatabase{Identity: "8", Names: []string{"ENSEMBL"}, DisplayName: "ENSEMBL"}, 4, 0)

	result, err := service.NewComparisonService(previous, current, service.Options{Concurrency: 4}).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, service.Summary{Total: 3, Missing: 1, Reduced: 1, Stable: 1}, result.Summary())
	assert.Equal(t, []string{
		"WARN: [ReferenceDatabase:8] ENSEMBL has a lower referrer count than previously: 4 (current) vs 5 (previous)",
	}, result.Messages(service.Reduced))
}
