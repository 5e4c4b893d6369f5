package service

import (
	"context"
	"sync"

	"github.com/raphaelgruber/refcheck/internal/models"
)

// fakeSnapshot is an in-memory Snapshot for tests.
type fakeSnapshot struct {
	name     string
	rds      []models.ReferenceDatabase
	counts   map[string]int
	fetchErr error
	countErr map[string]error

	mu    sync.Mutex
	calls []string
}

func newFakeSnapshot(name string, rds ...models.ReferenceDatabase) *fakeSnapshot {
	return &fakeSnapshot{name: name, rds: rds, counts: map[string]int{}, countErr: map[string]error{}}
}

func (f *fakeSnapshot) withCount(identity string, n int) *fakeSnapshot {
	f.counts[identity] = n
	return f
}

func (f *fakeSnapshot) Name() string { return f.name }

func (f *fakeSnapshot) FetchReferenceDatabases(ctx context.Context) ([]models.ReferenceDatabase, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]models.ReferenceDatabase(nil), f.rds...), nil
}

func (f *fakeSnapshot) CountReferrers(ctx context.Context, identity string) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, identity)
	f.mu.Unlock()

	if err := f.countErr[identity]; err != nil {
		return 0, err
	}
	return f.counts[identity], nil
}

func (f *fakeSnapshot) countCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// refDB builds a reference database whose display name is its first name.
func refDB(identity string, names ...string) models.ReferenceDatabase {
	display := ""
	if len(names) > 0 {
		display = names[0]
	}
	return models.ReferenceDatabase{
		Identity:    identity,
		SchemaClass: models.ReferenceDatabaseClass,
		Names:       names,
		DisplayName: display,
	}
}
