package models

import (
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestRecordIDString(t *testing.T) {
	tests := []struct {
		name    string
		id      any
		want    string
		wantErr bool
	}{
		{"string", "uniprot", "uniprot", false},
		{"int", 42, "42", false},
		{"int64", int64(1234567), "1234567", false},
		{"uint64", uint64(99), "99", false},
		{"float rejected", 1.5, "", true},
		{"nil rejected", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecordIDString(surrealmodels.RecordID{Table: "reference_database", ID: tt.id})
			if (err != nil) != tt.wantErr {
				t.Fatalf("RecordIDString(%v) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("RecordIDString(%v) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestMustRecordIDStringPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unsupported ID type")
		}
	}()
	MustRecordIDString(surrealmodels.RecordID{Table: "reference_database", ID: []byte("x")})
}

func TestExtendedLabel(t *testing.T) {
	tests := []struct {
		name string
		rd   ReferenceDatabase
		want string
	}{
		{
			name: "supplied by snapshot",
			rd: ReferenceDatabase{
				Identity: "2", SchemaClass: ReferenceDatabaseClass,
				DisplayName: "UniProt", ExtendedDisplayName: "[ReferenceDatabase:2] UniProt",
			},
			want: "[ReferenceDatabase:2] UniProt",
		},
		{
			name: "synthesized from display name",
			rd:   ReferenceDatabase{Identity: "7", SchemaClass: ReferenceDatabaseClass, DisplayName: "ChEBI"},
			want: "[ReferenceDatabase:7] ChEBI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rd.ExtendedLabel(); got != tt.want {
				t.Errorf("ExtendedLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}
