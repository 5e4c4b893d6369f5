package models

// ReferenceDatabaseClass is the schema class name of reference database records.
const ReferenceDatabaseClass = "ReferenceDatabase"

// ReferenceDatabase represents a catalogued external resource in one
// knowledgebase snapshot. Populated once at fetch time by a snapshot backend.
type ReferenceDatabase struct {
	// Identity is the record identifier, unique within one snapshot.
	Identity    string `json:"identity" yaml:"identity"`
	SchemaClass string `json:"schema_class" yaml:"schema_class"`

	// Names holds the candidate names in attribute order.
	Names []string `json:"names" yaml:"names"`

	// DisplayName is the record's default display name.
	DisplayName string `json:"display_name" yaml:"display_name"`
	// ExtendedDisplayName is the snapshot's "[class:id] name" label.
	// Empty when the backend does not provide one.
	ExtendedDisplayName string `json:"extended_display_name,omitempty" yaml:"extended_display_name,omitempty"`
}

// ExtendedLabel returns the extended display name, synthesizing it from
// the display name when the snapshot did not supply one.
func (r ReferenceDatabase) ExtendedLabel() string {
	if r.ExtendedDisplayName != "" {
		return r.ExtendedDisplayName
	}
	return InstanceLabel(r.SchemaClass, r.Identity, r.DisplayName)
}
