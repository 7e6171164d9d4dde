package result

// Column describes one field of a schema object. For relational backends
// the values come from information_schema (or its dialect equivalent); for
// document backends they are inferred by sampling.
type Column struct {
	Name     string `json:"column_name"`
	DataType string `json:"data_type"`
	Nullable string `json:"is_nullable,omitempty"`
	Key      string `json:"column_key,omitempty"`
	Default  string `json:"column_default,omitempty"`
	Extra    string `json:"extra,omitempty"`

	// SampleValues holds up to a few observed values for document fields,
	// where there is no declared type to report.
	SampleValues []string `json:"sample_values,omitempty"`
}

// ForeignKey is one outgoing relationship of a relational table.
type ForeignKey struct {
	Column           string `json:"column_name"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// Schema is the structured descriptor returned by describe_schema.
type Schema struct {
	Object      string       `json:"object"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
}
