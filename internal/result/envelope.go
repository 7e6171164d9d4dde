// Package result defines the normalized response shapes the gateway returns
// regardless of backend family: ordered-field records, the capped envelope,
// and schema descriptors.
package result

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field is one named value within a record.
type Field struct {
	Name  string
	Value any
}

// Record is a single normalized row or document. Field order is stable per
// record: relational rows keep column order, documents keep the order the
// adapter produced. A plain map would lose that.
type Record []Field

// NewRecord builds a record from parallel column and value slices,
// converting driver byte slices to strings so the record serializes as text
// rather than base64.
func NewRecord(columns []string, values []any) Record {
	rec := make(Record, len(columns))
	for i, col := range columns {
		val := values[i]
		if b, ok := val.([]byte); ok {
			val = string(b)
		}
		rec[i] = Field{Name: col, Value: val}
	}
	return rec
}

// MarshalJSON renders the record as a JSON object with fields in record
// order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Envelope is the uniform response for row-returning operations. It is built
// once per operation and immutable afterwards.
type Envelope struct {
	Rows      []Record      `json:"rows"`
	Truncated bool          `json:"truncated"`
	RowCount  int           `json:"row_count"`
	Elapsed   time.Duration `json:"-"`
}

// MarshalJSON adds elapsed milliseconds alongside the row payload.
func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	return json.Marshal(struct {
		alias
		ElapsedMS int64 `json:"elapsed_ms"`
	}{alias(e), e.Elapsed.Milliseconds()})
}

// Normalize shapes retrieved rows into an envelope, enforcing the row cap
// even if retrieval already stopped at the cap. A second cap here costs
// nothing and keeps the envelope honest if an adapter over-collects.
func Normalize(rows []Record, maxRows int, truncated bool, elapsed time.Duration) *Envelope {
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
		truncated = true
	}
	return &Envelope{
		Rows:      rows,
		Truncated: truncated,
		RowCount:  len(rows),
		Elapsed:   elapsed,
	}
}
