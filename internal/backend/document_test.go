package backend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseFindSpec(t *testing.T) {
	doc, err := ParseFindSpec(`{"filter": {"cuisine": "Italian"}, "sort": {"name": 1}}`)
	require.NoError(t, err)
	assert.Contains(t, doc, "filter")

	_, err = ParseFindSpec(`[1, 2, 3]`)
	assert.Error(t, err, "payload must be an object")

	_, err = ParseFindSpec(`not json`)
	assert.Error(t, err)
}

func TestDecodeFindSpec(t *testing.T) {
	spec, err := decodeFindSpec(`{"filter": {"a": 1}, "sort": {"a": -1}, "projection": {"a": 1}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, spec.Filter)
	assert.Equal(t, map[string]any{"a": float64(-1)}, spec.Sort)
	assert.Len(t, spec.Projection, 1)

	// A payload without a "filter" key is the filter itself.
	spec, err = decodeFindSpec(`{"cuisine": "Italian"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cuisine": "Italian"}, spec.Filter)
	assert.Empty(t, spec.Sort)

	spec, err = decodeFindSpec(`{}`)
	require.NoError(t, err)
	assert.Empty(t, spec.Filter)
}

func TestRecordFromDocumentKeepsOrder(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "alice"},
		{Key: "age", Value: int32(30)},
	}

	rec := recordFromDocument(doc)
	require.Len(t, rec, 3)
	assert.Equal(t, "_id", rec[0].Name)
	assert.Equal(t, oid.Hex(), rec[0].Value)
	assert.Equal(t, "name", rec[1].Name)
	assert.Equal(t, "age", rec[2].Name)
}

func TestNormalizeBSONValue(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, oid.Hex(), normalizeBSONValue(oid))

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dt := primitive.NewDateTimeFromTime(when)
	assert.Equal(t, when, normalizeBSONValue(dt))

	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)
	assert.Equal(t, "12.50", normalizeBSONValue(dec))

	nested := normalizeBSONValue(bson.D{{Key: "inner", Value: bson.D{{Key: "x", Value: int32(1)}}}})
	assert.Equal(t, map[string]any{"inner": map[string]any{"x": int32(1)}}, nested)

	arr := normalizeBSONValue(primitive.A{oid, "plain"})
	assert.Equal(t, []any{oid.Hex(), "plain"}, arr)

	assert.Equal(t, "hello", normalizeBSONValue("hello"))
	assert.Nil(t, normalizeBSONValue(nil))
}

func TestBSONTypeName(t *testing.T) {
	cases := map[string]any{
		"null":     nil,
		"string":   "x",
		"bool":     true,
		"int":      int64(1),
		"double":   1.5,
		"objectId": primitive.NewObjectID(),
		"document": bson.D{},
		"array":    primitive.A{},
	}
	for want, value := range cases {
		assert.Equal(t, want, bsonTypeName(value))
	}
}

func TestSampleValueTruncates(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	s := sampleValue(string(long))
	assert.Len(t, s, sampleValueMaxLen)
}
