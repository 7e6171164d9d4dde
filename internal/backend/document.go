package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/querygate/querygate/internal/admission"
	"github.com/querygate/querygate/internal/config"
	"github.com/querygate/querygate/internal/errors"
	"github.com/querygate/querygate/internal/governor"
	"github.com/querygate/querygate/internal/pool"
	"github.com/querygate/querygate/internal/result"
)

const (
	serverSelectionTimeout = 5 * time.Second

	// schemaSampleSize is how many documents Describe samples to infer a
	// collection's field shape.
	schemaSampleSize = 100

	sampleValuesPerField = 3
	sampleValueMaxLen    = 50
)

// Document is the adapter for MongoDB-style document stores.
type Document struct {
	cfg    *config.Config
	vocab  *admission.Vocabulary
	client *mongo.Client
	db     *mongo.Database
}

// NewDocument builds the adapter for a MongoDB backend.
func NewDocument(cfg *config.Config) (*Document, error) {
	vocab, ok := admission.ForFamily(admission.FamilyDocument)
	if !ok {
		return nil, fmt.Errorf("no vocabulary registered for family %s", admission.FamilyDocument)
	}
	return &Document{cfg: cfg, vocab: vocab}, nil
}

func (d *Document) Family() admission.Family          { return admission.FamilyDocument }
func (d *Document) Vocabulary() *admission.Vocabulary { return d.vocab }

func (d *Document) uri() (string, error) {
	if err := d.cfg.RequireServer(); err != nil {
		return "", err
	}
	if d.cfg.User != "" && d.cfg.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", d.cfg.User, d.cfg.Password, d.cfg.Host, d.cfg.Port), nil
	}
	return fmt.Sprintf("mongodb://%s:%d", d.cfg.Host, d.cfg.Port), nil
}

// Connect dials the server and verifies it with a ping. The driver's own
// session pool is capped at the configured pool size so the gateway's pool
// remains the effective concurrency bound.
func (d *Document) Connect(ctx context.Context) error {
	uri, err := d.uri()
	if err != nil {
		return err
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetMaxPoolSize(uint64(d.cfg.PoolSize))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return errors.Unavailable(err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return errors.Unavailable(err)
	}

	d.client = client
	d.db = client.Database(d.cfg.Database)
	return nil
}

func (d *Document) Close() error {
	if d.client == nil {
		return nil
	}
	return d.client.Disconnect(context.Background())
}

// documentSession is a lease-sized handle over the shared client. The
// driver multiplexes sockets underneath; the gateway pool bounds how many
// operations are in flight at once.
type documentSession struct {
	client *mongo.Client
	db     *mongo.Database
}

func (s *documentSession) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *documentSession) Close() error { return nil }

func (d *Document) NewConn(context.Context) (pool.Conn, error) {
	return &documentSession{client: d.client, db: d.db}, nil
}

func (d *Document) session(conn pool.Conn) (*documentSession, error) {
	sess, ok := conn.(*documentSession)
	if !ok {
		return nil, fmt.Errorf("connection is not a document session")
	}
	return sess, nil
}

func (d *Document) ListObjects(ctx context.Context, conn pool.Conn) ([]string, error) {
	sess, err := d.session(conn)
	if err != nil {
		return nil, err
	}
	names, err := sess.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	sort.Strings(names)
	return names, nil
}

// Describe infers a collection's schema by sampling documents: field names,
// the set of value types observed, and a few example values. Document
// stores have no declared schema to read.
func (d *Document) Describe(ctx context.Context, conn pool.Conn, target string) (*result.Schema, error) {
	sess, err := d.session(conn)
	if err != nil {
		return nil, err
	}

	exists, err := d.collectionExists(ctx, sess, target)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NotFound(target)
	}

	cursor, err := sess.db.Collection(target).Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: schemaSampleSize}}}},
	})
	if err != nil {
		return nil, errors.Unavailable(err)
	}
	defer cursor.Close(ctx)

	type fieldInfo struct {
		name    string
		types   map[string]bool
		samples []string
	}
	var order []string
	fields := make(map[string]*fieldInfo)

	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Unavailable(err)
		}
		for _, elem := range doc {
			info := fields[elem.Key]
			if info == nil {
				info = &fieldInfo{name: elem.Key, types: make(map[string]bool)}
				fields[elem.Key] = info
				order = append(order, elem.Key)
			}
			info.types[bsonTypeName(elem.Value)] = true
			if len(info.samples) < sampleValuesPerField {
				info.samples = append(info.samples, sampleValue(elem.Value))
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Unavailable(err)
	}

	schema := &result.Schema{Object: target}
	for _, name := range order {
		info := fields[name]
		types := make([]string, 0, len(info.types))
		for t := range info.types {
			types = append(types, t)
		}
		sort.Strings(types)
		schema.Columns = append(schema.Columns, result.Column{
			Name:         name,
			DataType:     joinTypes(types),
			SampleValues: info.samples,
		})
	}
	return schema, nil
}

// findSpec is the document-family query payload: a JSON object with an
// optional filter, sort, and projection. A payload without a "filter" key
// is treated as the filter itself.
type findSpec struct {
	Filter     map[string]any `json:"filter"`
	Sort       map[string]any `json:"sort"`
	Projection map[string]any `json:"projection"`
}

// ParseFindSpec decodes a document-family query payload. The gateway calls
// this before admission so the filter can be validated; the adapter calls
// it again at execution time.
func ParseFindSpec(payload string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, fmt.Errorf("query payload must be a JSON object: %w", err)
	}
	return doc, nil
}

func decodeFindSpec(payload string) (*findSpec, error) {
	doc, err := ParseFindSpec(payload)
	if err != nil {
		return nil, err
	}
	if _, hasFilter := doc["filter"]; !hasFilter {
		return &findSpec{Filter: doc}, nil
	}
	var spec findSpec
	if err := json.Unmarshal([]byte(payload), &spec); err != nil {
		return nil, fmt.Errorf("invalid find spec: %w", err)
	}
	return &spec, nil
}

func (d *Document) Query(ctx context.Context, conn pool.Conn, target, payload string, sink *governor.RowSink) error {
	sess, err := d.session(conn)
	if err != nil {
		return err
	}
	spec, err := decodeFindSpec(payload)
	if err != nil {
		return errors.Denied(err.Error())
	}

	opts := options.Find()
	if remaining := sink.Remaining(); remaining >= 0 {
		// One extra row lets the sink detect truncation.
		opts.SetLimit(int64(remaining) + 1)
	}
	if len(spec.Sort) > 0 {
		opts.SetSort(bson.M(spec.Sort))
	}
	if len(spec.Projection) > 0 {
		opts.SetProjection(bson.M(spec.Projection))
	}

	filter := any(bson.D{})
	if len(spec.Filter) > 0 {
		filter = bson.M(spec.Filter)
	}

	cursor, err := sess.db.Collection(target).Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return drainCursor(ctx, cursor, sink)
}

// Aggregate runs an admitted pipeline. Stages execute server-side to
// completion; the row cap applies only to the final cursor output, so a
// group result is never cut mid-aggregation, only whole output records are
// dropped.
func (d *Document) Aggregate(ctx context.Context, conn pool.Conn, target string, stages []admission.Stage, sink *governor.RowSink) error {
	sess, err := d.session(conn)
	if err != nil {
		return err
	}

	pipeline := make([]bson.M, 0, len(stages))
	for _, stage := range stages {
		pipeline = append(pipeline, bson.M(stage))
	}

	opts := options.Aggregate()
	if deadline, ok := ctx.Deadline(); ok {
		opts.SetMaxTime(time.Until(deadline))
	}

	cursor, err := sess.db.Collection(target).Aggregate(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	return drainCursor(ctx, cursor, sink)
}

func (d *Document) Count(ctx context.Context, conn pool.Conn, target string, filter map[string]any) (int64, error) {
	sess, err := d.session(conn)
	if err != nil {
		return 0, err
	}

	exists, err := d.collectionExists(ctx, sess, target)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, errors.NotFound(target)
	}

	match := any(bson.D{})
	if len(filter) > 0 {
		match = bson.M(filter)
	}
	count, err := sess.db.Collection(target).CountDocuments(ctx, match)
	if err != nil {
		return 0, errors.Unavailable(err)
	}
	return count, nil
}

func (d *Document) collectionExists(ctx context.Context, sess *documentSession, target string) (bool, error) {
	names, err := sess.db.ListCollectionNames(ctx, bson.M{"name": target})
	if err != nil {
		return false, errors.Unavailable(err)
	}
	return len(names) > 0, nil
}

func drainCursor(ctx context.Context, cursor *mongo.Cursor, sink *governor.RowSink) error {
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		if !sink.Push(recordFromDocument(doc)) {
			break
		}
	}
	return cursor.Err()
}

// recordFromDocument keeps the document's top-level field order. Nested
// documents become plain maps; only the top level carries an ordering
// guarantee.
func recordFromDocument(doc bson.D) result.Record {
	rec := make(result.Record, len(doc))
	for i, elem := range doc {
		rec[i] = result.Field{Name: elem.Key, Value: normalizeBSONValue(elem.Value)}
	}
	return rec
}

func normalizeBSONValue(value any) any {
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.Decimal128:
		return v.String()
	case primitive.Binary:
		return fmt.Sprintf("binary(%d bytes)", len(v.Data))
	case bson.D:
		nested := make(map[string]any, len(v))
		for _, elem := range v {
			nested[elem.Key] = normalizeBSONValue(elem.Value)
		}
		return nested
	case primitive.A:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = normalizeBSONValue(item)
		}
		return items
	default:
		return v
	}
}

func bsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int32, int64, int:
		return "int"
	case float64:
		return "double"
	case primitive.ObjectID:
		return "objectId"
	case primitive.DateTime:
		return "date"
	case primitive.Decimal128:
		return "decimal"
	case bson.D:
		return "document"
	case primitive.A:
		return "array"
	case primitive.Binary:
		return "binary"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func sampleValue(value any) string {
	s := fmt.Sprintf("%v", normalizeBSONValue(value))
	if len(s) > sampleValueMaxLen {
		s = s[:sampleValueMaxLen]
	}
	return s
}

func joinTypes(types []string) string {
	return strings.Join(types, "|")
}
