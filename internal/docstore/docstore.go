// Package docstore defines the document-store driver contract the async
// miss resolver reads from (spec.md §4.7/§4.8), with three swappable
// backends mirroring the teacher's storage/persistence-{files,s3,ceph}.go
// split: an in-memory reference backend, an S3-object backend
// (aws-sdk-go-v2), and a SQL-table backend (go-sql-driver/mysql /
// lib/pq). Where the teacher's PersistenceEngine moves column/log bytes,
// a Driver moves whole JSON-shaped documents keyed by uid.
package docstore

import "context"

// Document is the MongoDB-shaped document the resolver reads: top-level
// fields category/tag/category_stat/tag_stat/ts (see
// internal/projection), decoded into plain Go values the way
// encoding/json would decode an arbitrary object.
type Document map[string]any

// Driver is the document-store contract. Query honors a field projection
// the way the original's mongoc query options restrict returned fields;
// a nil/empty projection means "all fields".
type Driver interface {
	Query(ctx context.Context, id string, projection []string) (Document, bool, error)
	Insert(ctx context.Context, id string, doc Document) error
	Upsert(ctx context.Context, id string, doc Document) error
}

// Factory mirrors the teacher's PersistenceFactory: construct a Driver
// for a named collection/bucket/table without the caller needing to know
// which backend is behind it.
type Factory interface {
	Open(collection string) (Driver, error)
}

// projected narrows doc to the requested top-level fields, the in-process
// analogue of a server-side projection. Backends that can push the
// projection down (SQL column selection, S3 conditional reads) may do so
// instead; the in-memory backend always fetches the full document and
// projects here.
func projected(doc Document, fields []string) Document {
	if len(fields) == 0 {
		return doc
	}
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}
