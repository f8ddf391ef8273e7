package docstore

import "errors"

// ErrDuplicateKey is returned by Insert when id already exists, matching
// spec.md §4.8's "a create path that rejects on duplicate primary key".
var ErrDuplicateKey = errors.New("docstore: duplicate primary key")
