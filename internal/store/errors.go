package store

import "errors"

// ErrNotFound indicates a missing or unauthorized resource lookup.
var ErrNotFound = errors.New("record not found")

// ErrETagMismatch is returned by conditional event writes whose expected
// etag does not match the stored resource.
var ErrETagMismatch = errors.New("etag does not match")
