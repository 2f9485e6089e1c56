// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

import "errors"

// Errors returned before any pool content is parsed. Every other
// corruption found mid-parse is recoverable: it is logged and the
// offending record is skipped, never surfaced as one of these.
var (
	// ErrIO is returned by Open when the file cannot be opened/mapped.
	ErrIO = errors.New("dex: i/o error reading input")

	// ErrBadHeader is returned by Parse when the input is too short to
	// hold a DEX header, the magic is not recognized, the declared
	// version is not one of 035/037/038/039, or a pool location in the
	// header points past the end of the file.
	ErrBadHeader = errors.New("dex: malformed header")
)

// Anomalies recorded on File.Anomalies. These mirror the teacher's
// pe.Anomalies strings: short, human-readable, appended in addition to
// (not instead of) a structured log call.
const (
	anoMapDisagreesWithHeader = "map list offset/size disagrees with header, using header"
	anoDuplicateClass         = "duplicate class descriptor, last definition wins"
	anoIndexOutOfPool         = "index field out of bounds for referenced pool"
	anoTruncatedRecord        = "record truncated before end of file"
	anoBadVarint              = "overlong or truncated varint"
	anoBadMUTF8               = "invalid modified-UTF-8 start byte, substituted replacement"
	anoClassDataIndexMismatch = "class-data running index does not match attached entry's original index"
)
