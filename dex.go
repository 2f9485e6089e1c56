// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dex parses Android Dalvik Executable (DEX) files into an
// in-memory object graph of strings, types, prototypes, fields, methods
// and classes, tolerating malformed records the way a file that survived
// repackaging, obfuscation or truncation commonly does.
package dex

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
)

// DefaultMaxClassDataSize bounds how large a single class-data stream the
// parser will walk before giving up on that class, as a guard against a
// maliciously huge declared field/method count looping effectively forever
// on an otherwise small input.
const DefaultMaxClassDataSize = 1 << 20

// File is the root of the parsed object graph: it owns every String, Type,
// Prototype, Field and Method, plus a descriptor-keyed Class map. Every
// cross-reference between these is a non-owning pointer that stays valid
// for the lifetime of the File (§3, §9).
type File struct {
	Header Header
	Map    MapList

	Strings    []*String
	Types      []*Type
	Prototypes []*Prototype
	Fields     []*Field
	Methods    []*Method
	Classes    map[string]*Class

	Anomalies []string

	data   []byte
	mm     mmap.MMap
	f      *os.File
	stream *byteStream
	opts   *Options
	logger *log.Helper

	// Transient multi-maps, consumed and emptied by the Resolver (§3, §5).
	classFieldMap  map[string][]*Field
	classMethodMap map[string][]*Method
	inheritance    map[string][]*Class
	classTypeMap   map[string][]*Type
}

// Options configures a Parse run.
type Options struct {
	// Fast stops once the header, map and the five pools (strings, types,
	// prototypes, fields, methods) are decoded: class_def_items, class-data,
	// bytecode attachment and the Resolver are all skipped, so Classes
	// stays empty.
	Fast bool

	// MaxClassDataSize bounds the total number of field and method entries
	// a single class-data stream may declare before the parser abandons
	// that stream as corrupt, by default DefaultMaxClassDataSize.
	MaxClassDataSize uint32

	// Logger is a custom sink for parse progress/warnings. Defaults to a
	// stdout logger filtered to error level and above.
	Logger log.Logger
}

func newHelper(opts *Options) *log.Helper {
	if opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	logger := log.NewStdLogger(os.Stdout)
	return log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelError)))
}

// Open memory-maps the file at path read-only and returns a File ready for
// Parse.
func Open(path string, opts *Options) (*File, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, ErrIO
	}

	data, err := mmap.Map(osFile, mmap.RDONLY, 0)
	if err != nil {
		osFile.Close()
		return nil, ErrIO
	}

	file := &File{f: osFile, mm: data, data: data}
	if opts == nil {
		opts = &Options{}
	}
	if opts.MaxClassDataSize == 0 {
		opts.MaxClassDataSize = DefaultMaxClassDataSize
	}
	file.opts = opts
	file.logger = newHelper(opts)
	file.stream = newByteStream(data)
	return file, nil
}

// ParseBytes builds a File directly from an in-memory buffer, for callers
// that already hold the content (tests, or data fetched from elsewhere).
// Like Open, it only constructs the File; call Parse to populate it.
func ParseBytes(data []byte, opts *Options) (*File, error) {
	file := &File{data: data}
	if opts == nil {
		opts = &Options{}
	}
	if opts.MaxClassDataSize == 0 {
		opts.MaxClassDataSize = DefaultMaxClassDataSize
	}
	file.opts = opts
	file.logger = newHelper(opts)
	file.stream = newByteStream(data)
	return file, nil
}

// Close releases the memory mapping and underlying file handle, if any.
func (f *File) Close() error {
	if f.mm != nil {
		_ = f.mm.Unmap()
	}
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

// Parse decodes the DEX file leaves-first, per §2: ByteStream is already
// positioned over f.data; Header and Map come first, then the five pools
// in dependency order, then class defs, then the Resolver. The only
// returned error is ErrBadHeader, which also covers input too short to
// hold a header; every other corruption is recorded as a warning and an
// Anomalies entry, never aborting the parse (§7).
func (f *File) Parse() error {
	if err := f.parseHeader(); err != nil {
		return err
	}

	f.parseMapList()
	f.parseStrings()
	f.parseTypes()
	f.parsePrototypes()
	f.parseFields()
	f.parseMethods()

	if f.opts.Fast {
		return nil
	}

	f.inheritance = map[string][]*Class{}
	f.Classes = map[string]*Class{}
	f.parseClassDefs()
	f.resolve()

	return nil
}
