// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

// dexBuilder assembles a synthetic in-memory DEX image byte by byte. The
// pack carries no DEX sample corpus, so tests build minimal, deliberately
// small inputs exercising one invariant each rather than relying on
// fixture files.
type dexBuilder struct {
	strings []string
	types   []string // descriptor per type, referencing strings by content
	protos  []protoSpec
	fields  []fieldSpec
	methods []methodSpec
	classes []classSpec
}

type protoSpec struct {
	shorty  string
	ret     string   // type descriptor
	params  []string // type descriptors
}

type fieldSpec struct {
	class, typ, name string
}

type methodSpec struct {
	class, name string
	proto       int // index into protos
}

type classSpec struct {
	descriptor   string
	superclass   string // "" for none
	sourceFile   string // "" for none
	interfaces   []string
	staticFields []int // indices into fields, in declaration order
	instFields   []int
	directMeths  []int // indices into methods
	virtualMeths []int
}

func newDexBuilder() *dexBuilder { return &dexBuilder{} }

// internString returns the index of s in the string pool, adding it if
// absent.
func (b *dexBuilder) internString(s string) uint32 {
	for i, existing := range b.strings {
		if existing == s {
			return uint32(i)
		}
	}
	b.strings = append(b.strings, s)
	return uint32(len(b.strings) - 1)
}

func (b *dexBuilder) internType(descriptor string) uint32 {
	for i, existing := range b.types {
		if existing == descriptor {
			return uint32(i)
		}
	}
	b.internString(descriptor)
	b.types = append(b.types, descriptor)
	return uint32(len(b.types) - 1)
}

func (b *dexBuilder) addProto(shorty, ret string, params ...string) int {
	b.internString(shorty)
	b.internType(ret)
	for _, p := range params {
		b.internType(p)
	}
	b.protos = append(b.protos, protoSpec{shorty: shorty, ret: ret, params: params})
	return len(b.protos) - 1
}

func (b *dexBuilder) addField(class, typ, name string) int {
	b.internType(class)
	b.internType(typ)
	b.internString(name)
	b.fields = append(b.fields, fieldSpec{class: class, typ: typ, name: name})
	return len(b.fields) - 1
}

func (b *dexBuilder) addMethod(class, name string, proto int) int {
	b.internType(class)
	b.internString(name)
	b.methods = append(b.methods, methodSpec{class: class, name: name, proto: proto})
	return len(b.methods) - 1
}

func (b *dexBuilder) addClass(c classSpec) {
	b.internType(c.descriptor)
	if c.superclass != "" {
		b.internType(c.superclass)
	}
	for _, i := range c.interfaces {
		b.internType(i)
	}
	if c.sourceFile != "" {
		b.internString(c.sourceFile)
	}
	b.classes = append(b.classes, c)
}

// build lays out every section back to back and fills in a valid header.
// Layout, in order: header, string_ids, type_ids, proto_ids, field_ids,
// method_ids, class_defs, then the variable-length data area (string_data,
// type_lists, class_data streams), then the map_list last.
func (b *dexBuilder) build() []byte {
	var w dexWriter

	w.grow(DexHeaderSize)
	headerOff := uint32(0)

	stringIDsOff := w.pos()
	for range b.strings {
		w.putUint32(0) // patched once string_data_item offsets are known
	}

	typeIDsOff := w.pos()
	typeIndex := map[string]uint32{}
	for i, descriptor := range b.types {
		typeIndex[descriptor] = uint32(i)
		w.putUint32(b.internString(descriptor))
	}

	protoIDsOff := w.pos()
	for _, p := range b.protos {
		w.putUint32(b.internString(p.shorty))
		w.putUint32(typeIndex[p.ret])
		w.putUint32(0) // parameters_off patched below
	}

	fieldIDsOff := w.pos()
	for _, fs := range b.fields {
		w.putUint16(uint16(typeIndex[fs.class]))
		w.putUint16(uint16(typeIndex[fs.typ]))
		w.putUint32(b.internString(fs.name))
	}

	methodIDsOff := w.pos()
	for range b.methods {
		w.putUint16(0)
		w.putUint16(0)
		w.putUint32(0)
	}

	classDefsOff := w.pos()
	for range b.classes {
		for i := 0; i < 8; i++ {
			w.putUint32(0)
		}
	}

	// method_id_items, now that proto indices are known by position.
	for i, ms := range b.methods {
		off := methodIDsOff + uint32(i)*8
		w.putUint16At(off, uint16(typeIndex[ms.class]))
		w.putUint16At(off+2, uint16(ms.proto))
		w.putUint32At(off+4, b.internString(ms.name))
	}

	// string_data_item records, one per string, patched back into
	// string_ids.
	for i, s := range b.strings {
		dataOff := w.pos()
		w.putUint32At(stringIDsOff+uint32(i)*4, dataOff)
		w.putULEB128(uint32(len([]rune(s))))
		w.putMUTF8(s)
	}

	// proto parameter type-lists.
	for i, p := range b.protos {
		if len(p.params) == 0 {
			continue
		}
		listOff := w.pos()
		w.putUint32At(protoIDsOff+uint32(i)*12+8, listOff)
		w.putUint32(uint32(len(p.params)))
		for _, param := range p.params {
			w.putUint16(uint16(typeIndex[param]))
		}
	}

	// class interface type-lists.
	interfaceListOff := make([]uint32, len(b.classes))
	for i, c := range b.classes {
		if len(c.interfaces) == 0 {
			continue
		}
		interfaceListOff[i] = w.pos()
		w.putUint32(uint32(len(c.interfaces)))
		for _, iface := range c.interfaces {
			w.putUint16(uint16(typeIndex[iface]))
		}
	}

	// class_data streams.
	classDataOff := make([]uint32, len(b.classes))
	for i, c := range b.classes {
		if len(c.staticFields) == 0 && len(c.instFields) == 0 &&
			len(c.directMeths) == 0 && len(c.virtualMeths) == 0 {
			continue
		}
		classDataOff[i] = w.pos()
		w.putULEB128(uint32(len(c.staticFields)))
		w.putULEB128(uint32(len(c.instFields)))
		w.putULEB128(uint32(len(c.directMeths)))
		w.putULEB128(uint32(len(c.virtualMeths)))

		w.putFieldEntries(c.staticFields)
		w.putFieldEntries(c.instFields)
		w.putMethodEntries(c.directMeths)
		w.putMethodEntries(c.virtualMeths)
	}

	// patch class_def_items now that every offset is known.
	for i, c := range b.classes {
		off := classDefsOff + uint32(i)*32
		w.putUint32At(off, typeIndex[c.descriptor])
		w.putUint32At(off+4, 0) // access_flags, tests set via raw writer if needed
		if c.superclass != "" {
			w.putUint32At(off+8, typeIndex[c.superclass])
		} else {
			w.putUint32At(off+8, NoIndex)
		}
		w.putUint32At(off+12, interfaceListOff[i])
		if c.sourceFile != "" {
			w.putUint32At(off+16, b.internString(c.sourceFile))
		} else {
			w.putUint32At(off+16, NoIndex)
		}
		w.putUint32At(off+20, 0) // annotations_off
		w.putUint32At(off+24, classDataOff[i])
		w.putUint32At(off+28, 0) // static_values_off
	}

	mapOff := w.pos()
	entries := []MapItem{{Type: TypeHeaderItem, Size: 1, Offset: headerOff}}
	if len(b.strings) > 0 {
		entries = append(entries, MapItem{Type: TypeStringIDItem, Size: uint32(len(b.strings)), Offset: stringIDsOff})
	}
	if len(b.types) > 0 {
		entries = append(entries, MapItem{Type: TypeTypeIDItem, Size: uint32(len(b.types)), Offset: typeIDsOff})
	}
	if len(b.protos) > 0 {
		entries = append(entries, MapItem{Type: TypeProtoIDItem, Size: uint32(len(b.protos)), Offset: protoIDsOff})
	}
	if len(b.fields) > 0 {
		entries = append(entries, MapItem{Type: TypeFieldIDItem, Size: uint32(len(b.fields)), Offset: fieldIDsOff})
	}
	if len(b.methods) > 0 {
		entries = append(entries, MapItem{Type: TypeMethodIDItem, Size: uint32(len(b.methods)), Offset: methodIDsOff})
	}
	if len(b.classes) > 0 {
		entries = append(entries, MapItem{Type: TypeClassDefItem, Size: uint32(len(b.classes)), Offset: classDefsOff})
	}
	w.putUint32(uint32(len(entries)))
	for _, e := range entries {
		w.putUint16(e.Type)
		w.putUint16(0)
		w.putUint32(e.Size)
		w.putUint32(e.Offset)
	}

	// header, written last since it needs every offset above.
	copy(w.buf[0:8], []byte("dex\n035\x00"))
	w.putUint32At(32, uint32(len(w.buf))) // file_size
	w.putUint32At(36, DexHeaderSize)      // header_size
	w.putUint32At(40, 0x12345678)         // endian_tag
	w.putUint32At(52, mapOff)
	w.putUint32At(56, uint32(len(b.strings)))
	w.putUint32At(60, nz(stringIDsOff, len(b.strings)))
	w.putUint32At(64, uint32(len(b.types)))
	w.putUint32At(68, nz(typeIDsOff, len(b.types)))
	w.putUint32At(72, uint32(len(b.protos)))
	w.putUint32At(76, nz(protoIDsOff, len(b.protos)))
	w.putUint32At(80, uint32(len(b.fields)))
	w.putUint32At(84, nz(fieldIDsOff, len(b.fields)))
	w.putUint32At(88, uint32(len(b.methods)))
	w.putUint32At(92, nz(methodIDsOff, len(b.methods)))
	w.putUint32At(96, uint32(len(b.classes)))
	w.putUint32At(100, nz(classDefsOff, len(b.classes)))

	return w.buf
}

// nz returns off when count > 0, else 0 -- an absent pool must record
// offset 0 per §4.3.
func nz(off uint32, count int) uint32 {
	if count == 0 {
		return 0
	}
	return off
}

// dexWriter is an append-only byte buffer with little-endian helpers and
// random-access patching, used only by dexBuilder.
type dexWriter struct{ buf []byte }

func (w *dexWriter) pos() uint32  { return uint32(len(w.buf)) }
func (w *dexWriter) len32() int   { return len(w.buf) }
func (w *dexWriter) grow(n int)   { w.buf = append(w.buf, make([]byte, n)...) }

func (w *dexWriter) putUint16(v uint16) {
	w.buf = append(w.buf, byte(v), byte(v>>8))
}

func (w *dexWriter) putUint32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (w *dexWriter) putUint16At(off uint32, v uint16) {
	w.buf[off] = byte(v)
	w.buf[off+1] = byte(v >> 8)
}

func (w *dexWriter) putUint32At(off uint32, v uint32) {
	w.buf[off] = byte(v)
	w.buf[off+1] = byte(v >> 8)
	w.buf[off+2] = byte(v >> 16)
	w.buf[off+3] = byte(v >> 24)
}

func (w *dexWriter) putULEB128(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			w.buf = append(w.buf, b|0x80)
		} else {
			w.buf = append(w.buf, b)
			return
		}
	}
}

// putMUTF8 encodes s using the Modified UTF-8 convention (only ASCII and
// NUL are exercised by current tests; NUL still requires the two-byte
// encoding DEX mandates).
func (w *dexWriter) putMUTF8(s string) {
	for _, r := range s {
		if r == 0 {
			w.buf = append(w.buf, 0xC0, 0x80)
			continue
		}
		var tmp [4]byte
		n := encodeRuneASCIIOrUTF8(tmp[:], r)
		w.buf = append(w.buf, tmp[:n]...)
	}
}

func encodeRuneASCIIOrUTF8(buf []byte, r rune) int {
	if r < 0x80 {
		buf[0] = byte(r)
		return 1
	}
	if r < 0x800 {
		buf[0] = byte(0xC0 | (r >> 6))
		buf[1] = byte(0x80 | (r & 0x3F))
		return 2
	}
	buf[0] = byte(0xE0 | (r >> 12))
	buf[1] = byte(0x80 | ((r >> 6) & 0x3F))
	buf[2] = byte(0x80 | (r & 0x3F))
	return 3
}

func (w *dexWriter) putFieldEntries(indices []int) {
	var running uint32
	for _, idx := range indices {
		delta := uint32(idx) - running
		running = uint32(idx)
		w.putULEB128(delta)
		w.putULEB128(0) // access_flags
	}
}

func (w *dexWriter) putMethodEntries(indices []int) {
	var running uint32
	for _, idx := range indices {
		delta := uint32(idx) - running
		running = uint32(idx)
		w.putULEB128(delta)
		w.putULEB128(0) // access_flags
		w.putULEB128(0) // code_off
	}
}
