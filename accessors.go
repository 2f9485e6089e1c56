// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

// Class looks up a locally-defined or external class by its full
// descriptor (e.g. "Ljava/lang/String;"), mirroring the teacher's
// getSectionByName lookup-by-key helper.
func (f *File) Class(descriptor string) (*Class, bool) {
	cls, ok := f.Classes[descriptor]
	return cls, ok
}

// StringAt returns the string at idx in the string pool, or (nil, false)
// if idx is out of bounds.
func (f *File) StringAt(idx uint32) (*String, bool) {
	return f.stringAt(idx)
}

// TypeAt returns the type at idx in the type pool, or (nil, false) if idx
// is out of bounds.
func (f *File) TypeAt(idx uint32) (*Type, bool) {
	return f.typeAt(idx)
}

// PrototypeAt returns the prototype at idx, or (nil, false) if idx is out
// of bounds.
func (f *File) PrototypeAt(idx uint32) (*Prototype, bool) {
	return f.prototypeAt(idx)
}

// FieldAt returns the field at idx, or (nil, false) if idx is out of
// bounds.
func (f *File) FieldAt(idx uint32) (*Field, bool) {
	return f.fieldAt(idx)
}

// MethodAt returns the method at idx, or (nil, false) if idx is out of
// bounds.
func (f *File) MethodAt(idx uint32) (*Method, bool) {
	return f.methodAt(idx)
}
