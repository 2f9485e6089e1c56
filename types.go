// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

import "strings"

// TypeKind classifies a Type descriptor by its first character (§3).
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindPrimitive
	KindClass
	KindArray
)

func (k TypeKind) String() string {
	switch k {
	case KindPrimitive:
		return "PRIMITIVE"
	case KindClass:
		return "CLASS"
	case KindArray:
		return "ARRAY"
	default:
		return "UNKNOWN"
	}
}

// primitiveDescriptors are the single-character type descriptors that
// denote a primitive type or void.
var primitiveDescriptors = map[byte]bool{
	'V': true, 'B': true, 'S': true, 'C': true,
	'I': true, 'J': true, 'F': true, 'D': true, 'Z': true,
}

// classifyDescriptor implements §3's Type classification rule.
func classifyDescriptor(descriptor string) TypeKind {
	if len(descriptor) == 0 {
		return KindUnknown
	}
	switch descriptor[0] {
	case '[':
		return KindArray
	case 'L':
		return KindClass
	default:
		if len(descriptor) == 1 && primitiveDescriptors[descriptor[0]] {
			return KindPrimitive
		}
		return KindUnknown
	}
}

// Type is a descriptor string classified into one of
// {PRIMITIVE, CLASS, ARRAY, UNKNOWN}.
type Type struct {
	Descriptor    string
	Kind          TypeKind
	Class         *Class // resolved by the Resolver for CLASS/array-of-CLASS
	OriginalIndex uint32
}

// ElementDescriptor recovers the underlying element type of an ARRAY type
// by stripping every leading '[' (§3: "[[LFoo;" -> "LFoo;").
func (t *Type) ElementDescriptor() string {
	return strings.TrimLeft(t.Descriptor, "[")
}

// IsClassOrArrayOfClass reports whether this Type should be resolved
// against the class map: either it is itself a class type, or it is an
// array whose element type is a class type.
func (t *Type) IsClassOrArrayOfClass() bool {
	if t.Kind == KindClass {
		return true
	}
	if t.Kind == KindArray {
		return classifyDescriptor(t.ElementDescriptor()) == KindClass
	}
	return false
}

// classDescriptorOf returns the class descriptor a Type resolves to for
// class-map lookups: itself if CLASS, its stripped element if
// array-of-CLASS, or "" otherwise.
func (t *Type) classDescriptorOf() string {
	switch t.Kind {
	case KindClass:
		return t.Descriptor
	case KindArray:
		elem := t.ElementDescriptor()
		if classifyDescriptor(elem) == KindClass {
			return elem
		}
	}
	return ""
}

// declaringClassDescriptor is classDescriptorOf with a fallback to the raw
// descriptor, used by the field/method pool parsers (§4.3) to key
// class_field_map/class_method_map: a well-formed class_idx is always CLASS
// or array-of-CLASS and classDescriptorOf already strips the leading '[',
// but a corrupted class_idx pointing at a primitive or array-of-primitive
// type still needs some stable key to file the pending Field/Method under.
func (t *Type) declaringClassDescriptor() string {
	if d := t.classDescriptorOf(); d != "" {
		return d
	}
	return t.Descriptor
}

// parseTypes is pass 2: each record is a 32-bit index into the string
// pool. Populates class_type_map as it goes (§4.3).
func (f *File) parseTypes() {
	loc := f.Header.typeIDs()
	if loc.size == 0 || loc.off == 0 {
		return
	}
	bs := f.stream

	f.Types = make([]*Type, 0, loc.size)
	f.classTypeMap = make(map[string][]*Type)

	for i := uint32(0); i < loc.size; i++ {
		recOff := loc.off + i*4
		strIdx, err := bs.peekUint32(recOff)
		if err != nil {
			f.logger.Warnf("dex: type_id[%d] unreadable, stopping type pool", i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			break
		}

		// A type record is fixed-width and deterministically addressable
		// by position, like prototypes (§4.3): a corrupt descriptor_idx
		// here is treated as a sign the type pool itself (or the string
		// pool it depends on) is unreliable from this point on, so the
		// remainder of the pool is abandoned rather than limped through.
		str, ok := f.stringAt(strIdx)
		if !ok {
			f.logger.Warnf("dex: type_id[%d] descriptor_idx %d out of string pool bounds", i, strIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			break
		}

		descriptor := str.String()
		t := &Type{
			Descriptor:    descriptor,
			Kind:          classifyDescriptor(descriptor),
			OriginalIndex: i,
		}
		f.Types = append(f.Types, t)

		if cd := t.classDescriptorOf(); cd != "" {
			f.classTypeMap[cd] = append(f.classTypeMap[cd], t)
		}
	}

	f.logger.Debugf("dex: parsed %d types", len(f.Types))
}

// typeAt returns the type at idx, or (nil, false) when out of bounds.
func (f *File) typeAt(idx uint32) (*Type, bool) {
	if idx >= uint32(len(f.Types)) {
		return nil, false
	}
	return f.Types[idx], true
}
