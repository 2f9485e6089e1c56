// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

// Access flag bits shared by classes, fields and methods (Android
// dex_file.h access_flags). Only the bits this parser inspects are named.
const (
	AccPublic       = 0x1
	AccPrivate      = 0x2
	AccProtected    = 0x4
	AccStatic       = 0x8
	AccFinal        = 0x10
	AccSynchronized = 0x20
	AccVolatile     = 0x40
	AccBridge       = 0x40
	AccTransient    = 0x80
	AccVarargs      = 0x80
	AccNative       = 0x100
	AccInterface    = 0x200
	AccAbstract     = 0x400
	AccStrict       = 0x800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
	AccConstructor  = 0x10000
)

const classDefItemSize = 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4

// Class is a fully or partially resolved DEX class: a descriptor, its
// declared fields and methods in class-data order, and (once the Resolver
// runs) a superclass back-reference. A Class that was only ever referenced
// -- never locally defined by a class_def_item -- is marked External; its
// only fields and methods are the pool entries declared against it that
// the Resolver relocates onto it (§4.5).
type Class struct {
	Descriptor  string
	AccessFlags uint32
	Superclass  *Class
	SourceFile  string
	Interfaces  []string
	Fields      []*Field
	Methods     []*Method

	AnnotationsOff  uint32
	StaticValuesOff uint32

	External      bool
	OriginalIndex uint32

	// pendingSuperDescriptor records the superclass descriptor as read
	// from the class_def_item. resolveInheritance does not read it: it
	// drains f.inheritance, which is keyed by the same descriptor.
	pendingSuperDescriptor string
}

// parseClassDefs decodes the class_def_item pool: each record is
// (class_idx, access_flags, superclass_idx, interfaces_off,
// source_file_idx, annotations_off, class_data_off, static_values_off),
// all u32 (§4.4). A truncated record table stops the pool (TruncatedRecord,
// §7); a class_idx that cannot be resolved to a type is independently
// addressable by the outer class_def loop, so it is skipped with continue.
func (f *File) parseClassDefs() {
	loc := f.Header.classDefs()
	if loc.size == 0 || loc.off == 0 {
		return
	}
	bs := f.stream
	f.Classes = make(map[string]*Class, loc.size)

	for i := uint32(0); i < loc.size; i++ {
		recOff := loc.off + i*classDefItemSize
		buf, err := bs.peekBytes(recOff, classDefItemSize)
		if err != nil {
			f.logger.Warnf("dex: class_def[%d] unreadable, stopping class pool", i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			break
		}
		classIdx := leField(buf, 0)
		accessFlags := leField(buf, 4)
		superclassIdx := leField(buf, 8)
		interfacesOff := leField(buf, 12)
		sourceFileIdx := leField(buf, 16)
		annotationsOff := leField(buf, 20)
		classDataOff := leField(buf, 24)
		staticValuesOff := leField(buf, 28)

		classType, ok := f.typeAt(classIdx)
		if !ok {
			f.logger.Warnf("dex: class_def[%d] class_idx %d out of type pool bounds", i, classIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			continue
		}

		cls := &Class{
			Descriptor:      classType.Descriptor,
			AccessFlags:     accessFlags,
			AnnotationsOff:  annotationsOff,
			StaticValuesOff: staticValuesOff,
			OriginalIndex:   i,
		}

		// step 2: optional superclass.
		if superclassIdx != NoIndex {
			if superType, ok := f.typeAt(superclassIdx); ok {
				cls.pendingSuperDescriptor = superType.Descriptor
				if existing, ok := f.Classes[superType.Descriptor]; ok {
					cls.Superclass = existing
				} else {
					f.inheritance[superType.Descriptor] = append(f.inheritance[superType.Descriptor], cls)
				}
			} else {
				f.logger.Warnf("dex: class_def[%d] superclass_idx %d out of type pool bounds", i, superclassIdx)
				f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			}
		}

		// step 3: optional source filename.
		if sourceFileIdx != NoIndex {
			if str, ok := f.stringAt(sourceFileIdx); ok {
				cls.SourceFile = str.String()
			} else {
				f.logger.Warnf("dex: class_def[%d] source_file_idx %d out of string pool bounds", i, sourceFileIdx)
				f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			}
		}

		// step 4: optional interface list, decoded with the same
		// (count:u32, type_idx:u16...) shape a prototype's parameters use.
		if interfacesOff > 0 {
			indices, err := f.decodeTypeList(interfacesOff)
			if err != nil {
				f.logger.Warnf("dex: class_def[%d] interfaces_off 0x%x truncated", i, interfacesOff)
				f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			}
			for _, typeIdx := range indices {
				t, ok := f.typeAt(uint32(typeIdx))
				if !ok {
					f.logger.Warnf("dex: class_def[%d] interface type_idx %d out of bounds, skipped",
						i, typeIdx)
					f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
					continue
				}
				cls.Interfaces = append(cls.Interfaces, t.Descriptor)
			}
		}

		// step 4 (register): DuplicateClass is last-writer-wins (§7).
		if _, dup := f.Classes[cls.Descriptor]; dup {
			f.logger.Warnf("dex: class_def[%d] duplicate descriptor %q, replacing earlier definition",
				i, cls.Descriptor)
			f.Anomalies = append(f.Anomalies, anoDuplicateClass)
		}
		f.Classes[cls.Descriptor] = cls

		// step 5: class-data stream.
		if classDataOff > 0 {
			f.parseClassData(cls, classDataOff)
		}
	}

	f.logger.Debugf("dex: parsed %d classes", len(f.Classes))
}

func leField(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}
