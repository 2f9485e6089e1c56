// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

const fieldIDItemSize = 2 + 2 + 4 // class_idx, type_idx, name_idx

// Field is a single field_id_item joined with the access flags and owning
// class recorded against it by a class_data_item (§4.4). A Field that is
// never claimed by any class_data_item is marked External by the Resolver,
// which sets Parent to the class named by its declaring descriptor,
// creating an external class if none exists (§4.5).
type Field struct {
	Name string
	Type *Type

	// declaringDescriptor is the raw class_idx's descriptor, recorded at
	// parse time before any class has necessarily been parsed. The
	// Resolver uses it to attach Parent once the class map is complete.
	declaringDescriptor string

	Parent        *Class
	AccessFlags   uint32
	IsStatic      bool
	External      bool
	OriginalIndex uint32
}

// parseFields is pass 3b: each record is
// (class_idx:u16, type_idx:u16, name_idx:u32). A field whose class_idx or
// type_idx or name_idx is out of bounds is independently addressable by
// the rest of the pool and, critically, other records' original_index
// values are meaningful only if this record still occupies its position
// (§8's class-data delta-index invariant) -- so corruption here uses
// continue-with-placeholder rather than break (§4.3).
func (f *File) parseFields() {
	loc := f.Header.fieldIDs()
	if loc.size == 0 || loc.off == 0 {
		return
	}
	bs := f.stream

	f.Fields = make([]*Field, 0, loc.size)
	f.classFieldMap = make(map[string][]*Field)

	for i := uint32(0); i < loc.size; i++ {
		recOff := loc.off + i*fieldIDItemSize
		classIdx, err1 := bs.peekUint16(recOff)
		typeIdx, err2 := bs.peekUint16(recOff + 2)
		nameIdx, err3 := bs.peekUint32(recOff + 4)
		if err1 != nil || err2 != nil || err3 != nil {
			f.logger.Warnf("dex: field_id[%d] unreadable, stopping field pool", i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			break
		}

		classType, ok := f.typeAt(uint32(classIdx))
		if !ok {
			f.logger.Warnf("dex: field_id[%d] class_idx %d out of type pool bounds", i, classIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			f.Fields = append(f.Fields, &Field{OriginalIndex: i})
			continue
		}

		fieldType, ok := f.typeAt(uint32(typeIdx))
		if !ok {
			f.logger.Warnf("dex: field_id[%d] type_idx %d out of type pool bounds", i, typeIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			f.Fields = append(f.Fields, &Field{OriginalIndex: i})
			continue
		}

		nameStr, ok := f.stringAt(nameIdx)
		if !ok {
			f.logger.Warnf("dex: field_id[%d] name_idx %d out of string pool bounds", i, nameIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			f.Fields = append(f.Fields, &Field{OriginalIndex: i})
			continue
		}

		declaringDescriptor := classType.declaringClassDescriptor()
		fld := &Field{
			Name:                nameStr.String(),
			Type:                fieldType,
			declaringDescriptor: declaringDescriptor,
			OriginalIndex:       i,
		}
		f.Fields = append(f.Fields, fld)
		f.classFieldMap[declaringDescriptor] = append(f.classFieldMap[declaringDescriptor], fld)
	}

	f.logger.Debugf("dex: parsed %d fields", len(f.Fields))
}

// fieldAt returns the field at idx, or (nil, false) when out of bounds.
func (f *File) fieldAt(idx uint32) (*Field, bool) {
	if idx >= uint32(len(f.Fields)) {
		return nil, false
	}
	return f.Fields[idx], true
}
