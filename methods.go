// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

const methodIDItemSize = 2 + 2 + 4 // class_idx, proto_idx, name_idx

// Method is a single method_id_item joined with the access flags, bytecode
// and owning class recorded against it by a class_data_item (§4.4). A
// Method never claimed by any class_data_item is marked External by the
// Resolver, which sets Parent to the class named by its declaring
// descriptor, creating an external class if none exists (§4.5).
type Method struct {
	Name      string
	Prototype *Prototype

	declaringDescriptor string

	Parent        *Class
	AccessFlags   uint32
	IsVirtual     bool
	IsConstructor bool
	Bytecode      []byte
	External      bool
	OriginalIndex uint32
}

// parseMethods is pass 3c: each record is
// (class_idx:u16, proto_idx:u16, name_idx:u32). Corruption uses
// continue-with-placeholder for the same original_index-preservation
// reason as parseFields (§8, §4.3).
func (f *File) parseMethods() {
	loc := f.Header.methodIDs()
	if loc.size == 0 || loc.off == 0 {
		return
	}
	bs := f.stream

	f.Methods = make([]*Method, 0, loc.size)
	f.classMethodMap = make(map[string][]*Method)

	for i := uint32(0); i < loc.size; i++ {
		recOff := loc.off + i*methodIDItemSize
		classIdx, err1 := bs.peekUint16(recOff)
		protoIdx, err2 := bs.peekUint16(recOff + 2)
		nameIdx, err3 := bs.peekUint32(recOff + 4)
		if err1 != nil || err2 != nil || err3 != nil {
			f.logger.Warnf("dex: method_id[%d] unreadable, stopping method pool", i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			break
		}

		classType, ok := f.typeAt(uint32(classIdx))
		if !ok {
			f.logger.Warnf("dex: method_id[%d] class_idx %d out of type pool bounds", i, classIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			f.Methods = append(f.Methods, &Method{OriginalIndex: i})
			continue
		}

		proto, ok := f.prototypeAt(uint32(protoIdx))
		if !ok {
			f.logger.Warnf("dex: method_id[%d] proto_idx %d out of prototype pool bounds", i, protoIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			f.Methods = append(f.Methods, &Method{OriginalIndex: i})
			continue
		}

		nameStr, ok := f.stringAt(nameIdx)
		if !ok {
			f.logger.Warnf("dex: method_id[%d] name_idx %d out of string pool bounds", i, nameIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			f.Methods = append(f.Methods, &Method{OriginalIndex: i})
			continue
		}

		name := nameStr.String()
		declaringDescriptor := classType.declaringClassDescriptor()
		mth := &Method{
			Name:                name,
			Prototype:           proto,
			declaringDescriptor: declaringDescriptor,
			IsConstructor:       name == "<init>" || name == "<clinit>",
			OriginalIndex:       i,
		}
		f.Methods = append(f.Methods, mth)
		f.classMethodMap[declaringDescriptor] = append(f.classMethodMap[declaringDescriptor], mth)
	}

	f.logger.Debugf("dex: parsed %d methods", len(f.Methods))
}

// methodAt returns the method at idx, or (nil, false) when out of bounds.
func (f *File) methodAt(idx uint32) (*Method, bool) {
	if idx >= uint32(len(f.Methods)) {
		return nil, false
	}
	return f.Methods[idx], true
}
