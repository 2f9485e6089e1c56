// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

// codeItemHeaderSize is registers_size, ins_size, outs_size, tries_size
// (u16 each), debug_info_off, insns_size (u32 each) -- 16 bytes before the
// insns array begins.
const codeItemHeaderSize = 2 + 2 + 2 + 2 + 4 + 4

// parseClassData decodes the class-data stream for cls at off and attaches
// its declared fields and methods (§4.4). All four leading counts and
// every per-entry field are ULEB128; the four index sequences are
// delta-encoded, each restarting its running accumulator at 0.
func (f *File) parseClassData(cls *Class, off uint32) {
	bs := f.stream
	saved := bs.pos()
	defer bs.setpos(saved)
	bs.setpos(off)

	staticFieldsSize, err := bs.readULEB128()
	if err != nil {
		f.logger.Warnf("dex: class %q class_data truncated reading static_fields_size", cls.Descriptor)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}
	instanceFieldsSize, err := bs.readULEB128()
	if err != nil {
		f.logger.Warnf("dex: class %q class_data truncated reading instance_fields_size", cls.Descriptor)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}
	directMethodsSize, err := bs.readULEB128()
	if err != nil {
		f.logger.Warnf("dex: class %q class_data truncated reading direct_methods_size", cls.Descriptor)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}
	virtualMethodsSize, err := bs.readULEB128()
	if err != nil {
		f.logger.Warnf("dex: class %q class_data truncated reading virtual_methods_size", cls.Descriptor)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}

	total := uint64(staticFieldsSize) + uint64(instanceFieldsSize) +
		uint64(directMethodsSize) + uint64(virtualMethodsSize)
	if f.opts != nil && f.opts.MaxClassDataSize > 0 && total > uint64(f.opts.MaxClassDataSize) {
		f.logger.Warnf("dex: class %q declares %d field+method entries, exceeding MaxClassDataSize %d, skipping class_data",
			cls.Descriptor, total, f.opts.MaxClassDataSize)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}

	f.parseFieldEntries(cls, staticFieldsSize, true)
	f.parseFieldEntries(cls, instanceFieldsSize, false)
	f.parseMethodEntries(cls, directMethodsSize, false)
	f.parseMethodEntries(cls, virtualMethodsSize, true)
}

// parseFieldEntries decodes one of the two field sequences in a class-data
// stream: count entries of (delta_field_idx, access_flags), running index
// restarting at 0 for this sequence.
func (f *File) parseFieldEntries(cls *Class, count uint32, static bool) {
	bs := f.stream
	var runningIdx uint32
	for i := uint32(0); i < count; i++ {
		delta, err := bs.readULEB128()
		if err != nil {
			f.logger.Warnf("dex: class %q class_data truncated decoding field entry %d", cls.Descriptor, i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			return
		}
		accessFlags, err := bs.readULEB128()
		if err != nil {
			f.logger.Warnf("dex: class %q class_data truncated decoding field entry %d", cls.Descriptor, i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			return
		}
		runningIdx += delta

		fld, ok := f.fieldAt(runningIdx)
		if !ok {
			f.logger.Warnf("dex: class %q field entry %d resolves to out-of-bounds field_idx %d",
				cls.Descriptor, i, runningIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			continue
		}
		if fld.OriginalIndex != runningIdx {
			f.logger.Warnf("dex: class %q field entry %d: running index %d does not match "+
				"field original_index %d, ignoring entry", cls.Descriptor, i, runningIdx, fld.OriginalIndex)
			f.Anomalies = append(f.Anomalies, anoClassDataIndexMismatch)
			continue
		}

		fld.Parent = cls
		fld.IsStatic = static
		fld.AccessFlags = accessFlags
		cls.Fields = append(cls.Fields, fld)
		f.removeFieldFromPending(fld)
	}
}

// parseMethodEntries decodes one of the two method sequences in a
// class-data stream: count entries of
// (delta_method_idx, access_flags, code_off).
func (f *File) parseMethodEntries(cls *Class, count uint32, virtual bool) {
	bs := f.stream
	var runningIdx uint32
	for i := uint32(0); i < count; i++ {
		delta, err := bs.readULEB128()
		if err != nil {
			f.logger.Warnf("dex: class %q class_data truncated decoding method entry %d", cls.Descriptor, i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			return
		}
		accessFlags, err := bs.readULEB128()
		if err != nil {
			f.logger.Warnf("dex: class %q class_data truncated decoding method entry %d", cls.Descriptor, i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			return
		}
		codeOff, err := bs.readULEB128()
		if err != nil {
			f.logger.Warnf("dex: class %q class_data truncated decoding method entry %d", cls.Descriptor, i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			return
		}
		runningIdx += delta

		mth, ok := f.methodAt(runningIdx)
		if !ok {
			f.logger.Warnf("dex: class %q method entry %d resolves to out-of-bounds method_idx %d",
				cls.Descriptor, i, runningIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			continue
		}
		if mth.OriginalIndex != runningIdx {
			f.logger.Warnf("dex: class %q method entry %d: running index %d does not match "+
				"method original_index %d, ignoring entry", cls.Descriptor, i, runningIdx, mth.OriginalIndex)
			f.Anomalies = append(f.Anomalies, anoClassDataIndexMismatch)
			continue
		}

		mth.Parent = cls
		mth.IsVirtual = virtual
		mth.AccessFlags = accessFlags
		if mth.Name == "<init>" || mth.Name == "<clinit>" {
			mth.IsConstructor = true
			mth.AccessFlags |= AccConstructor
		}
		if codeOff > 0 {
			f.attachBytecode(mth, codeOff)
		}
		cls.Methods = append(cls.Methods, mth)
		f.removeMethodFromPending(mth)
	}
}

// attachBytecode peeks the code_item header at off and exposes the
// instruction stream -- insns_size*2 bytes immediately following the
// header -- as the Method's bytecode, without decoding it (§4.4).
func (f *File) attachBytecode(mth *Method, off uint32) {
	bs := f.stream
	insnsSize, err := bs.peekUint32(off + 12)
	if err != nil {
		f.logger.Warnf("dex: method %q code_item header unreadable at offset 0x%x", mth.Name, off)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}
	insnsOff := off + codeItemHeaderSize
	insns, err := bs.peekBytes(insnsOff, insnsSize*2)
	if err != nil {
		f.logger.Warnf("dex: method %q code_item instruction stream truncated at offset 0x%x",
			mth.Name, insnsOff)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}
	mth.Bytecode = insns
}

// removeFieldFromPending erases fld from class_field_map once it has been
// claimed by a class-data parse (§3, §8: the map must be empty after parse).
func (f *File) removeFieldFromPending(fld *Field) {
	pending := f.classFieldMap[fld.declaringDescriptor]
	for i, p := range pending {
		if p == fld {
			f.classFieldMap[fld.declaringDescriptor] = append(pending[:i], pending[i+1:]...)
			return
		}
	}
}

// removeMethodFromPending is the method-pool analogue of
// removeFieldFromPending.
func (f *File) removeMethodFromPending(mth *Method) {
	pending := f.classMethodMap[mth.declaringDescriptor]
	for i, p := range pending {
		if p == mth {
			f.classMethodMap[mth.declaringDescriptor] = append(pending[:i], pending[i+1:]...)
			return
		}
	}
}
