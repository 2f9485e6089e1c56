// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

const protoIDItemSize = 4 + 4 + 4 // shorty_idx, return_type_idx, parameters_off

// Prototype is a return Type plus an ordered sequence of parameter Types.
type Prototype struct {
	// Shorty is the compact single-character-per-parameter signature
	// string DEX stores alongside the full type list. The original spec
	// decodes and discards it; this module retains it (§9 Open Questions,
	// §12) since it costs nothing once the ULEB128/string machinery
	// already exists and downstream signature matching wants it.
	Shorty        string
	ReturnType    *Type
	Parameters    []*Type
	OriginalIndex uint32
}

// decodeTypeList decodes the shared (count:u32, type_idx:u16...) shape used
// both by a prototype's parameter list and by a class's interface list
// (§4.4 step 4). It seeks to off, reads the list, and restores the
// stream's cursor to whatever it was before the call, mirroring the
// "temporarily seeks... restores the cursor" contract in §4.3. A list that
// is truncated mid-way returns the entries decoded so far and a non-nil
// error. parsePrototypes discards such a partial list and uses an empty
// parameter list (Testable Property scenario 5); parseClassDefs keeps the
// interface entries that were readable.
func (f *File) decodeTypeList(off uint32) ([]uint16, error) {
	if off == 0 {
		return nil, nil
	}
	bs := f.stream
	saved := bs.pos()
	defer bs.setpos(saved)

	count, err := bs.peekUint32(off)
	if err != nil {
		return nil, err
	}

	indices := make([]uint16, 0, count)
	cur := off + 4
	for i := uint32(0); i < count; i++ {
		v, err := bs.peekUint16(cur)
		if err != nil {
			return indices, err
		}
		indices = append(indices, v)
		cur += 2
	}
	return indices, nil
}

// parsePrototypes is pass 3a: each record is
// (shorty_idx:u32, return_type_idx:u32, parameters_off:u32).
func (f *File) parsePrototypes() {
	loc := f.Header.protoIDs()
	if loc.size == 0 || loc.off == 0 {
		return
	}
	bs := f.stream

	f.Prototypes = make([]*Prototype, 0, loc.size)

	for i := uint32(0); i < loc.size; i++ {
		recOff := loc.off + i*protoIDItemSize
		shortyIdx, err1 := bs.peekUint32(recOff)
		returnTypeIdx, err2 := bs.peekUint32(recOff + 4)
		parametersOff, err3 := bs.peekUint32(recOff + 8)
		if err1 != nil || err2 != nil || err3 != nil {
			f.logger.Warnf("dex: proto_id[%d] unreadable, stopping prototype pool", i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			break
		}

		returnType, ok := f.typeAt(returnTypeIdx)
		if !ok {
			f.logger.Warnf("dex: proto_id[%d] return_type_idx %d out of type pool bounds", i, returnTypeIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			break
		}

		shorty := ""
		if shortyStr, ok := f.stringAt(shortyIdx); ok {
			shorty = shortyStr.String()
		} else {
			f.logger.Warnf("dex: proto_id[%d] shorty_idx %d out of string pool bounds", i, shortyIdx)
			f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
			break
		}

		var params []*Type
		if parametersOff > 0 {
			indices, err := f.decodeTypeList(parametersOff)
			if err != nil {
				f.logger.Warnf("dex: proto_id[%d] parameters_off 0x%x truncated, "+
					"using empty parameter list", i, parametersOff)
				f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
				indices = nil
			}
			for _, typeIdx := range indices {
				t, ok := f.typeAt(uint32(typeIdx))
				if !ok {
					f.logger.Warnf("dex: proto_id[%d] parameter type_idx %d out of bounds, skipped",
						i, typeIdx)
					f.Anomalies = append(f.Anomalies, anoIndexOutOfPool)
					continue
				}
				params = append(params, t)
			}
		}

		f.Prototypes = append(f.Prototypes, &Prototype{
			Shorty:        shorty,
			ReturnType:    returnType,
			Parameters:    params,
			OriginalIndex: i,
		})
	}

	f.logger.Debugf("dex: parsed %d prototypes", len(f.Prototypes))
}

// prototypeAt returns the prototype at idx, or (nil, false) when out of
// bounds.
func (f *File) prototypeAt(idx uint32) (*Prototype, bool) {
	if idx >= uint32(len(f.Prototypes)) {
		return nil, false
	}
	return f.Prototypes[idx], true
}
