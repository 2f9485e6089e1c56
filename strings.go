// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

// String is an immutable byte sequence decoded from Modified UTF-8,
// indexed by its position in the string pool.
type String struct {
	Value         []byte
	OriginalIndex uint32
}

// String returns the decoded content as a Go string.
func (s *String) String() string { return string(s.Value) }

// parseStrings is pass 1 of §2's pool parsing: an array of 32-bit offsets
// into string_data_item records (uleb128 code-point count + that many
// Modified UTF-8 code points). count == 0 or off == 0 leaves the pool
// empty without error (§4.3).
func (f *File) parseStrings() {
	loc := f.Header.stringIDs()
	if loc.size == 0 || loc.off == 0 {
		return
	}
	bs := f.stream

	f.Strings = make([]*String, 0, loc.size)
	for i := uint32(0); i < loc.size; i++ {
		idOff := loc.off + i*4
		dataOff, err := bs.peekUint32(idOff)
		if err != nil {
			f.logger.Warnf("dex: string_id[%d] unreadable, stopping string pool", i)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			break
		}

		codePoints, err := bs.peekULEB128At(dataOff)
		if err != nil {
			f.logger.Warnf("dex: string[%d] bad uleb128 length at offset 0x%x", i, dataOff)
			f.Anomalies = append(f.Anomalies, anoBadVarint)
			f.Strings = append(f.Strings, &String{OriginalIndex: i})
			continue
		}

		saved := bs.pos()
		bs.setpos(codePoints.next)
		value, err := bs.readMUTF8(codePoints.value)
		if err != nil {
			f.logger.Warnf("dex: string[%d] bad modified-utf8 at offset 0x%x", i, dataOff)
			f.Anomalies = append(f.Anomalies, anoBadMUTF8)
			value = []byte("�")
		}
		bs.setpos(saved)

		f.Strings = append(f.Strings, &String{Value: value, OriginalIndex: i})
	}

	f.logger.Debugf("dex: parsed %d strings", len(f.Strings))
}

// stringAt returns the string at idx, or (nil, false) if idx is out of the
// pool's current size -- the IndexOutOfPool check every pool parser runs
// before dereferencing an index field (§4.3).
func (f *File) stringAt(idx uint32) (*String, bool) {
	if idx >= uint32(len(f.Strings)) {
		return nil, false
	}
	return f.Strings[idx], true
}
