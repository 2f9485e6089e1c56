// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

// Map item type tags, as declared in the Android dex_file.h map_list
// section. Only the tags this parser cross-checks against the header are
// named; the rest (annotations, debug info, ...) are accepted but unused.
const (
	TypeHeaderItem       = 0x0000
	TypeStringIDItem     = 0x0001
	TypeTypeIDItem       = 0x0002
	TypeProtoIDItem      = 0x0003
	TypeFieldIDItem      = 0x0004
	TypeMethodIDItem     = 0x0005
	TypeClassDefItem     = 0x0006
	TypeCallSiteIDItem   = 0x0007
	TypeMethodHandleItem = 0x0008
	TypeMapList          = 0x1000
	TypeTypeList         = 0x1001
	TypeClassDataItem    = 0x2000
	TypeCodeItem         = 0x2001
	TypeStringDataItem   = 0x2002
)

// MapItem is one directory entry: where a section lives and how many
// records it has.
type MapItem struct {
	Type   uint16
	Size   uint32
	Offset uint32
}

// MapList is the directory of section locations, keyed by type tag. It is
// advisory: the header's own pool locations always win on disagreement
// (§4.2).
type MapList struct {
	Items map[uint16]MapItem
}

const mapItemSize = 2 + 2 + 4 + 4 // type, unused, size, offset

// parseMapList decodes the map at Header.MapOff: a 32-bit count followed
// by that many fixed records. A map that cannot be read at all is not
// fatal -- the header's pool locations are authoritative on their own, the
// map is purely a cross-check -- so failures here are logged and leave
// f.Map with whatever was parsed so far (possibly empty).
func (f *File) parseMapList() {
	bs := f.stream
	off := f.Header.MapOff
	f.Map = MapList{Items: map[uint16]MapItem{}}

	if off == 0 {
		return
	}

	count, err := bs.peekUint32(off)
	if err != nil {
		f.logger.Warnf("dex: map list count unreadable at offset 0x%x", off)
		f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
		return
	}

	cur := off + 4
	for i := uint32(0); i < count; i++ {
		buf, err := bs.peekBytes(cur, mapItemSize)
		if err != nil {
			f.logger.Warnf("dex: map list truncated after %d/%d entries", i, count)
			f.Anomalies = append(f.Anomalies, anoTruncatedRecord)
			break
		}
		item := MapItem{
			Type:   uint16(buf[0]) | uint16(buf[1])<<8,
			Size:   uint32(buf[4]) | uint32(buf[5])<<8 | uint32(buf[6])<<16 | uint32(buf[7])<<24,
			Offset: uint32(buf[8]) | uint32(buf[9])<<8 | uint32(buf[10])<<16 | uint32(buf[11])<<24,
		}
		f.Map.Items[item.Type] = item
		cur += mapItemSize
	}

	f.reconcileMapWithHeader()
}

// reconcileMapWithHeader implements the InconsistentMap policy (§7): when
// the map disagrees with the header about where a pool lives, warn and
// keep using the header's values -- the map is never allowed to override
// the header.
func (f *File) reconcileMapWithHeader() {
	checks := []struct {
		tag uint16
		loc poolLocation
	}{
		{TypeStringIDItem, f.Header.stringIDs()},
		{TypeTypeIDItem, f.Header.typeIDs()},
		{TypeProtoIDItem, f.Header.protoIDs()},
		{TypeFieldIDItem, f.Header.fieldIDs()},
		{TypeMethodIDItem, f.Header.methodIDs()},
		{TypeClassDefItem, f.Header.classDefs()},
	}
	for _, c := range checks {
		item, ok := f.Map.Items[c.tag]
		if !ok {
			continue
		}
		if item.Offset != c.loc.off || item.Size != c.loc.size {
			f.logger.Warnf("dex: map list disagrees with header for tag 0x%x "+
				"(map off=0x%x size=%d, header off=0x%x size=%d), using header",
				c.tag, item.Offset, item.Size, c.loc.off, c.loc.size)
			if !stringInSlice(anoMapDisagreesWithHeader, f.Anomalies) {
				f.Anomalies = append(f.Anomalies, anoMapDisagreesWithHeader)
			}
		}
	}
}

func stringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}
