// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

import "bytes"

// DexHeaderSize is the fixed, version-independent size of the DEX header.
const DexHeaderSize = 0x70

// NoIndex is the sentinel denoting an absent optional index, used for
// superclass_idx, source_file_idx and the like.
const NoIndex = 0xFFFFFFFF

// Supported DEX format versions. Per the design notes, the four declared
// versions differ only in feature gating the visible parser never touches,
// so a single Header struct layout serves all of them; Header.Version exists
// only to record which one a given file declared, not to branch parsing.
const (
	Version035 = "035"
	Version037 = "037"
	Version038 = "038"
	Version039 = "039"
)

var dexMagicPrefix = []byte("dex\n")

// Header is the fixed-layout DEX header occupying offset 0.
type Header struct {
	Magic         [8]byte
	Checksum      uint32
	Signature     [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIDsSize uint32
	StringIDsOff  uint32
	TypeIDsSize   uint32
	TypeIDsOff    uint32
	ProtoIDsSize  uint32
	ProtoIDsOff   uint32
	FieldIDsSize  uint32
	FieldIDsOff   uint32
	MethodIDsSize uint32
	MethodIDsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32

	// Version is the 3-digit string decoded from the magic's trailer
	// (e.g. "035"). Not a DEX wire field on its own -- it is carried
	// inside Magic -- but surfaced here for callers.
	Version string
}

// poolLocation is the common (count, offset) shape every _ids table in the
// header exposes.
type poolLocation struct {
	size uint32
	off  uint32
}

func (h Header) stringIDs() poolLocation  { return poolLocation{h.StringIDsSize, h.StringIDsOff} }
func (h Header) typeIDs() poolLocation    { return poolLocation{h.TypeIDsSize, h.TypeIDsOff} }
func (h Header) protoIDs() poolLocation   { return poolLocation{h.ProtoIDsSize, h.ProtoIDsOff} }
func (h Header) fieldIDs() poolLocation   { return poolLocation{h.FieldIDsSize, h.FieldIDsOff} }
func (h Header) methodIDs() poolLocation  { return poolLocation{h.MethodIDsSize, h.MethodIDsOff} }
func (h Header) classDefs() poolLocation  { return poolLocation{h.ClassDefsSize, h.ClassDefsOff} }

// parseHeader decodes the fixed header at offset 0. It is the one pool
// parser allowed to return a hard error: a header too short to contain the
// pool locations is ErrBadHeader (§7), and an unreadable magic/version is
// ErrBadHeader as well. Everything after the header is recoverable.
func (f *File) parseHeader() error {
	bs := f.stream

	if !bs.canRead(0, DexHeaderSize) {
		return ErrBadHeader
	}

	var h Header
	magic, err := bs.peekBytes(0, 8)
	if err != nil {
		return ErrBadHeader
	}
	copy(h.Magic[:], magic)

	if !bytes.HasPrefix(h.Magic[:], dexMagicPrefix) || h.Magic[7] != 0x00 {
		return ErrBadHeader
	}
	version := string(h.Magic[4:7])
	switch version {
	case Version035, Version037, Version038, Version039:
		h.Version = version
	default:
		return ErrBadHeader
	}

	h.Checksum, _ = bs.peekUint32(8)
	sig, _ := bs.peekBytes(12, 20)
	copy(h.Signature[:], sig)

	h.FileSize, _ = bs.peekUint32(32)
	h.HeaderSize, _ = bs.peekUint32(36)
	h.EndianTag, _ = bs.peekUint32(40)
	h.LinkSize, _ = bs.peekUint32(44)
	h.LinkOff, _ = bs.peekUint32(48)
	h.MapOff, _ = bs.peekUint32(52)
	h.StringIDsSize, _ = bs.peekUint32(56)
	h.StringIDsOff, _ = bs.peekUint32(60)
	h.TypeIDsSize, _ = bs.peekUint32(64)
	h.TypeIDsOff, _ = bs.peekUint32(68)
	h.ProtoIDsSize, _ = bs.peekUint32(72)
	h.ProtoIDsOff, _ = bs.peekUint32(76)
	h.FieldIDsSize, _ = bs.peekUint32(80)
	h.FieldIDsOff, _ = bs.peekUint32(84)
	h.MethodIDsSize, _ = bs.peekUint32(88)
	h.MethodIDsOff, _ = bs.peekUint32(92)
	h.ClassDefsSize, _ = bs.peekUint32(96)
	h.ClassDefsOff, _ = bs.peekUint32(100)
	h.DataSize, _ = bs.peekUint32(104)
	h.DataOff, _ = bs.peekUint32(108)

	// A pool offset pointing past the end of the file outright (as
	// opposed to an individual record being corrupt) indicates the
	// header itself is not trustworthy: §7 classifies this as BadHeader,
	// not as a per-pool recoverable condition.
	for _, loc := range []poolLocation{
		h.stringIDs(), h.typeIDs(), h.protoIDs(),
		h.fieldIDs(), h.methodIDs(), h.classDefs(),
	} {
		if loc.size > 0 && loc.off >= bs.len() {
			return ErrBadHeader
		}
	}

	f.Header = h
	return nil
}
