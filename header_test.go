// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dex

import "testing"

// TestParseHeaderEmptyValidDex is scenario 1 of §8: a header with every
// pool count at 0 and a MapList containing only a HEADER entry must parse
// to an empty File with no warnings.
func TestParseHeaderEmptyValidDex(t *testing.T) {
	b := newDexBuilder()
	data := b.build()

	file, err := ParseBytes(data, nil)
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if err := file.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if file.Header.Version != Version035 {
		t.Fatalf("Header.Version = %q, want %q", file.Header.Version, Version035)
	}
	if len(file.Strings) != 0 {
		t.Fatalf("len(Strings) = %d, want 0", len(file.Strings))
	}
	if len(file.Types) != 0 {
		t.Fatalf("len(Types) = %d, want 0", len(file.Types))
	}
	if len(file.Prototypes) != 0 {
		t.Fatalf("len(Prototypes) = %d, want 0", len(file.Prototypes))
	}
	if len(file.Fields) != 0 {
		t.Fatalf("len(Fields) = %d, want 0", len(file.Fields))
	}
	if len(file.Methods) != 0 {
		t.Fatalf("len(Methods) = %d, want 0", len(file.Methods))
	}
	if len(file.Classes) != 0 {
		t.Fatalf("len(Classes) = %d, want 0", len(file.Classes))
	}
	if len(file.Anomalies) != 0 {
		t.Fatalf("Anomalies = %v, want none", file.Anomalies)
	}
	if len(file.Map.Items) != 1 {
		t.Fatalf("len(Map.Items) = %d, want 1 (HEADER only)", len(file.Map.Items))
	}
	if _, ok := file.Map.Items[TypeHeaderItem]; !ok {
		t.Fatalf("Map.Items missing TypeHeaderItem entry")
	}
}

func TestParseHeaderBadMagicFails(t *testing.T) {
	b := newDexBuilder()
	data := b.build()
	data[0] = 'X' // corrupt "dex\n" prefix

	file, err := ParseBytes(data, nil)
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if err := file.Parse(); err != ErrBadHeader {
		t.Fatalf("Parse() error = %v, want ErrBadHeader", err)
	}
}

func TestParseHeaderUnknownVersionFails(t *testing.T) {
	b := newDexBuilder()
	data := b.build()
	copy(data[4:7], []byte("099"))

	file, err := ParseBytes(data, nil)
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if err := file.Parse(); err != ErrBadHeader {
		t.Fatalf("Parse() error = %v, want ErrBadHeader", err)
	}
}

func TestParseHeaderTooShortFails(t *testing.T) {
	file, err := ParseBytes(make([]byte, 16), nil)
	if err != nil {
		t.Fatalf("ParseBytes() error = %v", err)
	}
	if err := file.Parse(); err != ErrBadHeader {
		t.Fatalf("Parse() error = %v, want ErrBadHeader", err)
	}
}
