package storage

import (
	"testing"

	"github.com/FocuswithJustin/minilite/core/errors"
	"github.com/FocuswithJustin/minilite/core/vfs"
)

func newTestPage(t *testing.T, pgno uint32) *PageContent {
	t.Helper()
	return NewPageContent(PageOffset(pgno), vfs.NewBufferZeroed(DefaultPageSize))
}

func TestParsePageType(t *testing.T) {
	valid := []struct {
		b    byte
		want PageType
	}{
		{2, PageTypeIndexInterior},
		{5, PageTypeTableInterior},
		{10, PageTypeIndexLeaf},
		{13, PageTypeTableLeaf},
	}
	for _, tt := range valid {
		got, err := ParsePageType(tt.b)
		if err != nil || got != tt.want {
			t.Errorf("ParsePageType(%d) = (%v, %v), want (%v, nil)", tt.b, got, err, tt.want)
		}
	}

	for _, b := range []byte{0, 1, 3, 4, 6, 7, 8, 9, 11, 12, 14, 255} {
		if _, err := ParsePageType(b); err == nil {
			t.Errorf("ParsePageType(%d) succeeded", b)
		} else if !errors.IsCorrupt(err) {
			t.Errorf("ParsePageType(%d) error = %v, want corruption", b, err)
		}
	}
}

func TestPageTypeClassification(t *testing.T) {
	tests := []struct {
		typ        PageType
		interior   bool
		leaf       bool
		table      bool
		index      bool
		headerSize int
	}{
		{PageTypeIndexInterior, true, false, false, true, 12},
		{PageTypeTableInterior, true, false, true, false, 12},
		{PageTypeIndexLeaf, false, true, false, true, 8},
		{PageTypeTableLeaf, false, true, true, false, 8},
	}
	for _, tt := range tests {
		if got := tt.typ.IsInterior(); got != tt.interior {
			t.Errorf("%v.IsInterior() = %v, want %v", tt.typ, got, tt.interior)
		}
		if got := tt.typ.IsLeaf(); got != tt.leaf {
			t.Errorf("%v.IsLeaf() = %v, want %v", tt.typ, got, tt.leaf)
		}
		if got := tt.typ.IsTable(); got != tt.table {
			t.Errorf("%v.IsTable() = %v, want %v", tt.typ, got, tt.table)
		}
		if got := tt.typ.IsIndex(); got != tt.index {
			t.Errorf("%v.IsIndex() = %v, want %v", tt.typ, got, tt.index)
		}
		if got := tt.typ.HeaderSize(); got != tt.headerSize {
			t.Errorf("%v.HeaderSize() = %d, want %d", tt.typ, got, tt.headerSize)
		}
	}
}

func TestPageOffset(t *testing.T) {
	if got := PageOffset(1); got != DatabaseHeaderSize {
		t.Errorf("PageOffset(1) = %d, want %d", got, DatabaseHeaderSize)
	}
	if got := PageOffset(2); got != 0 {
		t.Errorf("PageOffset(2) = %d, want 0", got)
	}
}

func TestPageHeaderFieldsRoundTrip(t *testing.T) {
	p := newTestPage(t, 2)

	p.WritePageType(PageTypeTableLeaf)
	p.WriteFirstFreeblock(900)
	p.WriteCellCount(3)
	p.WriteCellContentArea(1000)
	p.WriteFragmentedBytes(5)

	typ, err := p.PageType()
	if err != nil || typ != PageTypeTableLeaf {
		t.Errorf("PageType() = (%v, %v)", typ, err)
	}
	if got := p.FirstFreeblock(); got != 900 {
		t.Errorf("FirstFreeblock() = %d, want 900", got)
	}
	if got := p.CellCount(); got != 3 {
		t.Errorf("CellCount() = %d, want 3", got)
	}
	if got := p.CellContentArea(); got != 1000 {
		t.Errorf("CellContentArea() = %d, want 1000", got)
	}
	if got := p.FragmentedBytes(); got != 5 {
		t.Errorf("FragmentedBytes() = %d, want 5", got)
	}

	// Raw header bytes land at the documented offsets, big-endian.
	raw := p.Buf.Bytes()
	if raw[0] != 13 {
		t.Errorf("type byte = %d, want 13", raw[0])
	}
	if raw[3] != 0 || raw[4] != 3 {
		t.Errorf("cell count bytes = %d %d, want 0 3", raw[3], raw[4])
	}
}

func TestPageCellContentAreaSentinel(t *testing.T) {
	p := newTestPage(t, 2)
	p.WriteCellContentArea(0)
	if got := p.CellContentArea(); got != MaxPageSize {
		t.Errorf("CellContentArea() with raw 0 = %d, want %d", got, MaxPageSize)
	}
}

func TestPageRightmostPointer(t *testing.T) {
	p := newTestPage(t, 2)
	p.WritePageType(PageTypeTableInterior)

	if err := p.WriteRightmostPointer(42); err != nil {
		t.Fatalf("WriteRightmostPointer error: %v", err)
	}
	ptr, ok := p.RightmostPointer()
	if !ok || ptr != 42 {
		t.Errorf("RightmostPointer() = (%d, %v), want (42, true)", ptr, ok)
	}

	// Leaf pages have no rightmost pointer field.
	p.WritePageType(PageTypeIndexLeaf)
	if _, ok := p.RightmostPointer(); ok {
		t.Error("RightmostPointer() defined on a leaf page")
	}
	if err := p.WriteRightmostPointer(7); err == nil {
		t.Error("WriteRightmostPointer succeeded on a leaf page")
	}

	// Undefined when the type byte itself is invalid.
	p.WriteU8(PageHeaderOffsetType, 9)
	if _, ok := p.RightmostPointer(); ok {
		t.Error("RightmostPointer() defined on an invalid page type")
	}
}

func TestPageFreeblockRoundTrip(t *testing.T) {
	p := newTestPage(t, 2)

	p.WriteFreeblock(1000, 2000, 16)
	p.WriteFreeblock(2000, 0, 32)
	p.WriteFirstFreeblock(1000)

	next, size := p.ReadFreeblock(p.FirstFreeblock())
	if next != 2000 || size != 16 {
		t.Errorf("first freeblock = (%d, %d), want (2000, 16)", next, size)
	}
	next, size = p.ReadFreeblock(next)
	if next != 0 || size != 32 {
		t.Errorf("second freeblock = (%d, %d), want (0, 32)", next, size)
	}
}

func TestPageCellPointers(t *testing.T) {
	p := newTestPage(t, 2)
	p.WritePageType(PageTypeTableLeaf)
	p.WriteCellCount(2)

	if err := p.WriteCellPointer(0, 4000); err != nil {
		t.Fatalf("WriteCellPointer(0) error: %v", err)
	}
	if err := p.WriteCellPointer(1, 3900); err != nil {
		t.Fatalf("WriteCellPointer(1) error: %v", err)
	}

	for i, want := range []uint16{4000, 3900} {
		got, err := p.CellPointer(i)
		if err != nil || got != want {
			t.Errorf("CellPointer(%d) = (%d, %v), want (%d, nil)", i, got, err, want)
		}
	}

	if _, err := p.CellPointer(2); err == nil {
		t.Error("CellPointer(2) succeeded with count 2")
	}
	if _, err := p.CellPointer(-1); err == nil {
		t.Error("CellPointer(-1) succeeded")
	}
	if err := p.WriteCellPointer(2, 1); err == nil {
		t.Error("WriteCellPointer(2) succeeded with count 2")
	}

	// The array starts right after the 8-byte leaf header.
	off, err := p.CellPointerArrayOffset()
	if err != nil || off != 8 {
		t.Errorf("CellPointerArrayOffset() = (%d, %v), want (8, nil)", off, err)
	}
	if got := p.CellPointerArraySize(); got != 4 {
		t.Errorf("CellPointerArraySize() = %d, want 4", got)
	}
}

func TestPageUnallocatedRegion(t *testing.T) {
	p := newTestPage(t, 2)
	p.WritePageType(PageTypeTableLeaf)
	p.WriteCellCount(2)
	p.WriteCellContentArea(4000)

	start, err := p.UnallocatedRegionStart()
	if err != nil || start != 12 { // 8-byte header + 2 pointers
		t.Errorf("UnallocatedRegionStart() = (%d, %v), want (12, nil)", start, err)
	}
	size, err := p.UnallocatedRegionSize()
	if err != nil || size != 4000-12 {
		t.Errorf("UnallocatedRegionSize() = (%d, %v), want (%d, nil)", size, err, 4000-12)
	}
}

func TestPageUnallocatedRegionOverlapIsCorrupt(t *testing.T) {
	p := newTestPage(t, 2)
	p.WritePageType(PageTypeTableLeaf)
	p.WriteCellCount(100)
	p.WriteCellContentArea(50) // inside the cell pointer array

	_, err := p.UnallocatedRegionSize()
	if err == nil {
		t.Fatal("UnallocatedRegionSize succeeded on an overlapping layout")
	}
	if !errors.IsCorrupt(err) {
		t.Errorf("error = %v, want corruption", err)
	}
}

func TestPageOneAddressing(t *testing.T) {
	// On page 1 the b-tree header sits after the 100-byte file header, but
	// freeblock offsets and cell pointers stay absolute.
	p := newTestPage(t, 1)
	p.WritePageType(PageTypeTableLeaf)
	p.WriteCellCount(1)

	raw := p.Buf.Bytes()
	if raw[100] != 13 {
		t.Errorf("type byte at 100 = %d, want 13", raw[100])
	}
	if raw[103] != 0 || raw[104] != 1 {
		t.Errorf("cell count bytes at 103..104 = %d %d, want 0 1", raw[103], raw[104])
	}

	off, err := p.CellPointerArrayOffset()
	if err != nil || off != 108 { // 100 + 8-byte leaf header
		t.Errorf("CellPointerArrayOffset() = (%d, %v), want (108, nil)", off, err)
	}

	if err := p.WriteCellPointer(0, 4000); err != nil {
		t.Fatalf("WriteCellPointer error: %v", err)
	}
	if raw[108] != 0x0F || raw[109] != 0xA0 {
		t.Errorf("cell pointer bytes = %#x %#x, want 0x0f 0xa0", raw[108], raw[109])
	}
}
