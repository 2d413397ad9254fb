// Package storage implements the SQLite on-disk page format: the b-tree
// page header codec, the varint and serial-type codecs, and the database
// file header.
//
// B-Tree page layout:
//
//	+-----------------+-----------------+-----------------+-----------------+
//	| Page Header     | Cell Pointer    | Unallocated     | Cell Content    |
//	| (8-12 bytes)    | Array           | Space           | Area            |
//	|                 | (2 bytes each)  |                 |                 |
//	+-----------------+-----------------+-----------------+-----------------+
//
// All multi-byte fields are big-endian. On page 1 the b-tree page starts
// after the 100-byte database file header; PageContent.Offset accounts for
// that skip.
package storage

import (
	"encoding/binary"
	"fmt"

	dberrors "github.com/FocuswithJustin/minilite/core/errors"
	"github.com/FocuswithJustin/minilite/core/vfs"
)

// PageType is the first byte of the b-tree page header. Only four values
// are valid; anything else is corrupt data.
type PageType uint8

// Page type constants
const (
	PageTypeIndexInterior PageType = 2  // Interior index b-tree page
	PageTypeTableInterior PageType = 5  // Interior table b-tree page
	PageTypeIndexLeaf     PageType = 10 // Leaf index b-tree page
	PageTypeTableLeaf     PageType = 13 // Leaf table b-tree page
)

// Page header byte offsets, relative to the page's effective start
const (
	PageHeaderOffsetType       = 0 // Page type (1 byte)
	PageHeaderOffsetFreeblock  = 1 // First freeblock offset (2 bytes)
	PageHeaderOffsetCellCount  = 3 // Number of cells (2 bytes)
	PageHeaderOffsetCellStart  = 5 // Start of cell content area (2 bytes)
	PageHeaderOffsetFragmented = 7 // Fragmented free bytes (1 byte)
	PageHeaderOffsetRightChild = 8 // Right-most child pointer (4 bytes, interior only)
)

// Header sizes
const (
	PageHeaderSizeLeaf     = 8  // Leaf pages: 8 bytes
	PageHeaderSizeInterior = 12 // Interior pages: 12 bytes (includes right child pointer)

	// CellPointerSize is the width of one cell pointer array entry.
	CellPointerSize = 2
)

// ParsePageType validates the page type byte.
func ParsePageType(b byte) (PageType, error) {
	switch PageType(b) {
	case PageTypeIndexInterior, PageTypeTableInterior, PageTypeIndexLeaf, PageTypeTableLeaf:
		return PageType(b), nil
	default:
		return 0, dberrors.Corruptf("invalid page type: %d", b)
	}
}

// IsInterior reports whether the type is an interior page. The
// classification is an exhaustive enumeration of the four valid types, not
// an ordinal comparison.
func (t PageType) IsInterior() bool {
	switch t {
	case PageTypeIndexInterior, PageTypeTableInterior:
		return true
	case PageTypeIndexLeaf, PageTypeTableLeaf:
		return false
	}
	return false
}

// IsLeaf reports whether the type is a leaf page.
func (t PageType) IsLeaf() bool {
	switch t {
	case PageTypeIndexLeaf, PageTypeTableLeaf:
		return true
	}
	return false
}

// IsTable reports whether the type belongs to a table b-tree.
func (t PageType) IsTable() bool {
	switch t {
	case PageTypeTableInterior, PageTypeTableLeaf:
		return true
	}
	return false
}

// IsIndex reports whether the type belongs to an index b-tree.
func (t PageType) IsIndex() bool {
	switch t {
	case PageTypeIndexInterior, PageTypeIndexLeaf:
		return true
	}
	return false
}

// HeaderSize returns 12 for interior pages and 8 for leaf pages.
func (t PageType) HeaderSize() int {
	if t.IsInterior() {
		return PageHeaderSizeInterior
	}
	return PageHeaderSizeLeaf
}

// String returns the page type name.
func (t PageType) String() string {
	switch t {
	case PageTypeIndexInterior:
		return "interior index"
	case PageTypeTableInterior:
		return "interior table"
	case PageTypeIndexLeaf:
		return "leaf index"
	case PageTypeTableLeaf:
		return "leaf table"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(t))
	}
}

// OverflowCell is a cell that could not be placed on its target page during
// a higher-level mutation and is staged for later insertion. This codec
// only carries the list; placement belongs to the b-tree layer.
type OverflowCell struct {
	// Index is the cell's intended position in the page's cell order.
	Index int

	// Payload is the full cell image.
	Payload []byte
}

// PageContent is a structured view over a page-sized buffer. Offset is the
// byte distance from the buffer start to the b-tree page header: 100 on
// page 1 (to skip the database file header), 0 everywhere else.
//
// Two addressing modes are provided. The page-relative accessors add Offset
// automatically and serve the header fields. The absolute accessors address
// the raw page, which is how freeblock chain offsets and cell pointers are
// expressed on disk regardless of the page 1 skip.
type PageContent struct {
	Offset        int
	Buf           *vfs.Buffer
	OverflowCells []OverflowCell
}

// NewPageContent creates a view over buf with the given header offset.
func NewPageContent(offset int, buf *vfs.Buffer) *PageContent {
	return &PageContent{
		Offset: offset,
		Buf:    buf,
	}
}

// PageOffset returns the header offset for a page number: 100 for page 1,
// 0 otherwise.
func PageOffset(pgno uint32) int {
	if pgno == 1 {
		return DatabaseHeaderSize
	}
	return 0
}

// Page-relative primitives

// ReadU8 reads one byte at pos bytes past the page's effective start.
func (p *PageContent) ReadU8(pos int) byte {
	return p.Buf.Bytes()[p.Offset+pos]
}

// ReadU16 reads a big-endian uint16 at pos bytes past the effective start.
func (p *PageContent) ReadU16(pos int) uint16 {
	return binary.BigEndian.Uint16(p.Buf.Bytes()[p.Offset+pos:])
}

// ReadU32 reads a big-endian uint32 at pos bytes past the effective start.
func (p *PageContent) ReadU32(pos int) uint32 {
	return binary.BigEndian.Uint32(p.Buf.Bytes()[p.Offset+pos:])
}

// WriteU8 writes one byte at pos bytes past the effective start.
func (p *PageContent) WriteU8(pos int, v byte) {
	p.Buf.Bytes()[p.Offset+pos] = v
}

// WriteU16 writes a big-endian uint16 at pos bytes past the effective start.
func (p *PageContent) WriteU16(pos int, v uint16) {
	binary.BigEndian.PutUint16(p.Buf.Bytes()[p.Offset+pos:], v)
}

// WriteU32 writes a big-endian uint32 at pos bytes past the effective start.
func (p *PageContent) WriteU32(pos int, v uint32) {
	binary.BigEndian.PutUint32(p.Buf.Bytes()[p.Offset+pos:], v)
}

// Absolute primitives, used for freeblock chains and cell pointer targets

// ReadU16Abs reads a big-endian uint16 at an absolute page offset.
func (p *PageContent) ReadU16Abs(pos int) uint16 {
	return binary.BigEndian.Uint16(p.Buf.Bytes()[pos:])
}

// ReadU32Abs reads a big-endian uint32 at an absolute page offset.
func (p *PageContent) ReadU32Abs(pos int) uint32 {
	return binary.BigEndian.Uint32(p.Buf.Bytes()[pos:])
}

// WriteU16Abs writes a big-endian uint16 at an absolute page offset.
func (p *PageContent) WriteU16Abs(pos int, v uint16) {
	binary.BigEndian.PutUint16(p.Buf.Bytes()[pos:], v)
}

// WriteU32Abs writes a big-endian uint32 at an absolute page offset.
func (p *PageContent) WriteU32Abs(pos int, v uint32) {
	binary.BigEndian.PutUint32(p.Buf.Bytes()[pos:], v)
}

// Header fields

// PageType returns the validated page type.
func (p *PageContent) PageType() (PageType, error) {
	return ParsePageType(p.ReadU8(PageHeaderOffsetType))
}

// MaybePageType returns the page type and whether it is valid.
func (p *PageContent) MaybePageType() (PageType, bool) {
	t, err := ParsePageType(p.ReadU8(PageHeaderOffsetType))
	return t, err == nil
}

// WritePageType stores the page type byte.
func (p *PageContent) WritePageType(t PageType) {
	p.WriteU8(PageHeaderOffsetType, byte(t))
}

// FirstFreeblock returns the absolute offset of the first freeblock, 0 if
// the page has none.
func (p *PageContent) FirstFreeblock() uint16 {
	return p.ReadU16(PageHeaderOffsetFreeblock)
}

// WriteFirstFreeblock stores the offset of the first freeblock.
func (p *PageContent) WriteFirstFreeblock(offset uint16) {
	p.WriteU16(PageHeaderOffsetFreeblock, offset)
}

// CellCount returns the number of cells on the page.
func (p *PageContent) CellCount() uint16 {
	return p.ReadU16(PageHeaderOffsetCellCount)
}

// WriteCellCount stores the number of cells.
func (p *PageContent) WriteCellCount(count uint16) {
	p.WriteU16(PageHeaderOffsetCellCount, count)
}

// CellContentArea returns the absolute start of the cell content area. The
// stored field is 16 bits wide, so the raw value 0 means 65536, the same
// sentinel convention PageSize uses.
func (p *PageContent) CellContentArea() uint32 {
	raw := p.ReadU16(PageHeaderOffsetCellStart)
	if raw == 0 {
		return MaxPageSize
	}
	return uint32(raw)
}

// WriteCellContentArea stores the raw 16-bit cell content area start. Write
// 0 to mean 65536.
func (p *PageContent) WriteCellContentArea(raw uint16) {
	p.WriteU16(PageHeaderOffsetCellStart, raw)
}

// FragmentedBytes returns the count of fragmented free bytes, gaps too
// small to be freeblocks.
func (p *PageContent) FragmentedBytes() byte {
	return p.ReadU8(PageHeaderOffsetFragmented)
}

// WriteFragmentedBytes stores the fragmented free byte count.
func (p *PageContent) WriteFragmentedBytes(count byte) {
	p.WriteU8(PageHeaderOffsetFragmented, count)
}

// RightmostPointer returns the right-most child page number. The field
// exists only on interior pages; ok is false for leaf pages and for pages
// whose type byte is invalid.
func (p *PageContent) RightmostPointer() (ptr uint32, ok bool) {
	t, valid := p.MaybePageType()
	if !valid || !t.IsInterior() {
		return 0, false
	}
	return p.ReadU32(PageHeaderOffsetRightChild), true
}

// WriteRightmostPointer stores the right-most child page number. Writing it
// on a leaf page is an error: the field does not exist there.
func (p *PageContent) WriteRightmostPointer(ptr uint32) error {
	t, err := p.PageType()
	if err != nil {
		return err
	}
	if !t.IsInterior() {
		return fmt.Errorf("page type %s has no rightmost pointer", t)
	}
	p.WriteU32(PageHeaderOffsetRightChild, ptr)
	return nil
}

// Freeblocks form a singly linked chain of 4-byte records at absolute
// offsets: 2 bytes holding the absolute offset of the next freeblock (0
// terminates the chain) followed by 2 bytes holding this block's size. The
// codec reads and writes individual records; chain ordering and coalescing
// belong to the space allocator above this layer.

// ReadFreeblock reads the freeblock record at an absolute offset.
func (p *PageContent) ReadFreeblock(offset uint16) (next uint16, size uint16) {
	return p.ReadU16Abs(int(offset)), p.ReadU16Abs(int(offset) + 2)
}

// WriteFreeblock writes a freeblock record at an absolute offset. A next of
// 0 marks the end of the chain.
func (p *PageContent) WriteFreeblock(offset uint16, next uint16, size uint16) {
	p.WriteU16Abs(int(offset), next)
	p.WriteU16Abs(int(offset)+2, size)
}

// Derived regions

// HeaderSize returns the page header size, 8 or 12 bytes, derived from the
// page type.
func (p *PageContent) HeaderSize() (int, error) {
	t, err := p.PageType()
	if err != nil {
		return 0, err
	}
	return t.HeaderSize(), nil
}

// CellPointerArrayOffset returns the absolute offset where the cell pointer
// array begins: immediately after the header.
func (p *PageContent) CellPointerArrayOffset() (int, error) {
	hs, err := p.HeaderSize()
	if err != nil {
		return 0, err
	}
	return p.Offset + hs, nil
}

// CellPointerArraySize returns the array's size in bytes, always
// CellCount * 2.
func (p *PageContent) CellPointerArraySize() int {
	return int(p.CellCount()) * CellPointerSize
}

// CellPointer returns the absolute content offset stored in the i-th cell
// pointer.
func (p *PageContent) CellPointer(i int) (uint16, error) {
	count := int(p.CellCount())
	if i < 0 || i >= count {
		return 0, fmt.Errorf("cell index out of range: %d (count %d)", i, count)
	}
	start, err := p.CellPointerArrayOffset()
	if err != nil {
		return 0, err
	}
	return p.ReadU16Abs(start + i*CellPointerSize), nil
}

// WriteCellPointer stores the absolute content offset in the i-th cell
// pointer. The slot must be within the current cell count.
func (p *PageContent) WriteCellPointer(i int, ptr uint16) error {
	count := int(p.CellCount())
	if i < 0 || i >= count {
		return fmt.Errorf("cell index out of range: %d (count %d)", i, count)
	}
	start, err := p.CellPointerArrayOffset()
	if err != nil {
		return err
	}
	p.WriteU16Abs(start+i*CellPointerSize, ptr)
	return nil
}

// UnallocatedRegionStart returns the absolute offset where the gap between
// the cell pointer array and the cell content area begins.
func (p *PageContent) UnallocatedRegionStart() (int, error) {
	start, err := p.CellPointerArrayOffset()
	if err != nil {
		return 0, err
	}
	return start + p.CellPointerArraySize(), nil
}

// UnallocatedRegionSize returns the gap's size in bytes. A cell content
// area that starts before the end of the cell pointer array would make the
// size negative; that is page corruption, not a valid layout.
func (p *PageContent) UnallocatedRegionSize() (int, error) {
	start, err := p.UnallocatedRegionStart()
	if err != nil {
		return 0, err
	}
	size := int(p.CellContentArea()) - start
	if size < 0 {
		return 0, dberrors.Corruptf(
			"cell content area %d overlaps cell pointer array ending at %d",
			p.CellContentArea(), start)
	}
	return size, nil
}
