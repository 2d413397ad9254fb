package storage

import (
	"encoding/binary"

	dberrors "github.com/FocuswithJustin/minilite/core/errors"
)

// File format constants
const (
	// DatabaseHeaderSize is the size of the database file header occupying
	// the first 100 bytes of page 1.
	DatabaseHeaderSize = 100

	// MagicHeaderString is the magic header string for SQLite 3 database
	// files, exactly 16 bytes including the null terminator.
	MagicHeaderString = "SQLite format 3\x00"
)

// Database header byte offsets
const (
	offsetMagic             = 0  // Magic header string (16 bytes)
	offsetPageSize          = 16 // Page size (2 bytes, raw 1 means 65536)
	offsetFileFormatWrite   = 18 // File format write version (1 byte)
	offsetFileFormatRead    = 19 // File format read version (1 byte)
	offsetReservedSpace     = 20 // Reserved space per page (1 byte)
	offsetMaxPayloadFrac    = 21 // Maximum embedded payload fraction (1 byte)
	offsetMinPayloadFrac    = 22 // Minimum embedded payload fraction (1 byte)
	offsetLeafPayloadFrac   = 23 // Leaf payload fraction (1 byte)
	offsetFileChangeCounter = 24 // File change counter (4 bytes)
	offsetDatabaseSize      = 28 // Database size in pages (4 bytes)
	offsetFreelistTrunk     = 32 // First freelist trunk page (4 bytes)
	offsetFreelistCount     = 36 // Number of freelist pages (4 bytes)
	offsetSchemaCookie      = 40 // Schema cookie (4 bytes)
	offsetSchemaFormat      = 44 // Schema format number (4 bytes)
	offsetDefaultCacheSize  = 48 // Suggested cache size (4 bytes)
	offsetLargestRootPage   = 52 // Largest root b-tree page (4 bytes)
	offsetTextEncoding      = 56 // Text encoding (4 bytes)
	offsetUserVersion       = 60 // User version (4 bytes)
	offsetIncrementalVacuum = 64 // Incremental vacuum mode (4 bytes)
	offsetApplicationID     = 68 // Application ID (4 bytes)
	offsetReserved          = 72 // Reserved, must be zero (20 bytes)
	offsetVersionValidFor   = 92 // Version-valid-for number (4 bytes)
	offsetSQLiteVersion     = 96 // Writing library version number (4 bytes)
)

// Text encoding values
const (
	EncodingUTF8    = 1
	EncodingUTF16LE = 2
	EncodingUTF16BE = 3
)

// DatabaseHeader is the parsed form of the 100-byte header at the start of
// every database file.
type DatabaseHeader struct {
	Magic             [16]byte
	PageSize          PageSize
	FileFormatWrite   uint8
	FileFormatRead    uint8
	ReservedSpace     uint8
	MaxPayloadFrac    uint8
	MinPayloadFrac    uint8
	LeafPayloadFrac   uint8
	FileChangeCounter uint32
	DatabaseSize      uint32 // in pages
	FreelistTrunk     uint32
	FreelistCount     uint32
	SchemaCookie      uint32
	SchemaFormat      uint32
	DefaultCacheSize  uint32
	LargestRootPage   uint32
	TextEncoding      uint32
	UserVersion       uint32
	IncrementalVacuum uint32
	ApplicationID     uint32
	Reserved          [20]byte
	VersionValidFor   uint32
	SQLiteVersion     uint32
}

// NewDatabaseHeader creates a header with default values for a new database
// with the given page size.
func NewDatabaseHeader(pageSize PageSize) *DatabaseHeader {
	h := &DatabaseHeader{
		PageSize:        pageSize,
		FileFormatWrite: 1,
		FileFormatRead:  1,
		MaxPayloadFrac:  64,
		MinPayloadFrac:  32,
		LeafPayloadFrac: 32,
		SchemaFormat:    4,
		TextEncoding:    EncodingUTF8,
	}
	copy(h.Magic[:], MagicHeaderString)
	return h
}

// ParseDatabaseHeader parses and validates the first 100 bytes of a
// database file.
func ParseDatabaseHeader(data []byte) (*DatabaseHeader, error) {
	if len(data) < DatabaseHeaderSize {
		return nil, dberrors.Corruptf("database header too small: %d bytes", len(data))
	}

	h := &DatabaseHeader{}
	copy(h.Magic[:], data[offsetMagic:offsetMagic+16])
	if string(h.Magic[:]) != MagicHeaderString {
		return nil, dberrors.Corruptf("invalid magic header %q", h.Magic)
	}

	pageSize, err := PageSizeFromHeader(binary.BigEndian.Uint16(data[offsetPageSize:]))
	if err != nil {
		return nil, err
	}
	h.PageSize = pageSize

	h.FileFormatWrite = data[offsetFileFormatWrite]
	h.FileFormatRead = data[offsetFileFormatRead]
	h.ReservedSpace = data[offsetReservedSpace]
	h.MaxPayloadFrac = data[offsetMaxPayloadFrac]
	h.MinPayloadFrac = data[offsetMinPayloadFrac]
	h.LeafPayloadFrac = data[offsetLeafPayloadFrac]

	h.FileChangeCounter = binary.BigEndian.Uint32(data[offsetFileChangeCounter:])
	h.DatabaseSize = binary.BigEndian.Uint32(data[offsetDatabaseSize:])
	h.FreelistTrunk = binary.BigEndian.Uint32(data[offsetFreelistTrunk:])
	h.FreelistCount = binary.BigEndian.Uint32(data[offsetFreelistCount:])
	h.SchemaCookie = binary.BigEndian.Uint32(data[offsetSchemaCookie:])
	h.SchemaFormat = binary.BigEndian.Uint32(data[offsetSchemaFormat:])
	h.DefaultCacheSize = binary.BigEndian.Uint32(data[offsetDefaultCacheSize:])
	h.LargestRootPage = binary.BigEndian.Uint32(data[offsetLargestRootPage:])
	h.TextEncoding = binary.BigEndian.Uint32(data[offsetTextEncoding:])
	h.UserVersion = binary.BigEndian.Uint32(data[offsetUserVersion:])
	h.IncrementalVacuum = binary.BigEndian.Uint32(data[offsetIncrementalVacuum:])
	h.ApplicationID = binary.BigEndian.Uint32(data[offsetApplicationID:])
	copy(h.Reserved[:], data[offsetReserved:offsetReserved+20])
	h.VersionValidFor = binary.BigEndian.Uint32(data[offsetVersionValidFor:])
	h.SQLiteVersion = binary.BigEndian.Uint32(data[offsetSQLiteVersion:])

	return h, nil
}

// Serialize writes the header into its 100-byte on-disk form.
func (h *DatabaseHeader) Serialize() []byte {
	data := make([]byte, DatabaseHeaderSize)

	copy(data[offsetMagic:], h.Magic[:])
	binary.BigEndian.PutUint16(data[offsetPageSize:], h.PageSize.Raw())

	data[offsetFileFormatWrite] = h.FileFormatWrite
	data[offsetFileFormatRead] = h.FileFormatRead
	data[offsetReservedSpace] = h.ReservedSpace
	data[offsetMaxPayloadFrac] = h.MaxPayloadFrac
	data[offsetMinPayloadFrac] = h.MinPayloadFrac
	data[offsetLeafPayloadFrac] = h.LeafPayloadFrac

	binary.BigEndian.PutUint32(data[offsetFileChangeCounter:], h.FileChangeCounter)
	binary.BigEndian.PutUint32(data[offsetDatabaseSize:], h.DatabaseSize)
	binary.BigEndian.PutUint32(data[offsetFreelistTrunk:], h.FreelistTrunk)
	binary.BigEndian.PutUint32(data[offsetFreelistCount:], h.FreelistCount)
	binary.BigEndian.PutUint32(data[offsetSchemaCookie:], h.SchemaCookie)
	binary.BigEndian.PutUint32(data[offsetSchemaFormat:], h.SchemaFormat)
	binary.BigEndian.PutUint32(data[offsetDefaultCacheSize:], h.DefaultCacheSize)
	binary.BigEndian.PutUint32(data[offsetLargestRootPage:], h.LargestRootPage)
	binary.BigEndian.PutUint32(data[offsetTextEncoding:], h.TextEncoding)
	binary.BigEndian.PutUint32(data[offsetUserVersion:], h.UserVersion)
	binary.BigEndian.PutUint32(data[offsetIncrementalVacuum:], h.IncrementalVacuum)
	binary.BigEndian.PutUint32(data[offsetApplicationID:], h.ApplicationID)
	copy(data[offsetReserved:], h.Reserved[:])
	binary.BigEndian.PutUint32(data[offsetVersionValidFor:], h.VersionValidFor)
	binary.BigEndian.PutUint32(data[offsetSQLiteVersion:], h.SQLiteVersion)

	return data
}

// Validate checks the structural invariants beyond what parsing enforces.
func (h *DatabaseHeader) Validate() error {
	if string(h.Magic[:]) != MagicHeaderString {
		return dberrors.Corruptf("invalid magic header")
	}
	if h.FileFormatWrite != 1 && h.FileFormatWrite != 2 {
		return dberrors.Corruptf("invalid file format write version: %d", h.FileFormatWrite)
	}
	if h.FileFormatRead != 1 && h.FileFormatRead != 2 {
		return dberrors.Corruptf("invalid file format read version: %d", h.FileFormatRead)
	}
	if h.MaxPayloadFrac != 64 {
		return dberrors.Corruptf("invalid max payload fraction: %d", h.MaxPayloadFrac)
	}
	if h.MinPayloadFrac != 32 {
		return dberrors.Corruptf("invalid min payload fraction: %d", h.MinPayloadFrac)
	}
	if h.LeafPayloadFrac != 32 {
		return dberrors.Corruptf("invalid leaf payload fraction: %d", h.LeafPayloadFrac)
	}
	if h.SchemaFormat < 1 || h.SchemaFormat > 4 {
		return dberrors.Corruptf("invalid schema format: %d", h.SchemaFormat)
	}
	if h.TextEncoding < EncodingUTF8 || h.TextEncoding > EncodingUTF16BE {
		return dberrors.Corruptf("invalid text encoding: %d", h.TextEncoding)
	}
	return nil
}

// UsableSize returns the usable bytes per page after reserved space.
func (h *DatabaseHeader) UsableSize() uint32 {
	return h.PageSize.Get() - uint32(h.ReservedSpace)
}
