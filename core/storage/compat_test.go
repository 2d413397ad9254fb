package storage_test

// These tests validate the codec against database files produced by a real
// SQLite implementation (modernc.org/sqlite).

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/FocuswithJustin/minilite/core/storage"
	"github.com/FocuswithJustin/minilite/core/vfs"
)

// createReferenceDB builds a database with a reference SQLite implementation
// and returns the raw file bytes.
func createReferenceDB(t *testing.T, stmts ...string) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ref.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open reference database: %v", err)
	}
	// Keep everything in the main file so the on-disk image is final on Close
	if _, err := db.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		db.Close()
		t.Fatalf("failed to set journal mode: %v", err)
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close reference database: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read database file: %v", err)
	}
	return data
}

func TestParseReferenceDatabaseHeader(t *testing.T) {
	data := createReferenceDB(t,
		"CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO t (name) VALUES ('alice'), ('bob')",
	)

	h, err := storage.ParseDatabaseHeader(data)
	if err != nil {
		t.Fatalf("ParseDatabaseHeader error: %v", err)
	}
	if err := h.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}

	pageSize := h.PageSize.Get()
	if uint32(len(data))%pageSize != 0 {
		t.Errorf("file size %d is not a multiple of page size %d", len(data), pageSize)
	}
	if h.DatabaseSize != uint32(len(data))/pageSize {
		t.Errorf("DatabaseSize = %d pages, file has %d", h.DatabaseSize, uint32(len(data))/pageSize)
	}
	if h.TextEncoding != storage.EncodingUTF8 {
		t.Errorf("TextEncoding = %d, want UTF-8", h.TextEncoding)
	}
}

func TestParseReferenceSchemaPage(t *testing.T) {
	data := createReferenceDB(t,
		"CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT, weight REAL)",
	)

	h, err := storage.ParseDatabaseHeader(data)
	if err != nil {
		t.Fatalf("ParseDatabaseHeader error: %v", err)
	}
	pageSize := int(h.PageSize.Get())

	// Page 1 holds the schema table; with a single small table it is a
	// table leaf.
	page := storage.NewPageContent(storage.PageOffset(1), vfs.NewBuffer(data[:pageSize]))
	typ, err := page.PageType()
	if err != nil {
		t.Fatalf("PageType() error: %v", err)
	}
	if typ != storage.PageTypeTableLeaf {
		t.Fatalf("page 1 type = %v, want leaf table", typ)
	}
	if count := page.CellCount(); count != 1 {
		t.Fatalf("CellCount() = %d, want 1", count)
	}
	if _, err := page.UnallocatedRegionSize(); err != nil {
		t.Errorf("UnallocatedRegionSize() error: %v", err)
	}

	// The single cell is the schema row for our table:
	// payload-size varint, rowid varint, then the record.
	ptr, err := page.CellPointer(0)
	if err != nil {
		t.Fatalf("CellPointer(0) error: %v", err)
	}
	if uint32(ptr) < page.CellContentArea() {
		t.Errorf("cell pointer %d before cell content area %d", ptr, page.CellContentArea())
	}

	cell := data[ptr:pageSize]
	payloadSize, n, err := storage.ReadVarint(cell)
	if err != nil {
		t.Fatalf("payload size varint: %v", err)
	}
	rowid, m, err := storage.ReadVarint(cell[n:])
	if err != nil {
		t.Fatalf("rowid varint: %v", err)
	}
	if rowid != 1 {
		t.Errorf("schema rowid = %d, want 1", rowid)
	}

	record := cell[n+m : n+m+int(payloadSize)]
	values, err := storage.DecodeRecord(record)
	if err != nil {
		t.Fatalf("DecodeRecord error: %v", err)
	}
	// Schema rows have five columns: type, name, tbl_name, rootpage, sql
	if len(values) != 5 {
		t.Fatalf("schema row has %d columns, want 5", len(values))
	}
	if typ, _ := values[0].(string); typ != "table" {
		t.Errorf("schema type = %#v, want \"table\"", values[0])
	}
	if name, _ := values[1].(string); name != "items" {
		t.Errorf("schema name = %#v, want \"items\"", values[1])
	}
	if _, ok := values[3].(int64); !ok {
		t.Errorf("schema rootpage = %#v, want integer", values[3])
	}
}

func TestReferenceDataPageRecords(t *testing.T) {
	data := createReferenceDB(t,
		"CREATE TABLE kv (k TEXT, v INTEGER)",
		"INSERT INTO kv VALUES ('first', 100), ('second', -7), ('third', 0)",
	)

	h, err := storage.ParseDatabaseHeader(data)
	if err != nil {
		t.Fatalf("ParseDatabaseHeader error: %v", err)
	}
	pageSize := int(h.PageSize.Get())
	if len(data) < 2*pageSize {
		t.Fatalf("expected at least two pages, file is %d bytes", len(data))
	}

	// Page 2 is the kv table's root, a leaf holding all three rows.
	page := storage.NewPageContent(storage.PageOffset(2), vfs.NewBuffer(data[pageSize:2*pageSize]))
	typ, err := page.PageType()
	if err != nil {
		t.Fatalf("PageType() error: %v", err)
	}
	if typ != storage.PageTypeTableLeaf {
		t.Fatalf("page 2 type = %v, want leaf table", typ)
	}
	if count := page.CellCount(); count != 3 {
		t.Fatalf("CellCount() = %d, want 3", count)
	}

	want := []struct {
		k string
		v int64
	}{
		{"first", 100},
		{"second", -7},
		{"third", 0},
	}
	for i := range want {
		ptr, err := page.CellPointer(i)
		if err != nil {
			t.Fatalf("CellPointer(%d) error: %v", i, err)
		}
		// Cell pointers address the raw page; this view starts at page 2.
		cell := page.Buf.Bytes()[ptr:]
		payloadSize, n, err := storage.ReadVarint(cell)
		if err != nil {
			t.Fatalf("cell %d payload size: %v", i, err)
		}
		rowid, m, err := storage.ReadVarint(cell[n:])
		if err != nil {
			t.Fatalf("cell %d rowid: %v", i, err)
		}
		if rowid != uint64(i+1) {
			t.Errorf("cell %d rowid = %d, want %d", i, rowid, i+1)
		}

		values, err := storage.DecodeRecord(cell[n+m : n+m+int(payloadSize)])
		if err != nil {
			t.Fatalf("cell %d DecodeRecord error: %v", i, err)
		}
		if len(values) != 2 {
			t.Fatalf("cell %d has %d columns, want 2", i, len(values))
		}
		if k, _ := values[0].(string); k != want[i].k {
			t.Errorf("cell %d k = %#v, want %q", i, values[0], want[i].k)
		}
		if v, _ := values[1].(int64); v != want[i].v {
			t.Errorf("cell %d v = %#v, want %d", i, values[1], want[i].v)
		}
	}
}
