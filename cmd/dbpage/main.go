// Command dbpage inspects SQLite database files at the page level.
// It prints file header fields, decodes b-tree page headers, and
// fingerprints page images.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/minilite/core/storage"
	"github.com/FocuswithJustin/minilite/core/vfs"
	"github.com/FocuswithJustin/minilite/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for dbpage.
var CLI struct {
	// Global flags
	Verbose bool `name:"verbose" short:"v" help:"Enable debug logging"`
	JSONLog bool `name:"json-log" help:"Emit logs as JSON"`

	Header  HeaderCmd  `cmd:"" help:"Print the database file header"`
	Page    PageCmd    `cmd:"" help:"Decode a b-tree page header"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// openDatabase opens path read-only and returns the file and its size.
func openDatabase(path string) (vfs.File, int64, error) {
	io := vfs.NewDiskIO()
	f, err := io.OpenFile(path, vfs.OpenReadOnly)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	size, err := f.Size()
	if err != nil {
		return nil, 0, err
	}
	return f, size, nil
}

// readAt reads size bytes at pos through the completion interface.
func readAt(f vfs.File, pos int64, size int) ([]byte, error) {
	c, err := f.Pread(pos, vfs.NewReadCompletion(vfs.NewBufferZeroed(size), nil))
	if err != nil {
		return nil, err
	}
	n, err := c.Result()
	if err != nil {
		return nil, err
	}
	if int(n) != size {
		return nil, fmt.Errorf("short read: got %d bytes, want %d", n, size)
	}
	return c.Buf().Bytes(), nil
}

// HeaderCmd prints the 100-byte database file header.
type HeaderCmd struct {
	Path string `arg:"" help:"Path to database file" type:"existingfile"`
}

func (c *HeaderCmd) Run() error {
	f, size, err := openDatabase(c.Path)
	if err != nil {
		return err
	}
	if size < storage.DatabaseHeaderSize {
		return fmt.Errorf("%s: file too small for a database header (%d bytes)", c.Path, size)
	}

	data, err := readAt(f, 0, storage.DatabaseHeaderSize)
	if err != nil {
		return err
	}
	h, err := storage.ParseDatabaseHeader(data)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Path, err)
	}
	if err := h.Validate(); err != nil {
		logging.CorruptionDetected(c.Path, err)
		return fmt.Errorf("%s: %w", c.Path, err)
	}

	fmt.Printf("page size:        %d\n", h.PageSize.Get())
	fmt.Printf("usable size:      %d\n", h.UsableSize())
	fmt.Printf("database size:    %d pages\n", h.DatabaseSize)
	fmt.Printf("change counter:   %d\n", h.FileChangeCounter)
	fmt.Printf("freelist trunk:   %d\n", h.FreelistTrunk)
	fmt.Printf("freelist count:   %d\n", h.FreelistCount)
	fmt.Printf("schema cookie:    %d\n", h.SchemaCookie)
	fmt.Printf("schema format:    %d\n", h.SchemaFormat)
	fmt.Printf("text encoding:    %s\n", encodingName(h.TextEncoding))
	fmt.Printf("user version:     %d\n", h.UserVersion)
	fmt.Printf("application id:   %d\n", h.ApplicationID)
	fmt.Printf("sqlite version:   %d\n", h.SQLiteVersion)
	return nil
}

func encodingName(enc uint32) string {
	switch enc {
	case storage.EncodingUTF8:
		return "UTF-8"
	case storage.EncodingUTF16LE:
		return "UTF-16le"
	case storage.EncodingUTF16BE:
		return "UTF-16be"
	default:
		return fmt.Sprintf("unknown(%d)", enc)
	}
}

// PageCmd decodes the b-tree page header of a single page.
type PageCmd struct {
	Path string `arg:"" help:"Path to database file" type:"existingfile"`
	Pgno uint32 `arg:"" help:"Page number (1-based)"`

	Freeblocks bool `name:"freeblocks" help:"Walk and print the freeblock chain"`
	Cells      bool `name:"cells" help:"Print the cell pointer array"`
}

func (c *PageCmd) Run() error {
	if c.Pgno == 0 {
		return fmt.Errorf("page numbers start at 1")
	}

	f, size, err := openDatabase(c.Path)
	if err != nil {
		return err
	}

	header, err := readAt(f, 0, storage.DatabaseHeaderSize)
	if err != nil {
		return err
	}
	h, err := storage.ParseDatabaseHeader(header)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Path, err)
	}

	pageSize := int64(h.PageSize.Get())
	pos := int64(c.Pgno-1) * pageSize
	if pos+pageSize > size {
		return fmt.Errorf("page %d is beyond the end of the file (%d pages)", c.Pgno, size/pageSize)
	}

	data, err := readAt(f, pos, int(pageSize))
	if err != nil {
		return err
	}

	// Fingerprint the raw page image before decoding anything from it.
	sum := blake3.Sum256(data)
	fmt.Printf("page:             %d\n", c.Pgno)
	fmt.Printf("blake3:           %x\n", sum)

	page := storage.NewPageContent(storage.PageOffset(c.Pgno), vfs.NewBuffer(data))
	typ, err := page.PageType()
	if err != nil {
		logging.CorruptionDetected(c.Path, err)
		return fmt.Errorf("page %d: %w", c.Pgno, err)
	}

	fmt.Printf("type:             %s\n", typ)
	fmt.Printf("cell count:       %d\n", page.CellCount())
	fmt.Printf("cell content at:  %d\n", page.CellContentArea())
	fmt.Printf("first freeblock:  %d\n", page.FirstFreeblock())
	fmt.Printf("fragmented bytes: %d\n", page.FragmentedBytes())
	if ptr, ok := page.RightmostPointer(); ok {
		fmt.Printf("rightmost child:  %d\n", ptr)
	}
	if free, err := page.UnallocatedRegionSize(); err != nil {
		logging.CorruptionDetected(c.Path, err)
		return fmt.Errorf("page %d: %w", c.Pgno, err)
	} else {
		fmt.Printf("unallocated:      %d bytes\n", free)
	}

	if c.Freeblocks {
		printFreeblocks(page)
	}
	if c.Cells {
		printCells(page)
	}
	return nil
}

// printFreeblocks walks the freeblock chain. The chain is bounded by the
// page size; a cycle or out-of-range link means the page is damaged, so the
// walk caps its step count rather than trusting the links.
func printFreeblocks(page *storage.PageContent) {
	offset := page.FirstFreeblock()
	limit := page.Buf.Len() / 4
	for i := 0; offset != 0 && i < limit; i++ {
		if int(offset)+4 > page.Buf.Len() {
			fmt.Printf("freeblock at %d: out of range\n", offset)
			return
		}
		next, size := page.ReadFreeblock(offset)
		fmt.Printf("freeblock at %d:  %d bytes, next %d\n", offset, size, next)
		offset = next
	}
	if offset != 0 {
		fmt.Println("freeblock chain did not terminate")
	}
}

func printCells(page *storage.PageContent) {
	count := int(page.CellCount())
	for i := 0; i < count; i++ {
		ptr, err := page.CellPointer(i)
		if err != nil {
			fmt.Printf("cell %d: %v\n", i, err)
			return
		}
		fmt.Printf("cell %d:           content at %d\n", i, ptr)
	}
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("dbpage version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("dbpage"),
		kong.Description("SQLite page-level inspection tool"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	level := logging.LevelWarn
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if CLI.JSONLog {
		format = logging.FormatJSON
	}
	logging.InitLogger(level, format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
