// Package sheet accepts uploaded spreadsheets and decodes their first sheet
// into header-keyed rows.
//
// The flow is Gate (name, size) then Parser (bytes to rows), both driven by
// an Ingestor that bounds how many parses run at once and how long each may
// take.
package sheet

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/sheetgate/internal/core"
)

// DefaultMaxFileSize is the upload ceiling in bytes.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// Client-facing messages.
const (
	MsgNoFile          = "No file uploaded or invalid file type"
	MsgWrongExtension  = "Only .xls and .xlsx files are allowed"
	MsgEmptyFile       = "File is empty"
	MsgInvalidFormat   = "Invalid Excel file format"
	MsgParseTimeout    = "Parsing timed out"
	MsgBusy            = "Server is busy processing other uploads. Please try again."
	MsgUploadSucceeded = "File uploaded and parsed successfully"
)

var allowedExtensions = map[string]bool{
	".xls":  true,
	".xlsx": true,
}

// Media types browsers commonly send for spreadsheets. Anything else is
// logged but not rejected.
var knownMediaTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel":                                          true,
	"application/octet-stream":                                          true,
}

// FileInfo describes an inbound file as declared by the client.
type FileInfo struct {
	Name      string
	MediaType string
	Size      int64
}

// Gate rejects files that must never reach the parser.
type Gate struct {
	maxSize int64
}

// NewGate creates a gate with the given ceiling. Non-positive means
// DefaultMaxFileSize.
func NewGate(maxSize int64) *Gate {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Gate{maxSize: maxSize}
}

// MaxSize returns the ceiling in bytes.
func (g *Gate) MaxSize() int64 {
	return g.maxSize
}

// Check validates extension, emptiness and size, in that order. The
// extension check is authoritative; MediaType is never used to reject.
func (g *Gate) Check(info FileInfo) error {
	name := strings.TrimSpace(info.Name)
	if name == "" {
		return core.UploadRejected(MsgNoFile)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return core.UploadRejected(fmt.Sprintf("%s (%s)", MsgWrongExtension, name))
	}
	if info.Size <= 0 {
		return core.UploadRejected(fmt.Sprintf("%s (%s)", MsgEmptyFile, name))
	}
	if info.Size > g.maxSize {
		return core.UploadRejected(g.TooLargeMessage(name))
	}
	return nil
}

// TooLargeMessage names the file and the ceiling.
func (g *Gate) TooLargeMessage(name string) string {
	if name == "" {
		return fmt.Sprintf("File exceeds the %s limit", humanSize(g.maxSize))
	}
	return fmt.Sprintf("File exceeds the %s limit (%s)", humanSize(g.maxSize), name)
}

// AdvisoryMediaType reports whether mediaType is one spreadsheets are
// usually sent with. An empty value counts as advisory-ok.
func AdvisoryMediaType(mediaType string) bool {
	if mediaType == "" {
		return true
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0]))
	return knownMediaTypes[mt]
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	const kb = 1024
	switch {
	case n >= mb && n%mb == 0:
		return fmt.Sprintf("%d MB", n/mb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%d KB", n/kb)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
