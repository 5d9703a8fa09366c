// Package source reads a unicorn companies snapshot file into raw rows.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/snapshot"
)

var (
	ErrEmptySnapshot    = errors.New("empty snapshot")
	ErrMissingHeader    = errors.New("missing header")
	ErrUnsupportedType  = errors.New("unsupported source type")
	errInvalidHeaderEnc = errors.New("invalid header encoding")
)

// Source yields the data rows of one snapshot. Every call re-reads the
// underlying file, so a scheduler sees updates between cycles.
type Source interface {
	Extract(ctx context.Context) ([]snapshot.RawRow, error)
}

// Open picks a Source by file extension. sheet only applies to .xlsx files.
func Open(path, sheet string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt", "":
		return &CSVSource{Path: path}, nil
	case ".xlsx", ".xlsm":
		return &XLSXSource{Path: path, Sheet: sheet}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, path)
	}
}

func normalizeHeader(h []string) ([]string, error) {
	if len(h) == 0 {
		return nil, ErrMissingHeader
	}
	out := make([]string, len(h))
	blank := true
	for i := range h {
		out[i] = strings.TrimSpace(h[i])
		if !utf8.ValidString(out[i]) {
			return nil, errInvalidHeaderEnc
		}
		if out[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, ErrMissingHeader
	}
	return out, nil
}

// rowFromCells zips cells with header. A row whose cells are all blank
// yields ok=false. Unnamed columns are dropped.
func rowFromCells(line int, header, cells []string) (snapshot.RawRow, bool) {
	fields := make(map[string]string, len(header))
	blank := true
	for i, name := range header {
		if name == "" || i >= len(cells) {
			continue
		}
		fields[name] = cells[i]
		if strings.TrimSpace(cells[i]) != "" {
			blank = false
		}
	}
	if blank {
		return snapshot.RawRow{}, false
	}
	return snapshot.RawRow{Line: line, Fields: fields}, true
}
