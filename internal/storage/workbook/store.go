// Package workbook persists distribution records to a local .xlsx file.
//
// Every append reads the whole table, adds one row and rewrites the file. Without
// SerializeWrites two overlapping appends can each read the same table and the later
// rewrite drops the other's row.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/humetime/backend/internal/distribution"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const defaultSheet = "Sheet1"

var (
	errMissingPath     = errors.New("workbook: path is required")
	errUnexpectedTable = errors.New("workbook: unexpected header row")
)

// numericColumns are written back as numbers after a read.
var numericColumns = map[int]bool{1: true, 2: true, 4: true}

type Config struct {
	Path            string
	Sheet           string
	SerializeWrites bool
	Logger          *zap.Logger
}

// Store appends records to a spreadsheet file.
type Store struct {
	path      string
	sheet     string
	serialize bool
	mu        sync.Mutex
	logger    *zap.Logger
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: %w", distribution.ErrConfiguration, errMissingPath)
	}
	sheet := cfg.Sheet
	if sheet == "" {
		sheet = defaultSheet
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:      cfg.Path,
		sheet:     sheet,
		serialize: cfg.SerializeWrites,
		logger:    logger,
	}, nil
}

// Path returns the workbook location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Append(ctx context.Context, record distribution.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.serialize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	if err := s.ensure(); err != nil {
		return err
	}
	rows, err := s.load()
	if err != nil {
		return err
	}
	rows = append(rows, record.Values())
	if err := s.save(rows); err != nil {
		return err
	}
	s.logger.Debug("workbook row appended", zap.String("path", s.path), zap.Int("rows", len(rows)))
	return nil
}

// ensure creates the parent directory and an empty table with the header row.
func (s *Store) ensure() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("workbook: create directory: %w", err)
		}
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("workbook: stat: %w", err)
	}
	s.logger.Info("creating workbook", zap.String("path", s.path))
	return s.save(nil)
}

// load returns the data rows below the header.
func (s *Store) load() ([][]any, error) {
	file, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("workbook: open: %w", err)
	}
	defer file.Close()

	cells, err := file.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("workbook: read sheet %q: %w", s.sheet, err)
	}
	if len(cells) == 0 {
		return nil, nil
	}
	if err := checkHeader(cells[0]); err != nil {
		return nil, err
	}

	rows := make([][]any, 0, len(cells)-1)
	for _, line := range cells[1:] {
		row := make([]any, len(distribution.Columns))
		for index := range row {
			value := ""
			if index < len(line) {
				value = line[index]
			}
			row[index] = value
			if numericColumns[index] {
				if number, err := strconv.Atoi(value); err == nil {
					row[index] = number
				}
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// save rewrites the whole workbook through a temporary file and a rename.
func (s *Store) save(rows [][]any) error {
	file := excelize.NewFile()
	defer file.Close()

	if current := file.GetSheetName(0); current != s.sheet {
		if err := file.SetSheetName(current, s.sheet); err != nil {
			return fmt.Errorf("workbook: name sheet: %w", err)
		}
	}

	header := make([]any, len(distribution.Columns))
	for index, column := range distribution.Columns {
		header[index] = column
	}
	if err := s.writeRow(file, 1, header); err != nil {
		return err
	}
	for index, row := range rows {
		if err := s.writeRow(file, index+2, row); err != nil {
			return err
		}
	}

	temp, err := os.CreateTemp(filepath.Dir(s.path), ".distribution-*.xlsx")
	if err != nil {
		return fmt.Errorf("workbook: create temp file: %w", err)
	}
	tempPath := temp.Name()
	if _, err := file.WriteTo(temp); err != nil {
		temp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("workbook: write: %w", err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("workbook: close temp file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("workbook: replace file: %w", err)
	}
	return nil
}

func (s *Store) writeRow(file *excelize.File, rowNumber int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return fmt.Errorf("workbook: cell name: %w", err)
	}
	if err := file.SetSheetRow(s.sheet, cell, &values); err != nil {
		return fmt.Errorf("workbook: write row %d: %w", rowNumber, err)
	}
	return nil
}

func checkHeader(header []string) error {
	if len(header) != len(distribution.Columns) {
		return fmt.Errorf("%w: got %d columns", errUnexpectedTable, len(header))
	}
	for index, column := range distribution.Columns {
		if header[index] != column {
			return fmt.Errorf("%w: column %d is %q, want %q", errUnexpectedTable, index+1, header[index], column)
		}
	}
	return nil
}
