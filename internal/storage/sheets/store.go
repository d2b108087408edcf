// Package sheets appends distribution records to a Google Sheets tab using a
// service-account credential.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/humetime/backend/internal/distribution"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	defaultSheetName  = "Sheet1"
	valueInputOption  = "RAW"
	insertDataOption  = "INSERT_ROWS"
	headerColumnRange = "A1:G1"
)

var (
	errMissingSpreadsheetID = errors.New("sheets.spreadsheet_id is required")
	errMissingCredentials   = errors.New("sheets.credentials_json or sheets.credentials_file is required")
)

type Config struct {
	CredentialsJSON string
	CredentialsFile string
	SpreadsheetID   string
	SheetName       string
	Logger          *zap.Logger
}

type serviceFactory func(ctx context.Context) (*sheetsapi.Service, error)

// Store appends one row per record through the Sheets values.append call.
type Store struct {
	cfg        Config
	newService serviceFactory
	logger     *zap.Logger

	mu      sync.Mutex
	service *sheetsapi.Service

	// headerMu is held across the header lookup and write so concurrent first
	// appends cannot each add a header row.
	headerMu      sync.Mutex
	headerChecked bool
}

// NewStore never fails: missing settings are reported by every Append.
func NewStore(cfg Config) *Store {
	if strings.TrimSpace(cfg.SheetName) == "" {
		cfg.SheetName = defaultSheetName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &Store{cfg: cfg, logger: logger}
	store.newService = store.serviceFromCredentials
	return store
}

func (s *Store) Append(ctx context.Context, record distribution.Record) error {
	if strings.TrimSpace(s.cfg.SpreadsheetID) == "" {
		return fmt.Errorf("%w: %w", distribution.ErrConfiguration, errMissingSpreadsheetID)
	}

	service, err := s.client(ctx)
	if err != nil {
		return err
	}
	if err := s.ensureHeader(ctx, service); err != nil {
		return err
	}
	return s.appendRow(ctx, service, record.Values())
}

func (s *Store) client(ctx context.Context) (*sheetsapi.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.service != nil {
		return s.service, nil
	}
	service, err := s.newService(ctx)
	if err != nil {
		return nil, err
	}
	s.service = service
	return service, nil
}

func (s *Store) serviceFromCredentials(ctx context.Context) (*sheetsapi.Service, error) {
	blob := []byte(strings.TrimSpace(s.cfg.CredentialsJSON))
	if len(blob) == 0 && strings.TrimSpace(s.cfg.CredentialsFile) != "" {
		content, err := os.ReadFile(s.cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: read credentials file: %w", distribution.ErrConfiguration, err)
		}
		blob = content
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %w", distribution.ErrConfiguration, errMissingCredentials)
	}

	credentials, err := google.CredentialsFromJSON(ctx, blob, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%w: parse credentials: %w", distribution.ErrConfiguration, err)
	}
	service, err := sheetsapi.NewService(ctx, option.WithCredentials(credentials))
	if err != nil {
		return nil, fmt.Errorf("%w: create sheets client: %w", distribution.ErrConfiguration, err)
	}
	return service, nil
}

// ensureHeader writes the column names when the tab is empty. A failed check is
// retried by the next append; a successful one is not repeated.
func (s *Store) ensureHeader(ctx context.Context, service *sheetsapi.Service) error {
	s.headerMu.Lock()
	defer s.headerMu.Unlock()
	if s.headerChecked {
		return nil
	}

	existing, err := service.Spreadsheets.Values.
		Get(s.cfg.SpreadsheetID, s.a1Range(headerColumnRange)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: read header: %w", err)
	}
	if len(existing.Values) == 0 {
		header := make([]any, len(distribution.Columns))
		for index, column := range distribution.Columns {
			header[index] = column
		}
		if err := s.appendRow(ctx, service, header); err != nil {
			return err
		}
		s.logger.Info("sheets header written", zap.String("sheet", s.cfg.SheetName))
	}

	s.headerChecked = true
	return nil
}

func (s *Store) appendRow(ctx context.Context, service *sheetsapi.Service, values []any) error {
	body := &sheetsapi.ValueRange{Values: [][]any{values}}
	response, err := service.Spreadsheets.Values.
		Append(s.cfg.SpreadsheetID, s.a1Range("A1"), body).
		ValueInputOption(valueInputOption).
		InsertDataOption(insertDataOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append row: %w", err)
	}
	if response.Updates != nil {
		s.logger.Debug("sheets row appended", zap.String("range", response.Updates.UpdatedRange))
	}
	return nil
}

// a1Range quotes the tab name so names with spaces or quotes stay valid.
func (s *Store) a1Range(cells string) string {
	return "'" + strings.ReplaceAll(s.cfg.SheetName, "'", "''") + "'!" + cells
}
