package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "HUMETIME"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultLogLevel       = "info"
	defaultLogEncoding    = "json"
	defaultBackend        = BackendWorkbook
	defaultWorkbookPath   = "distribution_log.xlsx"
	defaultSheetName      = "Sheet1"
	defaultDatabasePath   = "humetime.db"
	defaultSecretHeader   = "X-API-Key"
	defaultSerializeWrite = true
)

// Storage backends. Exactly one is active per process.
const (
	BackendWorkbook = "workbook"
	BackendSheets   = "sheets"
	BackendSQLite   = "sqlite"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress string
	LogLevel    string
	LogEncoding string
	Backend     string

	WorkbookPath            string
	WorkbookSheet           string
	WorkbookSerializeWrites bool

	SheetsCredentialsJSON string
	SheetsCredentialsFile string
	SheetsSpreadsheetID   string
	SheetsSheetName       string

	DatabasePath string

	SharedSecret       string
	SharedSecretHeader string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.encoding", defaultLogEncoding)
	configViper.SetDefault("storage.backend", defaultBackend)
	configViper.SetDefault("workbook.path", defaultWorkbookPath)
	configViper.SetDefault("workbook.sheet", defaultSheetName)
	configViper.SetDefault("workbook.serialize_writes", defaultSerializeWrite)
	configViper.SetDefault("sheets.sheet_name", defaultSheetName)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("auth.header", defaultSecretHeader)
}

// Load parses runtime configuration from viper. Remote spreadsheet settings are not
// checked here; the sheets store reports them per request.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:             configViper.GetString("http.address"),
		LogLevel:                configViper.GetString("log.level"),
		LogEncoding:             configViper.GetString("log.encoding"),
		Backend:                 strings.ToLower(strings.TrimSpace(configViper.GetString("storage.backend"))),
		WorkbookPath:            configViper.GetString("workbook.path"),
		WorkbookSheet:           configViper.GetString("workbook.sheet"),
		WorkbookSerializeWrites: configViper.GetBool("workbook.serialize_writes"),
		SheetsCredentialsJSON:   configViper.GetString("sheets.credentials_json"),
		SheetsCredentialsFile:   configViper.GetString("sheets.credentials_file"),
		SheetsSpreadsheetID:     configViper.GetString("sheets.spreadsheet_id"),
		SheetsSheetName:         configViper.GetString("sheets.sheet_name"),
		DatabasePath:            configViper.GetString("database.path"),
		SharedSecret:            configViper.GetString("auth.shared_secret"),
		SharedSecretHeader:      configViper.GetString("auth.header"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.Backend {
	case BackendWorkbook:
		if strings.TrimSpace(c.WorkbookPath) == "" {
			return fmt.Errorf("workbook.path is required")
		}
		if strings.TrimSpace(c.WorkbookSheet) == "" {
			return fmt.Errorf("workbook.sheet is required")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case BackendSheets:
	default:
		return fmt.Errorf("storage.backend %q is not one of %s, %s, %s", c.Backend, BackendWorkbook, BackendSheets, BackendSQLite)
	}
	if strings.TrimSpace(c.SharedSecret) != "" && strings.TrimSpace(c.SharedSecretHeader) == "" {
		return fmt.Errorf("auth.header is required when auth.shared_secret is set")
	}
	return nil
}
