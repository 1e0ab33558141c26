// Package config loads server settings from the environment and .env
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/thereceipt/certificate-engine/internal/store"
)

const DefaultPort = "12212"

type Config struct {
	Port string `mapstructure:"SERVER_PORT"`

	StoreDriver string `mapstructure:"STORE_DRIVER"` // file, sqlite, mysql
	StoreDSN    string `mapstructure:"STORE_DSN"`
	StorePath   string `mapstructure:"STORE_PATH"`

	OutputDir     string `mapstructure:"OUTPUT_DIR"`
	OutputBaseURL string `mapstructure:"OUTPUT_BASE_URL"`
	FontDir       string `mapstructure:"FONT_DIR"`
	ThemesFile    string `mapstructure:"THEMES_FILE"`

	StampKind     string `mapstructure:"STAMP_KIND"` // none, qr, code128, code39
	VerifyBaseURL string `mapstructure:"VERIFY_BASE_URL"`

	Workers       int     `mapstructure:"GENERATE_WORKERS"`
	GenerateRate  float64 `mapstructure:"GENERATE_RATE"` // requests per second per client
	GenerateBurst int     `mapstructure:"GENERATE_BURST"`

	NoTUI bool `mapstructure:"NO_TUI"`
}

// String implements fmt.Stringer with the DSN password masked
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  Port: %s\n", c.Port))
	sb.WriteString(fmt.Sprintf("  StoreDriver: %s\n", c.StoreDriver))
	if c.StoreDSN != "" {
		sb.WriteString(fmt.Sprintf("  StoreDSN: %s\n", store.RedactDSN(c.StoreDriver, c.StoreDSN)))
	} else {
		sb.WriteString("  StoreDSN: (empty)\n")
	}
	sb.WriteString(fmt.Sprintf("  StorePath: %s\n", c.StorePath))
	sb.WriteString(fmt.Sprintf("  OutputDir: %s\n", c.OutputDir))
	sb.WriteString(fmt.Sprintf("  OutputBaseURL: %s\n", c.OutputBaseURL))
	sb.WriteString(fmt.Sprintf("  FontDir: %s\n", c.FontDir))
	sb.WriteString(fmt.Sprintf("  ThemesFile: %s\n", c.ThemesFile))
	sb.WriteString(fmt.Sprintf("  StampKind: %s\n", c.StampKind))
	sb.WriteString(fmt.Sprintf("  VerifyBaseURL: %s\n", c.VerifyBaseURL))
	sb.WriteString(fmt.Sprintf("  Workers: %d\n", c.Workers))
	sb.WriteString(fmt.Sprintf("  GenerateRate: %v\n", c.GenerateRate))
	sb.WriteString(fmt.Sprintf("  GenerateBurst: %d\n", c.GenerateBurst))
	sb.WriteString(fmt.Sprintf("  NoTUI: %v\n", c.NoTUI))
	return sb.String()
}

// StoreOptions converts the store settings
func (c *Config) StoreOptions() store.Options {
	return store.Options{Driver: c.StoreDriver, DSN: c.StoreDSN, Path: c.StorePath}
}

// Load reads ./.env when present, then the environment, then the --port and
// --no-tui flags in args
func Load(args []string) (*Config, error) {
	return LoadFile(".env", args)
}

// LoadFile is Load with an explicit env file. Variables already set in the
// environment win over the file.
func LoadFile(envFile string, args []string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.New("failed to load " + envFile)
			}
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", DefaultPort)
	v.SetDefault("STORE_DRIVER", "file")
	v.SetDefault("OUTPUT_DIR", "output")
	v.SetDefault("STAMP_KIND", "none")
	v.SetDefault("GENERATE_WORKERS", 2)
	v.SetDefault("GENERATE_RATE", 1.0)
	v.SetDefault("GENERATE_BURST", 3)
	v.SetDefault("NO_TUI", false)

	keys := []string{
		"SERVER_PORT",
		"STORE_DRIVER", "STORE_DSN", "STORE_PATH",
		"OUTPUT_DIR", "OUTPUT_BASE_URL", "FONT_DIR", "THEMES_FILE",
		"STAMP_KIND", "VERIFY_BASE_URL",
		"GENERATE_WORKERS", "GENERATE_RATE", "GENERATE_BURST",
		"NO_TUI",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	for i, arg := range args {
		switch {
		case arg == "--port" && i+1 < len(args):
			cfg.Port = args[i+1]
		case arg == "--no-tui":
			cfg.NoTUI = true
		}
	}

	if cfg.StoreDriver == "file" && cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "file":
	case "sqlite", "mysql":
		if c.StoreDSN == "" {
			return fmt.Errorf("STORE_DSN is required for driver %s", c.StoreDriver)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.GenerateRate <= 0 || c.GenerateBurst < 1 {
		return fmt.Errorf("GENERATE_RATE and GENERATE_BURST must be positive")
	}
	return nil
}

// DefaultStorePath places templates.json next to the executable when that
// directory is writable, otherwise in the working directory or the user
// config directory
func DefaultStorePath() string {
	const name = "templates.json"

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		testFile := filepath.Join(exeDir, ".certificate-engine-write-test")
		if f, err := os.Create(testFile); err == nil {
			f.Close()
			os.Remove(testFile)
			return filepath.Join(exeDir, name)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, name)
	}

	var configDir string
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, "certificate-engine")
		}
	} else if home := os.Getenv("HOME"); home != "" {
		configDir = filepath.Join(home, ".config", "certificate-engine")
	}
	if configDir != "" {
		os.MkdirAll(configDir, 0755)
		return filepath.Join(configDir, name)
	}
	return name
}
