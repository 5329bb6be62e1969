package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tapeingest/internal/quote"
	"tapeingest/internal/tape"
)

// envPrefix namespaces environment overrides, e.g. TAPE_PROVIDER_INTERVAL.
const envPrefix = "TAPE"

// maxOutputSize is the provider's per-request row cap.
const maxOutputSize = 5000

var labelRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

type Provider struct {
	Name                  string `json:"name"`
	Endpoint              string `json:"endpoint"`
	// APIKey is also read from TWELVEDATA_API_KEY.
	APIKey     string `json:"api_key" envconfig:"TWELVEDATA_API_KEY"`
	Interval   string `json:"interval"`
	OutputSize int    `json:"output_size" split_words:"true"`
	Timezone   string `json:"timezone"`
	// Location is the IANA zone the returned datetimes are read in. Empty means UTC.
	Location              string `json:"location"`
	Order                 string `json:"order"`
	RequestTimeoutSec     int    `json:"request_timeout_sec" split_words:"true"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" split_words:"true"`
	Burst                 int    `json:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" split_words:"true"`
	MaxConcurrency        int    `json:"max_concurrency" split_words:"true"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec" envconfig:"CACHE_TTL_SEC"`
	CacheMaxItems         int    `json:"cache_max_items" split_words:"true"`
}

type Output struct {
	Path     string `json:"path"`
	Strategy string `json:"strategy"`
}

type Server struct {
	Port              string `json:"port" envconfig:"PORT"`
	RequestTimeoutSec int    `json:"request_timeout_sec" split_words:"true"`
}

type Log struct {
	Production bool   `json:"production"`
	Level      string `json:"level"`
}

type Config struct {
	// Instruments order is the tie-break rank written into the tape.
	Instruments Instruments `json:"instruments"`
	Provider    Provider    `json:"provider"`
	Output      Output      `json:"output"`
	Server      Server      `json:"server"`
	Log         Log         `json:"log"`
}

func Default() Config {
	return Config{
		Instruments: Instruments{
			{Ticker: "PEP", Label: "SYM_A"},
			{Ticker: "PG", Label: "SYM_B"},
		},
		Provider: Provider{
			Name:                 "TwelveData",
			Endpoint:             "https://api.twelvedata.com",
			Interval:             "1min",
			OutputSize:           maxOutputSize,
			RequestTimeoutSec:    30,
			MaxRequestsPerMinute: 8,
			Burst:                8,
			MaxConcurrency:       4,
			CacheTTLSeconds:      60,
			CacheMaxItems:        1000,
		},
		Output: Output{Path: "data/tick_data.csv", Strategy: "heap"},
		Server: Server{Port: "8080", RequestTimeoutSec: 60},
		Log:    Log{Level: "info"},
	}
}

// Load reads JSON config from path, which must exist when given. If path is
// empty, ./config.json is used when present. A .env file, if any, is loaded into the environment first, and
// TAPE_* variables override file values. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !explicit:
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a run cannot proceed without.
func (c Config) Validate() error {
	var errs []error
	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("instruments: at least one is required"))
	}
	if err := c.Instruments.Validate(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Provider.Interval) == "" {
		errs = append(errs, errors.New("provider.interval is required"))
	}
	if c.Provider.OutputSize < 0 || c.Provider.OutputSize > maxOutputSize {
		errs = append(errs, fmt.Errorf("provider.output_size must be within 0..%d, got %d", maxOutputSize, c.Provider.OutputSize))
	}
	switch strings.ToLower(c.Provider.Order) {
	case "", "asc", "desc":
	default:
		errs = append(errs, fmt.Errorf("provider.order must be asc or desc, got %q", c.Provider.Order))
	}
	if _, err := c.Provider.LoadLocation(); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if _, err := tape.ParseStrategy(c.Output.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("output.strategy: %w", err))
	}
	return errors.Join(errs...)
}

// LoadLocation resolves Location; empty yields nil, which readers treat as UTC.
func (p Provider) LoadLocation() (*time.Location, error) {
	if strings.TrimSpace(p.Location) == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(p.Location)
	if err != nil {
		return nil, fmt.Errorf("provider.location: %w", err)
	}
	return loc, nil
}

// Instruments is the ordered instrument list. From the environment it is read
// as "TICKER:LABEL,TICKER:LABEL"; a bare TICKER is its own label.
type Instruments []quote.Instrument

// Decode implements envconfig.Decoder.
func (in *Instruments) Decode(value string) error {
	parsed, err := ParseInstruments(value)
	if err != nil {
		return err
	}
	*in = parsed
	return nil
}

// ParseInstruments parses "TICKER:LABEL,..." in order.
func ParseInstruments(s string) (Instruments, error) {
	parts := splitCSV(s)
	out := make(Instruments, 0, len(parts))
	for _, p := range parts {
		ticker, label := p, p
		if i := strings.LastIndex(p, ":"); i >= 0 {
			ticker, label = strings.TrimSpace(p[:i]), strings.TrimSpace(p[i+1:])
		}
		if ticker == "" || label == "" {
			return nil, fmt.Errorf("instrument %q: want TICKER:LABEL", p)
		}
		out = append(out, quote.Instrument{Ticker: ticker, Label: label})
	}
	return out, nil
}

// Validate requires non-empty tickers and unique bare-token labels.
func (in Instruments) Validate() error {
	seen := make(map[string]int, len(in))
	for i, inst := range in {
		if strings.TrimSpace(inst.Ticker) == "" {
			return fmt.Errorf("instruments[%d]: ticker is required", i)
		}
		if !labelRe.MatchString(inst.Label) {
			return fmt.Errorf("instruments[%d]: label %q must match %s", i, inst.Label, labelRe)
		}
		if j, dup := seen[inst.Label]; dup {
			return fmt.Errorf("instruments[%d]: label %q already used by instruments[%d]", i, inst.Label, j)
		}
		seen[inst.Label] = i
	}
	return nil
}

// Ranks maps each label to its position.
func (in Instruments) Ranks() map[string]int {
	out := make(map[string]int, len(in))
	for i, inst := range in {
		out[inst.Label] = i
	}
	return out
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
