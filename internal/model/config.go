package model

import (
	"regexp"
	"time"

	"github.com/ppiankov/wikiner/internal/errors"
)

// Config holds the complete wikiner configuration
type Config struct {
	Database       DatabaseConfig    `yaml:"database" mapstructure:"database"`
	SearchFlags    SearchFlags       `yaml:"search_flags" mapstructure:"search_flags"`
	Edges          EdgesConfig       `yaml:"edges" mapstructure:"edges"`
	Writer         WriterConfig      `yaml:"writer" mapstructure:"writer"`
	Concurrency    ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache          CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Metrics        MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Tracing        TracingConfig     `yaml:"tracing" mapstructure:"tracing"`
	Log            LogConfig         `yaml:"log" mapstructure:"log"`
	Event          EventConfig       `yaml:"event" mapstructure:"event"`
	CategoriesFile string            `yaml:"categories_file" mapstructure:"categories_file"`
}

// DatabaseConfig locates the corpus (source) and the output (destination) stores
type DatabaseConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres
	Host             string `yaml:"host" mapstructure:"host"`
	Port             int    `yaml:"port" mapstructure:"port"`
	Auth             bool   `yaml:"auth" mapstructure:"auth"`
	User             string `yaml:"user" mapstructure:"user"`
	Password         string `yaml:"password" mapstructure:"password"`
	SourceDB         string `yaml:"source_db" mapstructure:"source_db"` // sqlite file path or postgres database
	DestDB           string `yaml:"dest_db" mapstructure:"dest_db"`
	SourceCollection string `yaml:"source_collection" mapstructure:"source_collection"`
	DestCollection   string `yaml:"dest_collection" mapstructure:"dest_collection"`
}

// SearchFlags gate each category run
type SearchFlags struct {
	Person       bool `yaml:"person" mapstructure:"person"`
	Location     bool `yaml:"location" mapstructure:"location"`
	Organization bool `yaml:"organization" mapstructure:"organization"`
	Event        bool `yaml:"event" mapstructure:"event"`
	Language     bool `yaml:"language" mapstructure:"language"`
	Brand        bool `yaml:"brand" mapstructure:"brand"`
	Facility     bool `yaml:"facility" mapstructure:"facility"`
	Time         bool `yaml:"time" mapstructure:"time"`
	Title        bool `yaml:"title" mapstructure:"title"`
	Work         bool `yaml:"work" mapstructure:"work"`
}

// Enabled reports whether the flag for c is set
func (f SearchFlags) Enabled(c Category) bool {
	switch c {
	case CategoryPerson:
		return f.Person
	case CategoryLocation:
		return f.Location
	case CategoryOrganization:
		return f.Organization
	case CategoryEvent:
		return f.Event
	case CategoryLanguage:
		return f.Language
	case CategoryBrand:
		return f.Brand
	case CategoryFacility:
		return f.Facility
	case CategoryTime:
		return f.Time
	case CategoryTitle:
		return f.Title
	case CategoryWork:
		return f.Work
	}
	return false
}

// EnabledCategories returns the enabled categories in pipeline order
func (f SearchFlags) EnabledCategories() []Category {
	var out []Category
	for _, c := range AllCategories {
		if f.Enabled(c) {
			out = append(out, c)
		}
	}
	return out
}

// EdgesConfig configures the subclass relation source
type EdgesConfig struct {
	Source            string        `yaml:"source" mapstructure:"source"` // sparql, corpus
	Endpoint          string        `yaml:"endpoint" mapstructure:"endpoint"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Property          string        `yaml:"property" mapstructure:"property"`
	MaxAttempts       int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BatchSize         int           `yaml:"batch_size" mapstructure:"batch_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	RespectRobots     bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// WriterConfig configures the conflict-aware writer
type WriterConfig struct {
	BatchSize int  `yaml:"batch_size" mapstructure:"batch_size"`
	Prefetch  bool `yaml:"prefetch" mapstructure:"prefetch"`
}

// ConcurrencyConfig controls cross-category parallelism
type ConcurrencyConfig struct {
	Categories int `yaml:"categories" mapstructure:"categories"`
}

// CacheConfig controls memoisation of edge lookups
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// MetricsConfig controls progress metrics
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty" mapstructure:"pushgateway_url"`
	Job            string `yaml:"job" mapstructure:"job"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// LogConfig controls logger output
type LogConfig struct {
	JSON  bool   `yaml:"json" mapstructure:"json"`
	Level string `yaml:"level" mapstructure:"level"`
}

// EventConfig toggles optional event extractors
type EventConfig struct {
	OfficialOpening bool `yaml:"official_opening" mapstructure:"official_opening"`
}

// DefaultConfig returns sensible defaults: sqlite stores in the working
// directory, the public Wikidata endpoint, every category enabled.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           "sqlite",
			Host:             "localhost",
			Port:             5432,
			SourceDB:         "wikidata.db",
			DestDB:           "wikiner.db",
			SourceCollection: "items",
			DestCollection:   "entities",
		},
		SearchFlags: SearchFlags{
			Person:       true,
			Location:     true,
			Organization: true,
			Event:        true,
			Language:     true,
			Brand:        true,
			Facility:     true,
			Time:         true,
			Title:        true,
			Work:         true,
		},
		Edges: EdgesConfig{
			Source:            "sparql",
			Endpoint:          "https://query.wikidata.org/sparql",
			UserAgent:         "wikiner/0.1 (+https://github.com/ppiankov/wikiner)",
			Timeout:           60 * time.Second,
			Property:          PropSubclassOf,
			MaxAttempts:       5,
			BatchSize:         200,
			RequestsPerSecond: 1,
			Burst:             2,
			RespectRobots:     true,
		},
		Writer: WriterConfig{
			BatchSize: 1000,
		},
		Concurrency: ConcurrencyConfig{
			Categories: 1,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     6 * time.Hour,
		},
		Metrics: MetricsConfig{
			Job: "wikiner",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether s can be used as a table name
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.NewInvalidConfig("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.SourceDB == "" || c.Database.DestDB == "" {
		return errors.NewInvalidConfig("database.source_db and database.dest_db are required")
	}
	for _, name := range []string{c.Database.SourceCollection, c.Database.DestCollection} {
		if !ValidIdentifier(name) {
			return errors.NewInvalidConfig("invalid collection name %q", name)
		}
	}
	switch c.Edges.Source {
	case "sparql":
		if c.Edges.Endpoint == "" {
			return errors.NewInvalidConfig("edges.endpoint is required for the sparql source")
		}
	case "corpus":
	default:
		return errors.NewInvalidConfig("edges.source must be sparql or corpus, got %q", c.Edges.Source)
	}
	if c.Edges.MaxAttempts <= 0 {
		return errors.NewInvalidConfig("edges.max_attempts must be positive")
	}
	if c.Edges.BatchSize <= 0 {
		return errors.NewInvalidConfig("edges.batch_size must be positive")
	}
	if c.Writer.BatchSize <= 0 {
		return errors.NewInvalidConfig("writer.batch_size must be positive")
	}
	return nil
}
