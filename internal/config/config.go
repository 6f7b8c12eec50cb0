package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/image-search/internal/catalog"
	"github.com/kozaktomas/image-search/internal/constants"
	"github.com/kozaktomas/image-search/internal/features"
)

//go:embed search.yaml
var searchYAML []byte

type Config struct {
	Search   SearchConfig
	Database DatabaseConfig
	Store    StoreConfig
	Images   ImagesConfig
	Ingest   IngestConfig
	Web      WebConfig
}

// SearchConfig holds the feature extraction and query defaults.
type SearchConfig struct {
	Histogram     HistogramConfig `yaml:"histogram"`
	NamedColors   []ColorEntry    `yaml:"named_colors"`
	Moments       MomentsConfig   `yaml:"moments"`
	Categories    []string        `yaml:"categories"`
	CorpusMaxSize int             `yaml:"corpus_max_size"`
	KeywordLimit  int             `yaml:"keyword_limit"`
	ShownResults  int             `yaml:"shown_results"`
}

type HistogramConfig struct {
	TotalThreshold   int          `yaml:"total_threshold"`
	ChannelThreshold int          `yaml:"channel_threshold"`
	Colors           []ColorEntry `yaml:"colors"`
}

type ColorEntry struct {
	Name string `yaml:"name"`
	Hex  string `yaml:"hex"`
}

type MomentsConfig struct {
	HBlocks int `yaml:"h_blocks"`
	VBlocks int `yaml:"v_blocks"`
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
	MariaDBDSN   string // MariaDB/MySQL DSN, used when URL is empty
	SQLitePath   string // SQLite file, used when neither server database is set
}

type StoreConfig struct {
	Path string // JSON snapshot file, used when no database is configured
}

type ImagesConfig struct {
	Root         string // directory image IDs are resolved against
	MaxImageSize int    // longer side after downscaling (default 1920)
}

type IngestConfig struct {
	Workers       int           // parallel decodes (default 20)
	DecodeTimeout time.Duration // per image (default 30s)
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envDuration reads a Go duration from the environment, falling back to
// defaultVal when unset or not positive.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for part := range strings.SplitSeq(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	var search SearchConfig
	if err := yaml.Unmarshal(searchYAML, &search); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded search.yaml: " + err.Error())
	}
	search.CorpusMaxSize = envInt("CORPUS_MAX_SIZE", search.CorpusMaxSize)

	return &Config{
		Search: search,
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			SQLitePath:   os.Getenv("SQLITE_PATH"),
		},
		Store: StoreConfig{
			Path: envString("STORE_PATH", "corpus.json"),
		},
		Images: ImagesConfig{
			Root:         envString("IMAGES_ROOT", "."),
			MaxImageSize: envInt("MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Ingest: IngestConfig{
			Workers:       envInt("INGEST_WORKERS", 20),
			DecodeTimeout: envDuration("DECODE_TIMEOUT", 30*time.Second),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
	}
}

// Palette builds the histogram palette.
func (c *SearchConfig) Palette() (*features.Palette, error) {
	colors := make([]features.RGB, len(c.Histogram.Colors))
	names := make([]string, len(c.Histogram.Colors))
	for i, e := range c.Histogram.Colors {
		rgb, err := features.ParseHex(e.Hex)
		if err != nil {
			return nil, fmt.Errorf("histogram color %q: %w", e.Name, err)
		}
		colors[i] = rgb
		names[i] = e.Name
	}
	return features.NewPalette(colors, names, c.Histogram.TotalThreshold, c.Histogram.ChannelThreshold)
}

// NamedPalette builds the anchor colours used for dominant-colour buckets.
func (c *SearchConfig) NamedPalette() (*catalog.NamedPalette, error) {
	colors := make([]catalog.NamedColor, len(c.NamedColors))
	for i, e := range c.NamedColors {
		rgb, err := features.ParseHex(e.Hex)
		if err != nil {
			return nil, fmt.Errorf("named color %q: %w", e.Name, err)
		}
		colors[i] = catalog.NamedColor{Name: e.Name, RGB: rgb}
	}
	return catalog.NewNamedPalette(colors)
}

// CorpusOptions returns the corpus shape implied by the configuration.
func (c *SearchConfig) CorpusOptions() catalog.Options {
	return catalog.Options{
		MaxSize:     c.CorpusMaxSize,
		PaletteSize: len(c.Histogram.Colors),
		HBlocks:     c.Moments.HBlocks,
		VBlocks:     c.Moments.VBlocks,
	}
}
