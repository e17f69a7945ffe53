package timing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains every tunable of the alignment engine.
//
// Env tags carry no defaults: DefaultConfig supplies them and an env overlay
// only replaces fields whose variable is actually set.
type Config struct {
	Sentence   SentenceConfig   `yaml:"sentence" mapstructure:"sentence" envPrefix:"SENTENCE_"`
	Chars      CharsConfig      `yaml:"chars" mapstructure:"chars" envPrefix:"CHARS_"`
	Gaps       GapConfig        `yaml:"gaps" mapstructure:"gaps" envPrefix:"GAPS_"`
	Collection CollectionConfig `yaml:"collection" mapstructure:"collection" envPrefix:"COLLECTION_"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache" envPrefix:"CACHE_"`
	Emitter    EmitterConfig    `yaml:"emitter" mapstructure:"emitter" envPrefix:"EMITTER_"`
	Fallback   FallbackConfig   `yaml:"fallback" mapstructure:"fallback" envPrefix:"FALLBACK_"`
	Worker     WorkerConfig     `yaml:"worker" mapstructure:"worker" envPrefix:"WORKER_"`
}

// SentenceConfig controls sentence boundary inference.
type SentenceConfig struct {
	PauseThreshold time.Duration `yaml:"pause_threshold" mapstructure:"pause_threshold" env:"PAUSE_THRESHOLD" validate:"gt=0"`
	BreakOnNewline bool          `yaml:"break_on_newline" mapstructure:"break_on_newline" env:"BREAK_ON_NEWLINE"`
	SearchWindow   int           `yaml:"search_window" mapstructure:"search_window" env:"SEARCH_WINDOW" validate:"gte=0,lte=64"`
	Language       string        `yaml:"language" mapstructure:"language" env:"LANGUAGE" validate:"bcp47_language_tag"`
}

// CharsConfig controls the character to word transformation.
type CharsConfig struct {
	LastCharDuration time.Duration `yaml:"last_char_duration" mapstructure:"last_char_duration" env:"LAST_CHAR_DURATION" validate:"gte=0"`
}

// GapConfig controls inter-word gap elimination.
type GapConfig struct {
	Eliminate      bool          `yaml:"eliminate" mapstructure:"eliminate" env:"ELIMINATE"`
	SplitThreshold time.Duration `yaml:"split_threshold" mapstructure:"split_threshold" env:"SPLIT_THRESHOLD" validate:"gte=0"`
}

// CollectionConfig controls the query engine.
type CollectionConfig struct {
	SeekDebounce   time.Duration `yaml:"seek_debounce" mapstructure:"seek_debounce" env:"SEEK_DEBOUNCE" validate:"gte=0"`
	LookupInterval time.Duration `yaml:"lookup_interval" mapstructure:"lookup_interval" env:"LOOKUP_INTERVAL" validate:"gte=1ms"`
	BuildLookup    bool          `yaml:"build_lookup" mapstructure:"build_lookup" env:"BUILD_LOOKUP"`
}

// CacheConfig controls the document cache tiers.
type CacheConfig struct {
	MaxDocuments     int    `yaml:"max_documents" mapstructure:"max_documents" env:"MAX_DOCUMENTS" validate:"gte=1"`
	Dir              string `yaml:"dir" mapstructure:"dir" env:"DIR"`
	Backend          string `yaml:"backend" mapstructure:"backend" env:"BACKEND" validate:"oneof=disk badger memory"`
	CompressionLevel int    `yaml:"compression_level" mapstructure:"compression_level" env:"COMPRESSION_LEVEL" validate:"gte=1,lte=22"`
}

// EmitterConfig controls position emission.
type EmitterConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval" env:"INTERVAL" validate:"gte=1ms"`
	Buffer   int           `yaml:"buffer" mapstructure:"buffer" env:"BUFFER" validate:"gte=1"`
}

// FallbackConfig controls the synthetic timing generator.
type FallbackConfig struct {
	WordsPerMinute int `yaml:"words_per_minute" mapstructure:"words_per_minute" env:"WORDS_PER_MINUTE" validate:"gte=50,lte=500"`
}

// WorkerConfig controls alignment offload. Zero concurrency runs inline.
type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency" env:"CONCURRENCY" validate:"gte=-1,lte=64"`
}

// Defaults observed in production narration.
const (
	DefaultPauseThreshold   = 350 * time.Millisecond
	DefaultSearchWindow     = 6
	DefaultLastCharDuration = 100 * time.Millisecond
	DefaultSplitThreshold   = 500 * time.Millisecond
	DefaultSeekDebounce     = 100 * time.Millisecond
	DefaultLookupInterval   = 10 * time.Millisecond
	DefaultMaxDocuments     = 10
	DefaultEmitInterval     = 16 * time.Millisecond
	DefaultWordsPerMinute   = 150
	DefaultLanguage         = "en"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Sentence: SentenceConfig{
			PauseThreshold: DefaultPauseThreshold,
			BreakOnNewline: true,
			SearchWindow:   DefaultSearchWindow,
			Language:       DefaultLanguage,
		},
		Chars: CharsConfig{
			LastCharDuration: DefaultLastCharDuration,
		},
		Gaps: GapConfig{
			Eliminate:      true,
			SplitThreshold: DefaultSplitThreshold,
		},
		Collection: CollectionConfig{
			SeekDebounce:   DefaultSeekDebounce,
			LookupInterval: DefaultLookupInterval,
		},
		Cache: CacheConfig{
			MaxDocuments:     DefaultMaxDocuments,
			Dir:              defaultCacheDir(),
			Backend:          "disk",
			CompressionLevel: 3,
		},
		Emitter: EmitterConfig{
			Interval: DefaultEmitInterval,
			Buffer:   1,
		},
		Fallback: FallbackConfig{
			WordsPerMinute: DefaultWordsPerMinute,
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "narrasync")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report yaml key names so messages match the config file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)",
				strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag(), fe.Param(), fe.Value()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}

	if c.Gaps.Eliminate && c.Gaps.SplitThreshold < c.Sentence.PauseThreshold {
		return fmt.Errorf("%w: gaps.split_threshold (%v) must not be below sentence.pause_threshold (%v)",
			ErrInvalidConfig, c.Gaps.SplitThreshold, c.Sentence.PauseThreshold)
	}
	if c.Cache.Backend != "memory" && c.Cache.Dir == "" {
		return fmt.Errorf("%w: cache.dir is required for the %s backend", ErrInvalidConfig, c.Cache.Backend)
	}

	return nil
}
