package timing

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the engine reads.
const EnvPrefix = "NARRASYNC_"

// LoadConfigFromViper builds a Config from defaults, the keys set in viper
// and finally NARRASYNC_* environment variables.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	// Sentence inference
	setDuration(&cfg.Sentence.PauseThreshold, "sentence.pause_threshold")
	if viper.IsSet("sentence.break_on_newline") {
		cfg.Sentence.BreakOnNewline = viper.GetBool("sentence.break_on_newline")
	}
	if viper.IsSet("sentence.search_window") {
		cfg.Sentence.SearchWindow = viper.GetInt("sentence.search_window")
	}
	if viper.IsSet("sentence.language") {
		cfg.Sentence.Language = viper.GetString("sentence.language")
	}

	// Character transformation and gaps
	setDuration(&cfg.Chars.LastCharDuration, "chars.last_char_duration")
	if viper.IsSet("gaps.eliminate") {
		cfg.Gaps.Eliminate = viper.GetBool("gaps.eliminate")
	}
	setDuration(&cfg.Gaps.SplitThreshold, "gaps.split_threshold")

	// Query engine
	setDuration(&cfg.Collection.SeekDebounce, "collection.seek_debounce")
	setDuration(&cfg.Collection.LookupInterval, "collection.lookup_interval")
	if viper.IsSet("collection.build_lookup") {
		cfg.Collection.BuildLookup = viper.GetBool("collection.build_lookup")
	}

	// Cache
	if viper.IsSet("cache.max_documents") {
		cfg.Cache.MaxDocuments = viper.GetInt("cache.max_documents")
	}
	if viper.IsSet("cache.dir") {
		cfg.Cache.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.backend") {
		cfg.Cache.Backend = viper.GetString("cache.backend")
	}
	if viper.IsSet("cache.compression_level") {
		cfg.Cache.CompressionLevel = viper.GetInt("cache.compression_level")
	}

	// Emitter, fallback, worker
	setDuration(&cfg.Emitter.Interval, "emitter.interval")
	if viper.IsSet("emitter.buffer") {
		cfg.Emitter.Buffer = viper.GetInt("emitter.buffer")
	}
	if viper.IsSet("fallback.words_per_minute") {
		cfg.Fallback.WordsPerMinute = viper.GetInt("fallback.words_per_minute")
	}
	if viper.IsSet("worker.concurrency") {
		cfg.Worker.Concurrency = viper.GetInt("worker.concurrency")
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	dir, err := homedir.Expand(cfg.Cache.Dir)
	if err != nil {
		return cfg, fmt.Errorf("expand cache.dir: %w", err)
	}
	cfg.Cache.Dir = dir

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays NARRASYNC_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// setDuration accepts both "350ms" strings and bare integers (milliseconds).
func setDuration(dst *time.Duration, key string) {
	if !viper.IsSet(key) {
		return
	}
	raw := viper.GetString(key)
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
		return
	}
	if ms := viper.GetInt64(key); ms > 0 || raw == "0" {
		*dst = time.Duration(ms) * time.Millisecond
	}
}

// SetDefaults sets default values in viper for every key.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("sentence.pause_threshold", defaults.Sentence.PauseThreshold.String())
	viper.SetDefault("sentence.break_on_newline", defaults.Sentence.BreakOnNewline)
	viper.SetDefault("sentence.search_window", defaults.Sentence.SearchWindow)
	viper.SetDefault("sentence.language", defaults.Sentence.Language)

	viper.SetDefault("chars.last_char_duration", defaults.Chars.LastCharDuration.String())
	viper.SetDefault("gaps.eliminate", defaults.Gaps.Eliminate)
	viper.SetDefault("gaps.split_threshold", defaults.Gaps.SplitThreshold.String())

	viper.SetDefault("collection.seek_debounce", defaults.Collection.SeekDebounce.String())
	viper.SetDefault("collection.lookup_interval", defaults.Collection.LookupInterval.String())
	viper.SetDefault("collection.build_lookup", defaults.Collection.BuildLookup)

	viper.SetDefault("cache.max_documents", defaults.Cache.MaxDocuments)
	viper.SetDefault("cache.dir", defaults.Cache.Dir)
	viper.SetDefault("cache.backend", defaults.Cache.Backend)
	viper.SetDefault("cache.compression_level", defaults.Cache.CompressionLevel)

	viper.SetDefault("emitter.interval", defaults.Emitter.Interval.String())
	viper.SetDefault("emitter.buffer", defaults.Emitter.Buffer)
	viper.SetDefault("fallback.words_per_minute", defaults.Fallback.WordsPerMinute)
	viper.SetDefault("worker.concurrency", defaults.Worker.Concurrency)
}
