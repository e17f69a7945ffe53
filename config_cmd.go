package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# directory holding <id>.json timing files (and optional <id>.md / <id>.txt)
documents: ""
# word-wrap at width (0 detects the terminal)
width: 0

sentence:
  # silence between words that may end a sentence
  pause_threshold: "350ms"
  # treat line breaks in the display text as sentence boundaries
  break_on_newline: true
  # bytes searched either side of a word's expected offset in the display text
  search_window: 6
  # BCP 47 tag used for case folding (abbreviations are always English)
  language: "en"

chars:
  # duration given to the final character of a character alignment
  last_char_duration: "100ms"

gaps:
  # stretch words over silences so a highlight is always visible
  eliminate: true
  # gaps longer than this are split between both neighbours
  split_threshold: "500ms"

collection:
  # quiet period after a seek before forward scanning resumes
  seek_debounce: "100ms"
  # bucket width of the precomputed lookup table
  lookup_interval: "10ms"
  build_lookup: false

cache:
  # documents kept decoded in memory
  max_documents: 10
  # dir: "~/.cache/narrasync"
  # disk, badger or memory
  backend: "disk"
  # zstd level for persisted documents
  compression_level: 3

emitter:
  interval: "16ms"
  buffer: 1

fallback:
  # speaking rate used when no timing data is available
  words_per_minute: 150

worker:
  # 0 aligns inline; -1 uses every CPU
  concurrency: 0
`

var printConfig bool

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the narrasync config file",
	Long:    paragraph(fmt.Sprintf("\n%s the narrasync config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("narrasync config\nnarrasync config --print\nnarrasync config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if printConfig {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("unable to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		}

		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("narrasync", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&printConfig, "print", false, "print the effective configuration instead of editing")
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
