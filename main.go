// Package main provides the entry point for the narrasync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/kahncode1/narrasync/internal/di"
	"github.com/kahncode1/narrasync/internal/service"
	"github.com/kahncode1/narrasync/timing"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	verbose    bool
	width      uint
	docsDir    string

	// cfg is the effective configuration, resolved before any command runs.
	cfg timing.Config

	rootCmd = &cobra.Command{
		Use:   "narrasync",
		Short: "Word and sentence timing for narrated text",
		Long: paragraph(
			fmt.Sprintf("\nAlign narration timing with its text, then %s along as it plays.", keyword("highlight")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if verbose || viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	var err error
	cfg, err = timing.LoadConfigFromViper()
	if err != nil {
		return err
	}

	docsDir = viper.GetString("documents")
	if docsDir != "" {
		if docsDir, err = homedir.Expand(docsDir); err != nil {
			return fmt.Errorf("unable to expand documents path: %w", err)
		}
	}

	width = viper.GetUint("width")
	if !cmd.Flags().Changed("width") {
		isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}

	log.Debug("configuration resolved",
		"config", viper.ConfigFileUsed(),
		"backend", cfg.Cache.Backend,
		"cache_dir", cfg.Cache.Dir,
		"documents", docsDir,
	)
	return nil
}

// openService wires a timing service through the DI container. The returned
// func shuts the container down.
func openService(watch bool) (*service.TimingService, func(), error) {
	injector := di.NewContainer(di.Options{
		Config:       cfg,
		Logger:       log.Default(),
		DocumentsDir: docsDir,
		Watch:        watch,
	})

	svc, err := di.Bootstrap(injector)
	if err != nil {
		_ = di.Shutdown(injector)
		return nil, nil, err
	}

	return svc, func() {
		if err := di.Shutdown(injector); err != nil {
			log.Error("shutdown failed", "error", err)
		}
	}, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	timing.SetDefaults()
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", configFile, "config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flags.UintVarP(&width, "width", "w", 0, "word-wrap at width")
	flags.String("documents", "", "directory holding <id>.json timing files")
	flags.String("cache-dir", "", "directory for the persistent cache")
	flags.String("backend", "", "cache backend: disk, badger or memory")
	flags.Int("workers", 0, "concurrent alignments (0 runs inline, -1 uses every CPU)")

	// Config bindings
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("width", flags.Lookup("width"))
	_ = viper.BindPFlag("documents", flags.Lookup("documents"))
	_ = viper.BindPFlag("cache.dir", flags.Lookup("cache-dir"))
	_ = viper.BindPFlag("cache.backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("worker.concurrency", flags.Lookup("workers"))

	viper.SetDefault("width", 0)
	viper.SetDefault("documents", "")

	rootCmd.AddCommand(alignCmd, queryCmd, followCmd, cacheCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "narrasync")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "narrasync")}, dirs...)
	}

	if c := os.Getenv("NARRASYNC_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("narrasync")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("narrasync")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		configFile = used
		return
	}

	configFile = filepath.Join(dirs[0], "narrasync.yml")
}
