package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"github.com/kahncode1/narrasync/internal/cache"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached timing documents",
		Args:  cobra.NoArgs,
	}

	cacheListCmd = &cobra.Command{
		Use:     "list [filter]",
		Aliases: []string{"ls"},
		Short:   "List cached documents, optionally fuzzy-filtered by id",
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCacheList,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show cache tier statistics",
		Args:  cobra.NoArgs,
		RunE:  runCacheStats,
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, shutdown, err := openService(false)
			if err != nil {
				return err
			}
			defer shutdown()

			if err := svc.Cache().Clear(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared:", keyword(cfg.Cache.Dir))
			return nil
		},
	}

	cacheWarmCmd = &cobra.Command{
		Use:   "warm [id...]",
		Short: "Align documents from the documents directory into the cache",
		Long: paragraph(fmt.Sprintf("\n%s the cache by aligning documents ahead of playback. "+
			"With no ids, every timing file in the documents directory is loaded.", keyword("Warm"))),
		Example: paragraph("narrasync cache warm --documents ~/narration\nnarrasync cache warm chapter-1 chapter-2 --workers 4"),
		RunE:    runCacheWarm,
	}
)

func init() {
	cacheCmd.AddCommand(cacheListCmd, cacheStatsCmd, cacheClearCmd, cacheWarmCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	svc, shutdown, err := openService(false)
	if err != nil {
		return err
	}
	defer shutdown()

	entries, err := svc.Cache().Entries()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key != entries[j].Key {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].Level < entries[j].Level
	})

	if len(args) == 1 {
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		matches := fuzzy.Find(args[0], keys)
		filtered := make([]cache.Entry, 0, len(matches))
		for _, m := range matches {
			filtered = append(filtered, entries[m.Index])
		}
		entries = filtered
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, labelStyle.Render("no cached documents"))
		return nil
	}

	idWidth := uint(24)
	if width > 60 {
		idWidth = width - 36
	}
	for _, e := range entries {
		size := humanize.Bytes(uint64(e.Size)) //nolint:gosec
		if e.RawSize > e.Size {
			size += labelStyle.Render(" of " + humanize.Bytes(uint64(e.RawSize))) //nolint:gosec
		}
		_, _ = fmt.Fprintf(w, "%-*s  %s  %s  %s\n",
			int(idWidth), truncate.StringWithTail(e.Key, idWidth, "…"),
			labelStyle.Render(e.Level.String()),
			size,
			labelStyle.Render(humanize.Time(e.Created)),
		)
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	svc, shutdown, err := openService(false)
	if err != nil {
		return err
	}
	defer shutdown()

	stats := svc.Cache().Stats()
	lines := []string{
		headerStyle.Render("cache") + " " + labelStyle.Render(cfg.Cache.Backend+" "+cfg.Cache.Dir),
		fmt.Sprintf("%s %d of %d documents", labelStyle.Render("memory  "), stats.L1.Items, stats.L1.Capacity),
	}
	if stats.L2 != nil {
		l2 := fmt.Sprintf("%s %s documents, %s", labelStyle.Render("store   "),
			humanize.Comma(stats.L2.Items), humanize.Bytes(uint64(stats.L2.Size))) //nolint:gosec
		if stats.L2.Evictions > 0 {
			l2 += fmt.Sprintf(", %d evicted", stats.L2.Evictions)
		}
		lines = append(lines, l2)
	} else if cfg.Cache.Backend != "memory" {
		entries, err := svc.Cache().Entries()
		if err != nil {
			return err
		}
		var n int
		for _, e := range entries {
			if e.Level == cache.LevelL2 {
				n++
			}
		}
		lines = append(lines, fmt.Sprintf("%s %s documents", labelStyle.Render("store   "), humanize.Comma(int64(n))))
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), paragraph(strings.Join(lines, "\n")))
	return nil
}

func runCacheWarm(cmd *cobra.Command, args []string) error {
	if docsDir == "" {
		return fmt.Errorf("no documents directory: pass --documents or set %s", keyword("documents"))
	}

	ids := args
	if len(ids) == 0 {
		files, err := os.ReadDir(docsDir)
		if err != nil {
			return fmt.Errorf("unable to read documents directory: %w", err)
		}
		for _, f := range files {
			name := f.Name()
			ext := filepath.Ext(name)
			if f.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(ext, ".json") {
				continue
			}
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}

	svc, shutdown, err := openService(false)
	if err != nil {
		return err
	}
	defer shutdown()

	if err := svc.Prefetch(cmd.Context(), ids...); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Warmed %s documents\n", keyword(humanize.Comma(int64(len(ids)))))
	return nil
}
