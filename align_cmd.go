package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kahncode1/narrasync/internal/service"
	"github.com/kahncode1/narrasync/timing/collection"
)

var (
	alignText   string
	alignSource string
	alignOut    string
	alignID     string

	alignCmd = &cobra.Command{
		Use:   "align <timing.json|->",
		Short: "Build a timing document from a provider response",
		Long: paragraph(fmt.Sprintf("\n%s word marks or character alignment from a speech provider with the display text. "+
			"Sentences are inferred, gaps closed and the result written as a timing document.", keyword("Align"))),
		Example: paragraph("narrasync align marks.json --text chapter.md --out chapter.timing.json\ncat marks.json | narrasync align - --id chapter-1"),
		Args:    cobra.ExactArgs(1),
		RunE:    runAlign,
	}
)

func init() {
	alignCmd.Flags().StringVarP(&alignText, "text", "t", "", "display text (.md files are rendered as markdown)")
	alignCmd.Flags().StringVar(&alignSource, "source", "", "text that was sent for synthesis, when it differs")
	alignCmd.Flags().StringVarP(&alignOut, "out", "o", "", "write the document here instead of stdout")
	alignCmd.Flags().StringVar(&alignID, "id", "", "also store the document in the cache under this id")
}

func readArg(arg string) ([]byte, error) {
	if arg == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	return b, nil
}

func runAlign(cmd *cobra.Command, args []string) error {
	payload, err := readArg(args[0])
	if err != nil {
		return err
	}

	req := service.Request{Source: filepath.Base(args[0]), Payload: payload}
	if args[0] == "-" {
		req.Source = "stdin"
	}
	if alignText != "" {
		b, err := os.ReadFile(alignText)
		if err != nil {
			return fmt.Errorf("unable to read text: %w", err)
		}
		switch strings.ToLower(filepath.Ext(alignText)) {
		case ".md", ".markdown":
			req.Markdown = b
		default:
			req.Text = string(b)
		}
	}
	if alignSource != "" {
		b, err := os.ReadFile(alignSource)
		if err != nil {
			return fmt.Errorf("unable to read source text: %w", err)
		}
		req.SourceText = string(b)
	}

	svc, shutdown, err := openService(false)
	if err != nil {
		return err
	}
	defer shutdown()

	res, err := svc.Align(cmd.Context(), req)
	if err != nil {
		return err
	}

	out, err := collection.EncodeDocument(res.Document)
	if err != nil {
		return err
	}
	if alignOut != "" {
		if err := os.WriteFile(alignOut, out, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("unable to write document: %w", err)
		}
	} else if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}

	if alignID != "" {
		if err := svc.Cache().Put(cmd.Context(), alignID, svc.NewCollection(res.Document)); err != nil {
			return fmt.Errorf("unable to cache document: %w", err)
		}
	}

	log.Info("aligned document",
		"source", req.Source,
		"kind", res.Kind,
		"words", len(res.Document.Words),
		"sentences", len(res.Document.Sentences),
		"elapsed", res.Elapsed,
	)
	printAlignSummary(cmd.ErrOrStderr(), res)
	return nil
}

func printAlignSummary(w io.Writer, res *service.Result) {
	doc := res.Document
	lines := []string{
		headerStyle.Render("aligned") + " " + labelStyle.Render(doc.Source),
		fmt.Sprintf("%s %s", labelStyle.Render("input     "), res.Kind),
		fmt.Sprintf("%s %s words, %s sentences", labelStyle.Render("content   "),
			humanize.Comma(int64(len(doc.Words))), humanize.Comma(int64(len(doc.Sentences)))),
		fmt.Sprintf("%s %s", labelStyle.Render("duration  "), formatMs(doc.TotalDurationMs)),
	}
	if res.Gaps.Gaps > 0 || res.Gaps.Overlaps > 0 {
		lines = append(lines, fmt.Sprintf("%s %d gaps closed, %d overlaps trimmed (largest %s)",
			labelStyle.Render("gaps      "), res.Gaps.Gaps, res.Gaps.Overlaps, formatMs(res.Gaps.MaxGapMs)))
	}
	if n := len(res.Inference.Misses); n > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d words could not be matched to the text", n)))
	}
	if res.Synthetic {
		lines = append(lines, warnStyle.Render("no usable timing data; timing was estimated from the text"))
	}
	_, _ = fmt.Fprintln(w, paragraph(strings.Join(lines, "\n")))
}

func formatMs(ms int64) string {
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, (ms/1000)%60, ms%1000)
}
