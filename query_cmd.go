package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/kahncode1/narrasync/internal/service"
	"github.com/kahncode1/narrasync/timing/collection"
)

var queryCmd = &cobra.Command{
	Use:   "query <document|id> <ms>...",
	Short: "Show the active word and sentence at playback positions",
	Long: paragraph(fmt.Sprintf("\n%s a timing document at one or more positions, given in milliseconds. "+
		"The document is a file written by align, or an id known to the cache or documents directory.", keyword("Query"))),
	Example: paragraph("narrasync query chapter.timing.json 0 1500 92000\nnarrasync query chapter-1 4200"),
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		positions := make([]int64, 0, len(args)-1)
		for _, a := range args[1:] {
			ms, err := strconv.ParseInt(strings.TrimSuffix(a, "ms"), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid position %q: %w", a, err)
			}
			positions = append(positions, ms)
		}

		svc, shutdown, err := openService(false)
		if err != nil {
			return err
		}
		defer shutdown()

		_, coll, err := resolveCollection(cmd.Context(), svc, args[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, ms := range positions {
			printPosition(w, coll, ms)
		}
		return nil
	},
}

// resolveCollection treats arg as a document file when one exists, and as
// a document id otherwise. The returned id is the file's base name without
// extensions.
func resolveCollection(ctx context.Context, svc *service.TimingService, arg string) (string, *collection.Collection, error) {
	data, err := os.ReadFile(arg)
	switch {
	case err == nil:
		doc, err := collection.DecodeDocument(data)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", arg, err)
		}
		id := filepath.Base(arg)
		if i := strings.IndexByte(id, '.'); i > 0 {
			id = id[:i]
		}
		return id, svc.NewCollection(doc), nil
	case errors.Is(err, fs.ErrNotExist):
		coll, err := svc.Load(ctx, arg)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", arg, err)
		}
		return arg, coll, nil
	default:
		return "", nil, fmt.Errorf("unable to read document: %w", err)
	}
}

func printPosition(w io.Writer, coll *collection.Collection, ms int64) {
	wi := coll.FindActiveWordIndex(ms)
	si := coll.FindActiveSentenceIndex(ms)

	head := labelStyle.Render(formatMs(ms))
	word, ok := coll.Word(wi)
	if !ok {
		_, _ = fmt.Fprintf(w, "%s  %s\n", head, labelStyle.Render("nothing active"))
		return
	}
	_, _ = fmt.Fprintf(w, "%s  %s %s  %s\n", head,
		wordStyle.Render(word.Word),
		labelStyle.Render(fmt.Sprintf("word %d", wi)),
		labelStyle.Render(fmt.Sprintf("sentence %d", si)))
	if s := renderSentence(coll, wi, si); s != "" {
		_, _ = fmt.Fprintln(w, paragraph(s))
	}
}

// renderSentence returns sentence si wrapped to the output width with word
// wi highlighted. It falls back to the plain sentence text when the
// character ranges are unknown.
func renderSentence(coll *collection.Collection, wi, si int) string {
	sent, ok := coll.Sentence(si)
	if !ok {
		return ""
	}
	text := sentenceStyle.Render(sent.Text)

	doc := coll.Document()
	word, _ := coll.Word(wi)
	ws, we, wok := word.CharRange()
	if sent.CharStart != nil && sent.CharEnd != nil && wok {
		ss, se := *sent.CharStart, *sent.CharEnd
		if ss <= ws && we <= se && se <= len(doc.DisplayText) {
			text = sentenceStyle.Render(doc.DisplayText[ss:ws]) +
				wordStyle.Render(doc.DisplayText[ws:we]) +
				sentenceStyle.Render(doc.DisplayText[we:se])
		}
	}

	wrap := int(width) - 4 //nolint:gosec
	if wrap < 20 {
		wrap = 20
	}
	return wordwrap.String(text, wrap)
}
