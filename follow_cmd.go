package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	tsync "github.com/kahncode1/narrasync/timing/sync"
)

var (
	followSpeed float64
	followFrom  int64

	followCmd = &cobra.Command{
		Use:   "follow <document|id>",
		Short: "Play back a document's highlights against a simulated clock",
		Long: paragraph(fmt.Sprintf("\n%s a document as if its narration were playing, printing each word and sentence as it becomes active. "+
			"Documents read from a file are cached under their base name.", keyword("Follow"))),
		Example: paragraph("narrasync follow chapter.timing.json --speed 2\nnarrasync follow chapter-1 --from 60000"),
		Args:    cobra.ExactArgs(1),
		RunE:    runFollow,
	}
)

func init() {
	followCmd.Flags().Float64Var(&followSpeed, "speed", 1, "playback rate")
	followCmd.Flags().Int64Var(&followFrom, "from", 0, "start position in milliseconds")
}

// simulatedClock is a position source that advances with wall time.
type simulatedClock struct {
	start time.Time
	from  time.Duration
	speed float64
}

func (c simulatedClock) Position() time.Duration {
	return c.from + time.Duration(float64(time.Since(c.start))*c.speed)
}

func runFollow(cmd *cobra.Command, args []string) error {
	if followSpeed <= 0 {
		return errors.New("--speed must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	svc, shutdown, err := openService(false)
	if err != nil {
		return err
	}
	defer shutdown()

	id, coll, err := resolveCollection(ctx, svc, args[0])
	if err != nil {
		return err
	}
	if _, err := os.Stat(args[0]); err == nil {
		if err := svc.Cache().Put(ctx, id, coll); err != nil {
			return fmt.Errorf("unable to cache document: %w", err)
		}
	}
	if _, err := svc.Activate(ctx, id); err != nil {
		return err
	}

	clock := simulatedClock{
		start: time.Now(),
		from:  time.Duration(followFrom) * time.Millisecond,
		speed: followSpeed,
	}
	emitter, err := svc.Follow(ctx, clock)
	if err != nil {
		return err
	}
	sub, err := emitter.Subscribe()
	if err != nil {
		return err
	}
	defer emitter.Unsubscribe(sub.ID)

	total := coll.TotalDurationMs()
	remaining := time.Duration(float64(time.Duration(total-followFrom)*time.Millisecond)/followSpeed) + time.Second
	ctx, cancel := context.WithTimeout(ctx, remaining)
	defer cancel()

	log.Debug("following document", "id", id, "total_ms", total, "speed", followSpeed)

	w := cmd.OutOrStdout()
	lastSentence := -1
	var shown *tsync.Pair
	show := func(p tsync.Pair) {
		if shown != nil && shown.Same(p) {
			return
		}
		shown = &p
		if p.SentenceIndex != lastSentence && p.SentenceIndex >= 0 {
			lastSentence = p.SentenceIndex
			if s := renderSentence(coll, p.WordIndex, p.SentenceIndex); s != "" {
				_, _ = fmt.Fprintln(w, paragraph("\n"+s))
			}
		}
		if word, ok := coll.Word(p.WordIndex); ok {
			_, _ = fmt.Fprintf(w, "  %s  %s\n", labelStyle.Render(formatMs(p.PositionMs)), wordStyle.Render(word.Word))
		}
	}

	// The first sample may have been published before the subscription.
	if p, ok := emitter.Last(); ok {
		show(p)
	}
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				_, _ = fmt.Fprintln(w, labelStyle.Render("end of narration"))
			}
			return nil
		case p, ok := <-sub.C:
			if !ok {
				return nil
			}
			show(p)
		}
	}
}
