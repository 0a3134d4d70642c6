package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kitbash/internal/compiler"
	"github.com/roach88/kitbash/internal/registry"
)

// ReloadEvent is printed after every successful definitions load.
type ReloadEvent struct {
	Generation int      `json:"generation"`
	Stats      int      `json:"stats"`
	Components int      `json:"components"`
	Skipped    []string `json:"skipped,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		debounce    time.Duration
		duration    time.Duration
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "watch [definitions-dir]",
		Short: "Reload definitions as they change",
		Long: `Load the definitions and keep reloading them whenever a .cue file in
the directory changes. Each successful load prints a line; a load that
fails keeps the previous definitions and is logged.

Runs until interrupted, or for --for when given. JSON output is one
object per line.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			if debounce <= 0 {
				debounce = rootOpts.Config.WatchDebounce
			}

			var (
				mu  sync.Mutex
				gen int
			)
			report := func(lib *compiler.Library, skipped []error) {
				mu.Lock()
				defer mu.Unlock()
				gen++
				ev := ReloadEvent{Generation: gen, Stats: lib.Stats.Len(), Components: lib.Components.Len()}
				for _, err := range skipped {
					ev.Skipped = append(ev.Skipped, err.Error())
				}
				if formatter.JSON() {
					_ = json.NewEncoder(formatter.Writer).Encode(ev)
					return
				}
				fmt.Fprintf(formatter.Writer, "↻ generation %d: %d stat(s), %d component(s), %d skipped\n",
					ev.Generation, ev.Stats, ev.Components, len(ev.Skipped))
			}

			dir := rootOpts.definitionsDir(args)
			sess, err := openSession(rootOpts, dir, registry.OnReload(report))
			if err != nil {
				code, msg := loadErrorCode(err)
				return formatter.Fail(ExitCommandError, code, msg)
			}

			var wopts []registry.WatcherOption
			if debounce > 0 {
				wopts = append(wopts, registry.WithDebounce(debounce))
			}
			watcher, err := registry.NewWatcher(sess.registry, wopts...)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
			}

			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			if err := watcher.Start(ctx); err != nil {
				watcher.Stop()
				return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
			}
			formatter.VerboseLog("Watching %s", dir)

			<-ctx.Done()
			watcher.Stop()

			if showMetrics {
				return sess.metrics.WriteText(formatter.GetErrWriter())
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before a reload (default $KITBASH_WATCH_DEBOUNCE)")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print registry metrics to stderr on exit")

	return cmd
}
