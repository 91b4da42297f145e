package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/CogniPilot/modelica-ir/internal/ctxlog"
	"github.com/CogniPilot/modelica-ir/internal/structure"
)

// watchDebounce collapses the burst of events an editor produces on save.
const watchDebounce = 150 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	analysisFlags
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <model-file>",
		Short: "Re-analyze a model whenever it changes",
		Long: `Analyze a model, then analyze it again each time the file is saved.

Load and analysis errors are reported without stopping the watch.
Interrupt to exit.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	opts.register(cmd)

	return cmd
}

func runWatch(opts *WatchOptions, path string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	analysisOpts, err := opts.options(cmd, opts.Settings())
	if err != nil {
		return err
	}

	analyze := func() {
		formatter := opts.formatter(cmd)
		m, err := loadModel(ctx, path)
		if err != nil {
			_ = formatter.Error(errorCode(err), err.Error(), errorDetails(err))
			return
		}
		res, err := structure.AnalyzeContext(ctx, m, analysisOpts)
		if err != nil {
			_ = formatter.Error(errorCode(err), err.Error(), errorDetails(err))
			return
		}
		fingerprint, err := res.Fingerprint()
		if err != nil {
			_ = formatter.Error(errorCode(err), err.Error(), nil)
			return
		}
		report := AnalyzeReport{Result: res, Fingerprint: fingerprint}
		if res.IsWellPosed {
			_ = formatter.Success(report)
		} else {
			_ = formatter.Failure(ErrCodeIllPosed, fmt.Sprintf("model %s is not well-posed", res.Model), report)
		}
	}

	analyze()
	err = watchFile(ctx, path, watchDebounce, analyze)
	if err != nil {
		exitErr := WrapExitError(ExitCommandError, "watching "+path, err)
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", exitErr)
		return exitErr
	}
	return nil
}

// watchFile calls onChange after path is written or replaced, once per
// burst of events separated by less than debounce. It returns nil when ctx
// is done.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file over the original keep triggering.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	logger := ctxlog.FromContext(ctx).With("path", target)
	logger.Debug("Watching model")

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				logger.Debug("Model changed", "op", event.Op.String())
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("Watcher event overflow", "error", err)
				timer.Reset(debounce)
				continue
			}
			return err

		case <-timer.C:
			onChange()
		}
	}
}
