package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/download"
	"github.com/glorpus-work/shelfkeep/pkg/hook"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// NewDownloadCmd creates the download command.
func NewDownloadCmd() *cobra.Command {
	var (
		oses       []string
		languages  []string
		itemID     string
		skipExtras bool
		skipGames  bool
		dryRun     bool
		wait       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "download [TARGET]",
		Short: "Download manifest files into the local library",
		Long: `Download every manifest file matching the filters into the library
directory (or TARGET when given). Transfers resume from partial state, are
verified against the declared size and land under their final name only when
complete. Re-running is idempotent: files already present with the right size
are skipped without network traffic.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			return runDownload(cmd, target, download.Filters{
				OSes:       oses,
				Languages:  languages,
				ItemID:     itemID,
				SkipGames:  skipGames,
				SkipExtras: skipExtras,
			}, dryRun, wait)
		},
	}

	cmd.Flags().StringSliceVar(&oses, "os", nil, "only download files for these operating systems")
	cmd.Flags().StringSliceVar(&languages, "lang", nil, "only download files for these languages")
	cmd.Flags().StringVar(&itemID, "id", "", "only download files of a single item")
	cmd.Flags().BoolVar(&skipExtras, "skip-extras", false, "skip bonus material")
	cmd.Flags().BoolVar(&skipGames, "skip-games", false, "skip installers, patches and language packs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log what would be downloaded without transferring")
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait this long before the first transfer")

	return cmd
}

func runDownload(cmd *cobra.Command, target string, filters download.Filters, dryRun bool, wait time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.Settings.DownloadRoot
	if target != "" {
		root = target
	}

	// Config-level defaults apply when the flags are silent.
	if len(filters.OSes) == 0 {
		filters.OSes = cfg.Settings.OSList
	}
	if len(filters.Languages) == 0 {
		filters.Languages = cfg.Settings.LanguageList
	}

	m, err := openManifest(cfg)
	if err != nil {
		return err
	}

	hooks, err := loadHooks(cfg)
	if err != nil {
		return err
	}

	scheduler := download.NewScheduler(m, root)
	if wait > 0 {
		scheduler = scheduler.WithStartDelay(wait)
	}

	tasks, err := scheduler.Schedule(cmd.Context(), filters)
	if err != nil {
		return err
	}

	fetcher := download.NewFetcher(download.FetcherOptions{
		Timeout:   cfg.Settings.HTTPTimeout,
		UserAgent: cfg.Settings.UserAgent,
		Retries:   cfg.Settings.RetryCount,
		Backoff:   cfg.Settings.RetryBackoff,
		DryRun:    dryRun,
		Hook: func(task *model.DownloadTask) error {
			return hooks.Execute(hook.PostDownload, hook.HookContext{
				ItemID:    task.Item.ID,
				ItemTitle: task.Item.Title,
				FileName:  task.File.Name,
				FilePath:  task.TargetPath,
				FileKind:  string(task.File.Kind),
			})
		},
	})

	var completed, skipped, failed int
	var transferred int64
	for _, task := range tasks {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		if err := fetcher.Fetch(cmd.Context(), task); err != nil {
			logger.Error("download failed", logger.Fields{
				"item":  task.Item.ID,
				"file":  task.File.Name,
				"error": err.Error(),
			})
		}
		switch task.State {
		case model.TaskCompleted:
			completed++
			transferred += task.File.Size
		case model.TaskSkipped:
			skipped++
		case model.TaskFailedFatal:
			failed++
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Scheduled", "Completed", "Skipped", "Failed", "Transferred"},
		[][]string{{
			strconv.Itoa(len(tasks)),
			strconv.Itoa(completed),
			strconv.Itoa(skipped),
			strconv.Itoa(failed),
			humanize.Bytes(uint64(transferred)), //nolint:gosec // sizes are non-negative
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	if failed > 0 {
		logger.Warn("some downloads failed, re-run to retry", logger.Fields{"failed": failed})
	} else if !dryRun {
		logger.Success("Library up to date", logger.Fields{"root": root})
	}
	return nil
}
