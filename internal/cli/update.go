package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/hook"
	syncpkg "github.com/glorpus-work/shelfkeep/pkg/sync"
)

// NewUpdateCmd creates the update command.
func NewUpdateCmd() *cobra.Command {
	var (
		skipKnown   bool
		updatedOnly bool
		itemID      string
		oses        []string
		languages   []string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Synchronize the manifest with the remote catalog",
		Long: `Synchronize the local manifest with the remote catalog. By default
every entitled item is re-fetched; --skip-known limits the run to items not
yet in the manifest, --updated-only to items the catalog flags as changed,
and --id to a single item.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd, skipKnown, updatedOnly, itemID, oses, languages)
		},
	}

	cmd.Flags().BoolVar(&skipKnown, "skip-known", false, "only fetch items missing from the manifest")
	cmd.Flags().BoolVar(&updatedOnly, "updated-only", false, "only fetch items the catalog flags as updated")
	cmd.Flags().StringVar(&itemID, "id", "", "fetch a single item by id")
	cmd.Flags().StringSliceVar(&oses, "os", nil, "only keep file records for these operating systems")
	cmd.Flags().StringSliceVar(&languages, "lang", nil, "only keep file records for these languages")

	return cmd
}

func runUpdate(cmd *cobra.Command, skipKnown, updatedOnly bool, itemID string, oses, languages []string) error {
	if skipKnown && updatedOnly {
		return fmt.Errorf("--skip-known and --updated-only are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(oses) == 0 {
		oses = cfg.Settings.OSList
	}
	if len(languages) == 0 {
		languages = cfg.Settings.LanguageList
	}

	client, err := newCatalogClient(cfg)
	if err != nil {
		return err
	}

	m, err := openManifest(cfg)
	if err != nil {
		return err
	}

	hooks, err := loadHooks(cfg)
	if err != nil {
		return err
	}

	opts := syncpkg.Options{
		Policy:       syncpkg.PolicyAll,
		ManifestPath: cfg.Settings.ManifestPath,
		OSes:         oses,
		Languages:    languages,
	}
	switch {
	case itemID != "":
		opts.Policy = syncpkg.PolicySingleID
		opts.ItemID = itemID
	case skipKnown:
		opts.Policy = syncpkg.PolicySkipKnown
	case updatedOnly:
		opts.Policy = syncpkg.PolicyUpdatedOnly
	}

	engine := syncpkg.New(client, m).
		WithRetryPolicy(cfg.Settings.RetryCount, cfg.Settings.RetryBackoff)

	summary, err := engine.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Enumerated", "Fetched", "Skipped", "Failed"},
		[][]string{{
			strconv.Itoa(summary.Enumerated),
			strconv.Itoa(summary.Fetched),
			strconv.Itoa(summary.Skipped),
			strconv.Itoa(summary.Failed),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))
	if len(summary.FailedIDs) > 0 {
		logger.Warn("some items failed to sync", logger.Fields{"ids": strings.Join(summary.FailedIDs, ", ")})
	}

	if err := hooks.Execute(hook.PostSync, hook.HookContext{Vars: map[string]interface{}{
		"fetched": summary.Fetched,
		"failed":  summary.Failed,
	}}); err != nil {
		return err
	}

	logger.Success("Manifest synchronized", logger.Fields{"items": m.Len()})
	return nil
}
