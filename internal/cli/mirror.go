package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/mirror"
)

// NewImportCmd creates the import command.
func NewImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import SRC [DEST]",
		Short: "Recover manifest-known files from another directory",
		Long: `Recursively hash every file under SRC and copy each one whose
checksum matches a manifest entry into its canonical place in the library
(or DEST when given). Useful for adopting files downloaded elsewhere.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := ""
			if len(args) > 1 {
				dest = args[1]
			}
			return runImport(cmd, args[0], dest)
		},
	}

	return cmd
}

func runImport(cmd *cobra.Command, src, dest string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dest == "" {
		dest = cfg.Settings.DownloadRoot
	}

	m, err := openManifest(cfg)
	if err != nil {
		return err
	}

	summary, err := mirror.NewImporter(m).Run(cmd.Context(), src, dest)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Scanned", "Matched", "Copied", "Skipped"},
		[][]string{{
			strconv.Itoa(summary.Scanned),
			strconv.Itoa(summary.Matched),
			strconv.Itoa(summary.Copied),
			strconv.Itoa(summary.Skipped),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	))

	logger.Success("Import finished", logger.Fields{"copied": summary.Copied})
	return nil
}

// NewBackupCmd creates the backup command.
func NewBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup DEST [SRC]",
		Short: "Mirror the library into another directory",
		Long: `Incrementally copy every manifest-known file from the library (or
SRC when given) into DEST. Files are copied only when absent from DEST or
present with a different size, and sidecar files follow the items they
belong to.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := ""
			if len(args) > 1 {
				src = args[1]
			}
			return runBackup(cmd, args[0], src)
		},
	}

	return cmd
}

func runBackup(cmd *cobra.Command, dest, src string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if src == "" {
		src = cfg.Settings.DownloadRoot
	}

	m, err := openManifest(cfg)
	if err != nil {
		return err
	}

	summary, err := mirror.NewBackupper(m).Run(cmd.Context(), src, dest)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Examined", "Copied", "Skipped"},
		[][]string{{
			strconv.Itoa(summary.Examined),
			strconv.Itoa(summary.Copied),
			strconv.Itoa(summary.Skipped),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight},
	))

	logger.Success("Backup finished", logger.Fields{"copied": summary.Copied})
	return nil
}
