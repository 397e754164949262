package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/shelfkeep/internal/logger"
	"github.com/glorpus-work/shelfkeep/pkg/model"
	"github.com/glorpus-work/shelfkeep/pkg/verify"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	var (
		skipChecksum bool
		skipSize     bool
		skipArchive  bool
		deleteFailed bool
	)

	cmd := &cobra.Command{
		Use:   "verify [DIR]",
		Short: "Verify downloaded files against the manifest",
		Long: `Re-check every downloaded file in the library (or DIR when given)
against the manifest: declared size, checksum and, for archives, internal
consistency. Missing files are reported separately from failing ones.
--delete removes failing files so the next download run re-fetches them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			checks := verify.Checks{
				Checksum: !skipChecksum,
				Size:     !skipSize,
				Archive:  !skipArchive,
			}
			disposition := verify.DispositionReport
			if deleteFailed {
				disposition = verify.DispositionDelete
			}
			return runVerify(cmd, dir, checks, disposition)
		},
	}

	cmd.Flags().BoolVar(&skipChecksum, "skip-checksum", false, "skip checksum verification")
	cmd.Flags().BoolVar(&skipSize, "skip-size", false, "skip file size verification")
	cmd.Flags().BoolVar(&skipArchive, "skip-archive", false, "skip archive consistency scans")
	cmd.Flags().BoolVar(&deleteFailed, "delete", false, "delete files that fail verification")

	return cmd
}

func runVerify(cmd *cobra.Command, dir string, checks verify.Checks, disposition verify.Disposition) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.Settings.DownloadRoot
	if dir != "" {
		root = dir
	}

	m, err := openManifest(cfg)
	if err != nil {
		return err
	}

	report, err := verify.New(m, root, checks, disposition).Run(cmd.Context())
	if err != nil {
		return err
	}

	var rows [][]string
	for _, record := range report.Records {
		if record.Passed() {
			continue
		}
		status := "FAILED"
		if record.Missing {
			status = "missing"
		} else if record.Deleted {
			status = "deleted"
		}
		rows = append(rows, []string{record.ItemID, record.FileName, status, failedChecks(record)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"Item", "File", "Status", "Checks"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
		))
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Checked", "Passed", "Failed", "Missing", "Deleted"},
		[][]string{{
			strconv.Itoa(report.Checked),
			strconv.Itoa(report.Passed),
			strconv.Itoa(report.Failed),
			strconv.Itoa(report.Missing),
			strconv.Itoa(report.Deleted),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))

	if report.Failed == 0 && report.Missing == 0 {
		logger.Success("All files verified", logger.Fields{"checked": report.Checked})
	}
	return nil
}

// failedChecks lists the check names the record failed.
func failedChecks(record model.VerificationRecord) string {
	var names []string
	for _, kind := range []model.CheckKind{model.CheckChecksum, model.CheckSize, model.CheckArchive} {
		if ok, present := record.Results[kind]; present && !ok {
			names = append(names, string(kind))
		}
	}
	return strings.Join(names, ", ")
}
