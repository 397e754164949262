package download

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/shelfkeep/pkg/fsutil"
	"github.com/glorpus-work/shelfkeep/pkg/model"
)

// Sidecar file names, written next to an item's downloads.
const (
	InfoFilename   = "!info.txt"
	SerialFilename = "!serial.txt"
)

// WriteInfoFile writes the human-readable item summary sidecar. It is
// rewritten after every completed download so it always reflects the
// manifest state the download came from.
func WriteInfoFile(itemDir string, item *model.Item) error {
	var b strings.Builder

	fmt.Fprintf(&b, "-- %s --\n\n", item.Title)
	fmt.Fprintf(&b, "id............. %s\n", item.ID)
	fmt.Fprintf(&b, "title.......... %s\n", item.Title)
	if item.Notes != "" {
		fmt.Fprintf(&b, "notes.......... %s\n", item.Notes)
	}
	if !item.LastSynced.IsZero() {
		fmt.Fprintf(&b, "synced......... %s\n", item.LastSynced.UTC().Format(time.RFC3339))
	}

	games, extras := splitFiles(item.Files)
	if len(games) > 0 {
		b.WriteString("\ngame files.....\n")
		for _, f := range games {
			b.WriteString(describeFile(f))
		}
	}
	if len(extras) > 0 {
		b.WriteString("\nextras.........\n")
		for _, f := range extras {
			b.WriteString(describeFile(f))
		}
	}

	path := filepath.Join(itemDir, InfoFilename)
	if err := os.WriteFile(path, []byte(b.String()), fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// WriteSerialFile writes the serial sidecar; items without a serial get no
// file at all.
func WriteSerialFile(itemDir string, item *model.Item) error {
	if item.Serial == "" {
		return nil
	}
	path := filepath.Join(itemDir, SerialFilename)
	if err := os.WriteFile(path, []byte(item.Serial+"\n"), fsutil.FileModeDefault); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func splitFiles(files []*model.FileRecord) (games, extras []*model.FileRecord) {
	for _, f := range files {
		if f.Kind.IsExtra() {
			extras = append(extras, f)
		} else {
			games = append(games, f)
		}
	}
	return games, extras
}

func describeFile(f *model.FileRecord) string {
	parts := []string{string(f.Kind)}
	if f.OS != "" {
		parts = append(parts, f.OS)
	}
	if f.Language != "" {
		parts = append(parts, f.Language)
	}
	parts = append(parts, fmt.Sprintf("%d bytes", f.Size))
	if f.Checksum != "" {
		parts = append(parts, "md5 "+f.Checksum)
	}
	return fmt.Sprintf("    [%s] -- %s\n", f.Name, strings.Join(parts, ", "))
}
