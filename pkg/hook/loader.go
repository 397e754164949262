package hook

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HookFileExtensions lists the supported hook file extensions.
var HookFileExtensions = map[string]bool{
	".tengo": true,
}

// LoadHooksFromDir registers every recognized hook script found in dir. Files
// are matched by name: <hook-type>.tengo. Unknown names and extensions are
// skipped.
func LoadHooksFromDir(manager HookManager, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read hooks directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		if _, ok := HookFileExtensions[ext]; !ok {
			continue
		}

		hookType := HookType(strings.TrimSuffix(entry.Name(), ext))
		switch hookType {
		case PostDownload, PostSync, PostVerify:
			// Valid hook type
		default:
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("error reading hook file %s: %w", entry.Name(), err)
		}

		if err := manager.AddHook(Hook{Type: hookType, Content: string(content)}); err != nil {
			return fmt.Errorf("error adding hook %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// LoadHookFile registers the script at path for the given hook type.
func LoadHookFile(manager HookManager, hookType HookType, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading hook file %s: %w", path, err)
	}
	return manager.AddHook(Hook{Type: hookType, Content: string(content)})
}
