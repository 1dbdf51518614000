package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoadCategoriesContext reads category definitions from *.txt files under dir
// and formats them as prompt context. The file stem is the category name; an
// empty file falls back to the name itself as its keyword. Returns "" when the
// directory does not exist or holds no usable files.
func LoadCategoriesContext(dir string, logger *slog.Logger) string {
	if logger == nil {
		logger = slog.Default()
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil || len(matches) == 0 {
		return ""
	}

	lines := []string{"The following are the category definitions. Choose the best matching folder based on these definitions:"}
	for _, path := range matches {
		name := filepath.Base(path)
		if strings.HasSuffix(name, "~") {
			continue
		}
		category := strings.TrimSuffix(name, filepath.Ext(name))

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("config.category_read_failed", "path", path, "error", err)
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			content = category
		}
		content = strings.ReplaceAll(content, "\r", "")
		content = strings.ReplaceAll(content, "\n", " ")
		lines = append(lines, fmt.Sprintf("- [%s]: %s", category, content))
	}

	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}
