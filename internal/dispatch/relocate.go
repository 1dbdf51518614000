package dispatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/paperflow/paperflow/internal/config"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// relocateFile copies (never moves) the source file into the destination
// rendered from the path template. The worker loop still owns the original
// for its processed/error move.
func (d *Dispatcher) relocateFile(act *config.RelocateFile, result map[string]any, sourceFile string) error {
	values := templateValues(result, sourceFile)
	relative, err := renderTemplate(act.PathTemplate, values)
	if err != nil {
		return err
	}

	dest := filepath.Join(act.BaseDir, relative)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	// On collision, append an incrementing counter to the stem.
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	final := dest
	for counter := 1; ; counter++ {
		if _, err := os.Stat(final); os.IsNotExist(err) {
			break
		}
		final = fmt.Sprintf("%s_%d%s", stem, counter, ext)
	}

	if err := copyFile(sourceFile, final); err != nil {
		return err
	}
	d.log.Info("dispatch.relocated", "source", sourceFile, "dest", final)
	return nil
}

// templateValues stringifies the result's top-level fields for path
// rendering, sanitizing path separators, and adds the source file's stem and
// extension. Nil values are omitted.
func templateValues(result map[string]any, sourceFile string) map[string]string {
	values := make(map[string]string, len(result)+2)
	for k, v := range result {
		if v == nil {
			continue
		}
		s := fmt.Sprintf("%v", v)
		s = strings.ReplaceAll(s, "/", "_")
		s = strings.ReplaceAll(s, "\\", "_")
		values[k] = s
	}
	base := filepath.Base(sourceFile)
	ext := filepath.Ext(base)
	values["original_name"] = strings.TrimSuffix(base, ext)
	values["extension"] = ext
	return values
}

// renderTemplate substitutes {key} placeholders; a placeholder with no
// matching value is an error for this action.
func renderTemplate(tpl string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("path template keys not found in result: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	return out.Close()
}
