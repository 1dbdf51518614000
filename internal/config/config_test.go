package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const fullConfig = `
system:
  watch_dir: %[1]s/watch
  processed_dir: %[1]s/processed
  error_dir: %[1]s/error
  gemini_model: gemini-1.5-pro
  scan_interval_sec: 2.5

profiles:
  - name: school_newsletter
    match_pattern: "*.pdf"
    description: School newsletters
    fields:
      category_folder:
        type: string
        description: The best matching category folder
      school_details:
        type: object
        properties:
          schedule_list:
            type: list
            items:
              type: object
              properties:
                date:
                  type: string
                  description: YYYY-MM-DD
                special_items:
                  type: list
                irregular_schedule:
                  type: string
    actions:
      - type: save_json
        path: %[1]s/out/results.json
      - type: webhook
        url: https://hooks.example/notify
      - type: move_file
        base_dir: %[1]s/archive
        path_template: "{category_folder}/{original_name}{extension}"
      - type: add_caldav_event
        calendar_url: https://dav.example/
        username_env: CAL_USER
        password_env: CAL_PASS
        calendar_map:
          school: Kids Calendar
`

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, fmt.Sprintf(fullConfig, dir))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "watch"), cfg.System.WatchDir)
	assert.Equal(t, "gemini-1.5-pro", cfg.System.Model)
	assert.Equal(t, 2500*time.Millisecond, cfg.System.PollInterval())

	// Load creates the three working directories.
	for _, d := range []string{"watch", "processed", "error"} {
		assert.DirExists(t, filepath.Join(dir, d))
	}

	require.Len(t, cfg.Profiles, 1)
	p := cfg.Profiles[0]
	assert.Equal(t, "school_newsletter", p.Name)
	assert.Equal(t, "*.pdf", p.MatchPattern)

	details := p.Fields["school_details"]
	require.NotNil(t, details)
	list := details.Properties["schedule_list"]
	require.NotNil(t, list)
	require.NotNil(t, list.Items)
	assert.Equal(t, "YYYY-MM-DD", list.Items.Properties["date"].Description)

	require.Len(t, p.Actions, 4)
	persist, ok := p.Actions[0].(*PersistJSON)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "out", "results.json"), persist.Path)

	hook, ok := p.Actions[1].(*NotifyWebhook)
	require.True(t, ok)
	assert.Equal(t, "https://hooks.example/notify", hook.URL)

	move, ok := p.Actions[2].(*RelocateFile)
	require.True(t, ok)
	assert.Equal(t, "{category_folder}/{original_name}{extension}", move.PathTemplate)

	cal, ok := p.Actions[3].(*SyncCalendar)
	require.True(t, ok)
	assert.Equal(t, "https://dav.example/", cal.ServerURL)
	assert.Equal(t, "CAL_USER", cal.UsernameEnv)
	assert.Equal(t, map[string]string{"school": "Kids Calendar"}, cal.CalendarMap)
}

func TestLoad_ModelDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
system:
  watch_dir: `+dir+`/watch
  processed_dir: `+dir+`/processed
  error_dir: `+dir+`/error
profiles:
  - name: p
    match_pattern: "*"
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", cfg.System.Model)
	assert.Equal(t, time.Second, cfg.System.PollInterval())
}

func TestLoad_MissingWatchDir(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
system:
  processed_dir: `+dir+`/processed
  error_dir: `+dir+`/error
profiles:
  - name: p
    match_pattern: "*"
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch_dir")
}

func TestLoad_NoProfiles(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
system:
  watch_dir: `+dir+`/watch
  processed_dir: `+dir+`/processed
  error_dir: `+dir+`/error
profiles: []
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one profile")
}

func TestLoad_UnknownActionType(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
system:
  watch_dir: `+dir+`/watch
  processed_dir: `+dir+`/processed
  error_dir: `+dir+`/error
profiles:
  - name: p
    match_pattern: "*"
    actions:
      - type: launch_missiles
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action type")
}

func TestLoad_ActionMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
system:
  watch_dir: `+dir+`/watch
  processed_dir: `+dir+`/processed
  error_dir: `+dir+`/error
profiles:
  - name: p
    match_pattern: "*"
    actions:
      - type: save_json
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save_json requires path")
}

func TestLoad_BadMatchPattern(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
system:
  watch_dir: `+dir+`/watch
  processed_dir: `+dir+`/processed
  error_dir: `+dir+`/error
profiles:
  - name: p
    match_pattern: "[unclosed"
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad match_pattern")
}

func TestLoad_InjectsCategoriesContext(t *testing.T) {
	dir := t.TempDir()
	catDir := filepath.Join(dir, "categories")
	require.NoError(t, os.MkdirAll(catDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "school.txt"), []byte("newsletters, PTA notices"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(catDir, "medical.txt"), []byte(""), 0o644))

	path := writeConfig(t, dir, `
system:
  watch_dir: `+dir+`/watch
  processed_dir: `+dir+`/processed
  error_dir: `+dir+`/error
profiles:
  - name: with_category
    match_pattern: "*.pdf"
    fields:
      category_folder:
        type: string
        description: Best folder
  - name: without_category
    match_pattern: "*.txt"
    fields:
      title:
        type: string
        description: Title
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	desc := cfg.Profiles[0].Fields["category_folder"].Description
	assert.Contains(t, desc, "Best folder")
	assert.Contains(t, desc, "- [school]: newsletters, PTA notices")
	// Empty category file falls back to the category name as keyword.
	assert.Contains(t, desc, "- [medical]: medical")

	// Profiles without a category_folder field are untouched.
	assert.Equal(t, "Title", cfg.Profiles[1].Fields["title"].Description)
}

func TestLoadCategoriesContext_MissingDir(t *testing.T) {
	got := LoadCategoriesContext(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Empty(t, got)
}

func TestLoadCategoriesContext_CollapsesNewlines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "school.txt"),
		[]byte("line one\r\nline two\nline three"), 0o644))

	got := LoadCategoriesContext(dir, nil)
	assert.Contains(t, got, "- [school]: line one line two line three")
}

func TestLoadCategoriesContext_SkipsBackupFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "school.txt"), []byte("keep"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "school.txt~"), []byte("editor backup"), 0o644))

	got := LoadCategoriesContext(dir, nil)
	assert.Contains(t, got, "keep")
	assert.NotContains(t, got, "editor backup")
}
