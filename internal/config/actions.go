package config

import "fmt"

// Action is the closed set of post-extraction actions. The dispatcher selects
// behavior with a type switch over the concrete variants, so adding a kind is
// a compile-time-checked change.
type Action interface {
	// Kind returns the configuration tag of the action.
	Kind() string
}

// PersistJSON appends the extraction result to a JSON array file.
type PersistJSON struct {
	Path string
}

func (*PersistJSON) Kind() string { return "save_json" }

// NotifyWebhook POSTs the extraction result to a URL as a JSON body.
type NotifyWebhook struct {
	URL string
}

func (*NotifyWebhook) Kind() string { return "webhook" }

// RelocateFile copies the source file into a templated destination path.
type RelocateFile struct {
	BaseDir      string
	PathTemplate string
}

func (*RelocateFile) Kind() string { return "move_file" }

// SyncCalendar creates all-day events on a CalDAV calendar resolved through
// CalendarMap from the extracted category. Credentials come from the two named
// environment variables.
type SyncCalendar struct {
	ServerURL   string
	UsernameEnv string
	PasswordEnv string
	CalendarMap map[string]string
}

func (*SyncCalendar) Kind() string { return "add_caldav_event" }

// rawAction is the untyped YAML shape carrying the union of all per-type
// fields; toAction narrows it to the tagged variant.
type rawAction struct {
	Type         string            `yaml:"type"`
	Path         string            `yaml:"path"`
	URL          string            `yaml:"url"`
	BaseDir      string            `yaml:"base_dir"`
	PathTemplate string            `yaml:"path_template"`
	CalendarURL  string            `yaml:"calendar_url"`
	UsernameEnv  string            `yaml:"username_env"`
	PasswordEnv  string            `yaml:"password_env"`
	CalendarMap  map[string]string `yaml:"calendar_map"`
}

func (ra rawAction) toAction() (Action, error) {
	switch ra.Type {
	case "save_json":
		if ra.Path == "" {
			return nil, fmt.Errorf("save_json requires path")
		}
		return &PersistJSON{Path: ra.Path}, nil
	case "webhook":
		if ra.URL == "" {
			return nil, fmt.Errorf("webhook requires url")
		}
		return &NotifyWebhook{URL: ra.URL}, nil
	case "move_file":
		if ra.BaseDir == "" || ra.PathTemplate == "" {
			return nil, fmt.Errorf("move_file requires base_dir and path_template")
		}
		return &RelocateFile{BaseDir: ra.BaseDir, PathTemplate: ra.PathTemplate}, nil
	case "add_caldav_event":
		if ra.CalendarURL == "" {
			return nil, fmt.Errorf("add_caldav_event requires calendar_url")
		}
		return &SyncCalendar{
			ServerURL:   ra.CalendarURL,
			UsernameEnv: ra.UsernameEnv,
			PasswordEnv: ra.PasswordEnv,
			CalendarMap: ra.CalendarMap,
		}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", ra.Type)
	}
}
