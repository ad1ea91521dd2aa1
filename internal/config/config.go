// Package config handles the user policy: transport preference, timeout
// behavior and display/persistence preferences. The policy is read from and
// written to config.yaml in the askgate directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/askgate-dev/askgate/internal/choice"
)

const configFile = "config.yaml"

// Valid language codes for the display preference.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Policy is the configuration in effect for a session. A copy is attached to
// every session at creation and may be replaced mid-session by a submission
// or live-update payload.
type Policy struct {
	Transport        string `yaml:"transport" json:"transport"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	SingleSubmitMode bool   `yaml:"single_submit_mode" json:"single_submit_mode"`
	UseDefaultOption bool   `yaml:"use_default_option" json:"use_default_option"`
	TimeoutAction    string `yaml:"timeout_action" json:"timeout_action"`

	// Display and persistence preferences owned by the config store. The
	// engine carries them opaquely; only the history store reads retention.
	Language           string `yaml:"language" json:"language"`
	PersistenceEnabled bool   `yaml:"persistence_enabled" json:"persistence_enabled"`
	RetentionDays      int    `yaml:"retention_days" json:"retention_days"`
	MaxSessions        int    `yaml:"max_sessions" json:"max_sessions"`

	NotifyNew         bool `yaml:"notify_new" json:"notify_new"`
	NotifyUpcoming    bool `yaml:"notify_upcoming" json:"notify_upcoming"`
	UpcomingThreshold int  `yaml:"upcoming_threshold" json:"upcoming_threshold"`
	NotifyTimeout     bool `yaml:"notify_timeout" json:"notify_timeout"`
	NotifySound       bool `yaml:"notify_sound" json:"notify_sound"`
}

// DefaultPolicy returns a Policy populated with sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		Transport:          choice.TransportTerminal,
		TimeoutSeconds:     choice.DefaultTimeoutSeconds,
		SingleSubmitMode:   true,
		UseDefaultOption:   false,
		TimeoutAction:      choice.TimeoutSubmit,
		Language:           LangEN,
		PersistenceEnabled: true,
		RetentionDays:      3,
		MaxSessions:        100,
		NotifyNew:          true,
		NotifyUpcoming:     true,
		UpcomingThreshold:  60,
		NotifyTimeout:      true,
		NotifySound:        true,
	}
}

// Patch is a partial policy update. Nil fields leave the current value
// untouched; present-but-invalid values also fall back to the current value.
type Patch struct {
	Transport        *string `json:"transport,omitempty"`
	TimeoutSeconds   *int    `json:"timeout_seconds,omitempty"`
	SingleSubmitMode *bool   `json:"single_submit_mode,omitempty"`
	UseDefaultOption *bool   `json:"use_default_option,omitempty"`
	TimeoutAction    *string `json:"timeout_action,omitempty"`

	Language          *string `json:"language,omitempty"`
	NotifyNew         *bool   `json:"notify_new,omitempty"`
	NotifyUpcoming    *bool   `json:"notify_upcoming,omitempty"`
	UpcomingThreshold *int    `json:"upcoming_threshold,omitempty"`
	NotifyTimeout     *bool   `json:"notify_timeout,omitempty"`
	NotifySound       *bool   `json:"notify_sound,omitempty"`
}

// Merge applies patch onto current with an explicit per-field fallback rule:
// the patch value wins when present and valid, otherwise the current value is
// kept. Merge never fails; invalid fields are silently dropped.
func Merge(current Policy, patch Patch) Policy {
	merged := current

	if patch.Transport != nil {
		switch *patch.Transport {
		case choice.TransportTerminal, choice.TransportWeb, choice.TransportTerminalWeb:
			merged.Transport = *patch.Transport
		}
	}
	if patch.TimeoutSeconds != nil && *patch.TimeoutSeconds > 0 {
		merged.TimeoutSeconds = *patch.TimeoutSeconds
	}
	if patch.SingleSubmitMode != nil {
		merged.SingleSubmitMode = *patch.SingleSubmitMode
	}
	if patch.UseDefaultOption != nil {
		merged.UseDefaultOption = *patch.UseDefaultOption
	}
	if patch.TimeoutAction != nil {
		switch *patch.TimeoutAction {
		case choice.TimeoutSubmit, choice.TimeoutCancel, choice.TimeoutReinvoke:
			merged.TimeoutAction = *patch.TimeoutAction
		}
	}
	if patch.Language != nil && (*patch.Language == LangEN || *patch.Language == LangZH) {
		merged.Language = *patch.Language
	}
	if patch.NotifyNew != nil {
		merged.NotifyNew = *patch.NotifyNew
	}
	if patch.NotifyUpcoming != nil {
		merged.NotifyUpcoming = *patch.NotifyUpcoming
	}
	if patch.UpcomingThreshold != nil && *patch.UpcomingThreshold > 0 {
		merged.UpcomingThreshold = *patch.UpcomingThreshold
	}
	if patch.NotifyTimeout != nil {
		merged.NotifyTimeout = *patch.NotifyTimeout
	}
	if patch.NotifySound != nil {
		merged.NotifySound = *patch.NotifySound
	}

	return merged
}

// Store reads and writes the persisted policy.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir (usually BaseDir()).
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads config.yaml. A missing file returns (nil, nil) so callers can
// fall back to DefaultPolicy; a malformed file is an error.
func (s *Store) Load() (*Policy, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var pol Policy
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	sanitize(&pol)
	return &pol, nil
}

// LoadOrDefault returns the persisted policy, or the defaults when the file
// is missing or unreadable. ASKGATE_TIMEOUT_SECONDS overrides the timeout.
func (s *Store) LoadOrDefault() Policy {
	pol, err := s.Load()
	if err != nil || pol == nil {
		def := DefaultPolicy()
		pol = &def
	}
	if raw := os.Getenv("ASKGATE_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			pol.TimeoutSeconds = secs
		}
	}
	return *pol
}

// Save writes pol to config.yaml, creating the askgate directory if needed.
func (s *Store) Save(pol Policy) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(pol)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	path := filepath.Join(s.dir, configFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// sanitize replaces out-of-range values from hand-edited files with defaults.
func sanitize(pol *Policy) {
	def := DefaultPolicy()
	switch pol.Transport {
	case choice.TransportTerminal, choice.TransportWeb, choice.TransportTerminalWeb:
	default:
		pol.Transport = def.Transport
	}
	if pol.TimeoutSeconds <= 0 {
		pol.TimeoutSeconds = def.TimeoutSeconds
	}
	switch pol.TimeoutAction {
	case choice.TimeoutSubmit, choice.TimeoutCancel, choice.TimeoutReinvoke:
	default:
		pol.TimeoutAction = def.TimeoutAction
	}
	if pol.Language != LangEN && pol.Language != LangZH {
		pol.Language = def.Language
	}
	if pol.RetentionDays <= 0 {
		pol.RetentionDays = def.RetentionDays
	}
	if pol.MaxSessions <= 0 {
		pol.MaxSessions = def.MaxSessions
	}
	if pol.UpcomingThreshold <= 0 {
		pol.UpcomingThreshold = def.UpcomingThreshold
	}
}
