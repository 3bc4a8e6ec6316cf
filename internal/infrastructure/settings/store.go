// Package settings persists user preferences of the board (ranking mode,
// collation language) in a small YAML file.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/planboard/planboard-core/internal/domain/ranking"
)

// Settings holds board preferences.
type Settings struct {
	// RankingMode is the default sort mode of the board.
	RankingMode ranking.Mode `yaml:"ranking_mode"`

	// Language is a BCP 47 tag used for name collation.
	Language string `yaml:"language,omitempty"`

	// UpdatedAt is set by Save.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Defaults returns settings used when no file exists.
func Defaults() Settings {
	return Settings{RankingMode: ranking.DefaultMode}
}

// LanguageTag parses Language, falling back to language.Und.
func (s Settings) LanguageTag() language.Tag {
	if s.Language == "" {
		return language.Und
	}
	tag, err := language.Parse(s.Language)
	if err != nil {
		return language.Und
	}
	return tag
}

// Validate checks the mode and language.
func (s Settings) Validate() error {
	if !s.RankingMode.Valid() {
		return fmt.Errorf("settings: unknown ranking mode %q", s.RankingMode)
	}
	if s.Language != "" {
		if _, err := language.Parse(s.Language); err != nil {
			return fmt.Errorf("settings: invalid language %q: %w", s.Language, err)
		}
	}
	return nil
}

// Store reads and writes Settings at a file path.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewStore creates a Store for path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// DefaultPath returns $XDG_CONFIG_HOME/planboard/settings.yaml or the
// platform equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "planboard", "settings.yaml"), nil
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields Defaults.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	settings := Defaults()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Save validates and writes the settings atomically.
func (s *Store) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = s.now().UTC().Truncate(time.Second)
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}

// SetRankingMode updates only the ranking mode.
func (s *Store) SetRankingMode(mode ranking.Mode) (Settings, error) {
	current, err := s.Load()
	if err != nil {
		return Settings{}, err
	}
	current.RankingMode = mode
	if err := s.Save(current); err != nil {
		return Settings{}, err
	}
	return s.Load()
}
