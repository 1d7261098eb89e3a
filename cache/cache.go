package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned by Load when no record exists for the profile.
	ErrNotFound = errors.New("no credential record found")
	// ErrCorrupt is returned by Load when a stored record fails parsing or
	// validation. A corrupt record is never partially trusted.
	ErrCorrupt = errors.New("credential record is corrupt")
)

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Store persists one credential record per profile name under a user-scoped
// data directory. Writes are atomic (write-temp-then-rename), so concurrent
// readers observe either the old or the new complete record. Two processes
// refreshing at once race benignly: last writer wins and both results are
// independently valid tokens.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a Store rooted at dir on the given filesystem.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// DefaultDir returns the credential directory: $NIXCRAFT_AUTH_DIR if set,
// otherwise ~/.local/share/nixcraft/auth.
func DefaultDir() (string, error) {
	if dir := os.Getenv("NIXCRAFT_AUTH_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "nixcraft", "auth"), nil
}

// RecordPath returns the path of the record file for a profile.
func (s *Store) RecordPath(profile string) string {
	return filepath.Join(s.dir, profile+".json")
}

// LauncherTokenPath returns the path of the bare access-token file the
// launcher reads via its accessTokenPath config key.
func (s *Store) LauncherTokenPath(profile string) string {
	return filepath.Join(s.dir, profile+".mctoken")
}

// Load reads and validates the record for a profile. It returns ErrNotFound
// if no record exists and ErrCorrupt if the stored data fails schema or
// version validation.
func (s *Store) Load(profile string) (*Record, error) {
	path := s.RecordPath(profile)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("profile %q: %w", profile, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read credential record %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to parse credential record")
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := rec.Validate(); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Credential record failed validation")
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &rec, nil
}

// Put atomically replaces the record for a profile. Owner-only permissions
// are enforced on every write, not only at creation.
func (s *Store) Put(profile string, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("cannot store a nil record")
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid record: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credential record: %w", err)
	}

	if err := s.ensureDir(); err != nil {
		return err
	}
	path := s.RecordPath(profile)
	if err := s.atomicWrite(path, data); err != nil {
		return err
	}
	log.Debug().Str("path", path).Msg("Credential record stored")
	return nil
}

// WriteLauncherToken rewrites the bare token file next to the record.
func (s *Store) WriteLauncherToken(profile, accessToken string) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	return s.atomicWrite(s.LauncherTokenPath(profile), []byte(accessToken+"\n"))
}

// Clear removes the record and launcher token file for a profile. It is
// idempotent: clearing an absent profile is not an error.
func (s *Store) Clear(profile string) error {
	for _, path := range []string{s.RecordPath(profile), s.LauncherTokenPath(profile)} {
		if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func (s *Store) ensureDir() error {
	if err := s.fs.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("failed to create credential directory %s: %w", s.dir, err)
	}
	if err := s.fs.Chmod(s.dir, dirMode); err != nil {
		return fmt.Errorf("failed to restrict credential directory %s: %w", s.dir, err)
	}
	return nil
}

// atomicWrite writes data to a temp file and renames it over path, so a
// crash mid-write never leaves a truncated record visible to the next read.
func (s *Store) atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, fileMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := s.fs.Chmod(tmp, fileMode); err != nil {
		return fmt.Errorf("failed to restrict %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	if err := s.fs.Chmod(path, fileMode); err != nil {
		return fmt.Errorf("failed to restrict %s: %w", path, err)
	}
	return nil
}
