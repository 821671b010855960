// Copyright 2026 The Tabpulse Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// deviceFile is the filename holding the device identifier inside the
// state directory.
const deviceFile = "device-id"

// Store resolves device and tab identifiers backed by two directories:
// stateDir for the long-lived device identifier, sessionDir for
// per-tab identifiers.
type Store struct {
	stateDir   string
	sessionDir string
	logger     *slog.Logger
}

// NewStore returns a Store rooted at the given directories. Neither
// directory needs to exist yet; they are created on first write.
func NewStore(stateDir, sessionDir string, logger *slog.Logger) *Store {
	return &Store{
		stateDir:   stateDir,
		sessionDir: sessionDir,
		logger:     logger,
	}
}

// DeviceID returns the persistent device identifier, generating and
// persisting a new one on first use. When the state directory cannot
// be written, a fresh ephemeral identifier is returned and a warning
// logged; the caller keeps working with an identity that won't
// survive a restart.
func (s *Store) DeviceID() string {
	path := filepath.Join(s.stateDir, deviceFile)
	if id, err := readIdentifier(path); err == nil {
		return id
	}

	id := uuid.NewString()
	if err := writeIdentifier(path, id); err != nil {
		s.logger.Warn("device identifier not persisted, using ephemeral id",
			"path", path,
			"error", err)
	}
	return id
}

// TabID returns the identifier for the named tab, generating and
// persisting a new one on first use. Tab identifiers live in the
// session directory and do not survive session teardown.
func (s *Store) TabID(name string) string {
	path := filepath.Join(s.sessionDir, "tab-"+sanitize(name))
	if id, err := readIdentifier(path); err == nil {
		return id
	}

	id := uuid.NewString()
	if err := writeIdentifier(path, id); err != nil {
		s.logger.Warn("tab identifier not persisted, using ephemeral id",
			"tab", name,
			"path", path,
			"error", err)
	}
	return id
}

// readIdentifier reads a previously persisted identifier. Returns an
// error when the file is absent, unreadable, or does not hold a UUID.
func readIdentifier(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("parsing identifier file %s: %w", path, err)
	}
	return id, nil
}

// writeIdentifier persists an identifier atomically: write to a
// temporary file, sync, rename into place, then sync the parent
// directory so the rename survives power loss.
func writeIdentifier(path, id string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating identifier directory: %w", err)
	}

	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary identifier file: %w", err)
	}
	if _, err := file.WriteString(id + "\n"); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary identifier file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary identifier file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary identifier file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming identifier file into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// sanitize maps a tab name to a filesystem-safe filename fragment.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
