package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"outlookmcp/internal/logging"
)

// Store is the durable, file-backed mapping from user id to TokenRecord and
// the sole source of truth for credential state. Every access re-reads the
// file rather than holding an in-memory cache, so state stays consistent
// across process restarts and with the companion authorization server writing
// to the same path.
//
// All mutations are full read-modify-write cycles serialized by a store-wide
// mutex. That removes the lost-update hazard between concurrent tool calls in
// this process; writers in other processes sharing the path still race at the
// file level (last writer wins for the whole file).
type Store struct {
	path   string
	logger *slog.Logger

	// mu serializes read-modify-write cycles. Held for the full cycle, not
	// just the write, so interleaved mutations cannot drop each other's
	// entries.
	mu sync.Mutex

	now func() time.Time
}

// DefaultTokenPath returns the default token store location in the user's
// home directory. The companion authorization server writes to the same file.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".outlook-mcp-tokens.json"
	}
	return filepath.Join(home, ".outlook-mcp-tokens.json")
}

// NewStore creates a token store persisting to the given path, or to
// DefaultTokenPath when path is empty. The file is created lazily on first
// save.
func NewStore(path string, logger *slog.Logger) *Store {
	if path == "" {
		path = DefaultTokenPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Path returns the storage file path.
func (s *Store) Path() string {
	return s.path
}

// Get returns the token record for a user, or nil if none is stored.
// A missing or corrupt storage file behaves as an empty mapping.
func (s *Store) Get(userID string) (*TokenRecord, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	records, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return records[userID], nil
}

// Save persists a token record for a user, computing ExpiresAt from
// ExpiresIn when the provider did not supply an absolute expiry.
func (s *Store) Save(userID string, record *TokenRecord) error {
	if userID == "" {
		return &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if record == nil || record.AccessToken == "" {
		return &ValidationError{Field: "record", Reason: "accessToken must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ExpiresAt == 0 {
		record.ExpiresAt = s.now().Add(time.Duration(record.ExpiresIn) * time.Second).UnixMilli()
	}

	records, err := s.readAll()
	if err != nil {
		return err
	}
	records[userID] = record

	if err := s.writeAll(records); err != nil {
		return err
	}

	s.logger.Debug("token saved",
		logging.UserHash(userID),
		slog.String("token", logging.SanitizeToken(record.AccessToken)),
		slog.Time("expires_at", record.ExpiryTime()))
	return nil
}

// Delete removes the token record for a user. It returns true when a record
// existed and was removed, false when none was stored.
func (s *Store) Delete(userID string) (bool, error) {
	if userID == "" {
		return false, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readAll()
	if err != nil {
		return false, err
	}
	if _, ok := records[userID]; !ok {
		return false, nil
	}

	delete(records, userID)
	if err := s.writeAll(records); err != nil {
		return false, err
	}

	s.logger.Info("token deleted", logging.UserHash(userID))
	return true, nil
}

// ListUsers returns the ids of all users with a stored token, sorted for
// deterministic output. Absent or corrupt storage yields an empty list.
func (s *Store) ListUsers() ([]string, error) {
	records, err := s.readAll()
	if err != nil {
		return nil, err
	}

	users := make([]string, 0, len(records))
	for userID := range records {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

// Validate scans all stored records, drops entries without an access token,
// logs (without failing) records missing a refresh token or scope, and
// rewrites the cleaned mapping. It returns true when the existing content was
// a readable mapping and false when the file was corrupt and had to be
// recreated.
func (s *Store) Validate() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clean := true

	data, err := os.ReadFile(s.path)
	raw := make(map[string]json.RawMessage)
	switch {
	case os.IsNotExist(err):
		// Nothing stored yet; write an empty valid mapping.
	case err != nil:
		return false, fmt.Errorf("failed to read token storage: %w", err)
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			s.logger.Warn("token storage corrupt, recreating", logging.Err(err))
			raw = make(map[string]json.RawMessage)
			clean = false
		}
	}

	records := make(map[string]*TokenRecord, len(raw))
	for userID, entry := range raw {
		var record TokenRecord
		if err := json.Unmarshal(entry, &record); err != nil {
			s.logger.Warn("dropping malformed token record", logging.UserHash(userID))
			continue
		}
		if record.AccessToken == "" {
			s.logger.Warn("dropping token record without access token", logging.UserHash(userID))
			continue
		}
		if record.RefreshToken == "" {
			s.logger.Info("token record has no refresh token; re-authentication will be required on expiry",
				logging.UserHash(userID))
		}
		if record.Scope == "" {
			s.logger.Info("token record has no recorded scopes", logging.UserHash(userID))
		}
		records[userID] = &record
	}

	if err := s.writeAll(records); err != nil {
		return false, err
	}
	return clean, nil
}

// readAll loads the entire mapping from disk. A missing file or malformed
// content degrades to an empty mapping; any other I/O error propagates since
// it indicates an environment problem (permissions, disk).
func (s *Store) readAll() (map[string]*TokenRecord, error) {
	records := make(map[string]*TokenRecord)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token storage: %w", err)
	}

	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("token storage unreadable, treating as empty", logging.Err(err))
		return make(map[string]*TokenRecord), nil
	}
	return records, nil
}

// writeAll atomically replaces the storage file with the given mapping.
// The file carries owner-only permissions since it holds bearer credentials.
func (s *Store) writeAll(records map[string]*TokenRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token storage directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token storage: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write token storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write token storage: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token storage: %w", err)
	}
	return nil
}
