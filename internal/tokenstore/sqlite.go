package tokenstore

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists credentials in SQLite with WAL mode. Blobs are
// AES-GCM encrypted when an encryption key is configured.
type SQLiteStore struct {
	db     *sql.DB
	cipher *credentialCipher
}

// NewSQLiteStore opens (and migrates) the credential database.
func NewSQLiteStore(dbPath, hexKey string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			data BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, provider)
		)
	`)
	if err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseQuery{Operation: "create credentials table", Err: err}
	}

	cipher, err := newCredentialCipher(hexKey)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, cipher: cipher}, nil
}

// Get retrieves the credential for (userID, provider).
func (s *SQLiteStore) Get(userID, provider string) (*models.Credential, bool, error) {
	var blob []byte
	err := s.db.QueryRow(
		"SELECT data FROM credentials WHERE user_id = ? AND provider = ?",
		userID, provider,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errors.ErrDatabaseQuery{Operation: "get credential", Err: err}
	}

	plaintext, err := s.cipher.open(blob)
	if err != nil {
		return nil, false, &errors.ErrDatabaseQuery{Operation: "decrypt credential", Err: err}
	}

	var cred models.Credential
	if err := json.Unmarshal(plaintext, &cred); err != nil {
		return nil, false, &errors.ErrDatabaseQuery{Operation: "decode credential", Err: err}
	}
	return &cred, true, nil
}

// Set stores or replaces the credential for (userID, provider).
func (s *SQLiteStore) Set(userID, provider string, cred *models.Credential) error {
	cred.UpdatedAt = time.Now()
	plaintext, err := json.Marshal(cred)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "encode credential", Err: err}
	}

	blob, err := s.cipher.seal(plaintext)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "encrypt credential", Err: err}
	}

	_, err = s.db.Exec(`
		INSERT INTO credentials (user_id, provider, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, provider) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, userID, provider, blob, cred.UpdatedAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set credential", Err: err}
	}
	return nil
}

// Delete removes the credential for (userID, provider). Deleting a missing
// credential is not an error.
func (s *SQLiteStore) Delete(userID, provider string) error {
	_, err := s.db.Exec("DELETE FROM credentials WHERE user_id = ? AND provider = ?", userID, provider)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "delete credential", Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
