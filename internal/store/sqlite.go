package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-backed persistence with WAL mode.
// It is safe for concurrent use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database, enables WAL mode, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS integrations (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS user_integrations (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					integration_id TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'DISCONNECTED',
					last_synced_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (user_id, integration_id),
					FOREIGN KEY (integration_id) REFERENCES integrations(id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS lists (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE
				);

				CREATE TABLE IF NOT EXISTS user_lists (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					list_id TEXT NOT NULL,
					UNIQUE (user_id, list_id),
					FOREIGN KEY (list_id) REFERENCES lists(id) ON DELETE CASCADE
				);

				CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					list_id TEXT NOT NULL,
					name TEXT NOT NULL,
					UNIQUE (list_id, name),
					FOREIGN KEY (list_id) REFERENCES lists(id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_user_integrations_user ON user_integrations(user_id);
			`,
		},
		{
			version: 2,
			up: `
				CREATE TABLE IF NOT EXISTS list_items (
					id TEXT PRIMARY KEY,
					list_id TEXT NOT NULL,
					category_id TEXT,
					title TEXT NOT NULL,
					attributes TEXT NOT NULL DEFAULT '{}',
					attribute_types TEXT NOT NULL DEFAULT '{}',
					provider TEXT NOT NULL,
					external_id TEXT NOT NULL,
					external_type TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE (list_id, provider, external_id),
					FOREIGN KEY (list_id) REFERENCES lists(id) ON DELETE CASCADE
				);

				CREATE INDEX IF NOT EXISTS idx_list_items_list ON list_items(list_id);
				CREATE INDEX IF NOT EXISTS idx_list_items_category ON list_items(category_id);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// EnsureIntegration creates the catalog record for name if it does not exist.
func (s *SQLiteStore) EnsureIntegration(name string) (*models.Integration, error) {
	_, err := s.db.Exec(
		"INSERT INTO integrations (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		uuid.New().String(), name,
	)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "ensure integration", Err: err}
	}

	integration, ok, err := s.GetIntegration(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errors.ErrDatabaseQuery{Operation: "ensure integration", Err: sql.ErrNoRows}
	}
	return integration, nil
}

// GetIntegration looks up the catalog record by name.
func (s *SQLiteStore) GetIntegration(name string) (*models.Integration, bool, error) {
	var integration models.Integration
	err := s.db.QueryRow("SELECT id, name FROM integrations WHERE name = ?", name).
		Scan(&integration.ID, &integration.Name)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errors.ErrDatabaseQuery{Operation: "get integration", Err: err}
	}
	return &integration, true, nil
}

// EnsureUserIntegration creates the link row for (userID, integrationID) if
// missing, initially DISCONNECTED.
func (s *SQLiteStore) EnsureUserIntegration(userID, integrationID string) (*models.Link, error) {
	_, err := s.db.Exec(`
		INSERT INTO user_integrations (id, user_id, integration_id, status)
		VALUES (?, ?, ?, 'DISCONNECTED')
		ON CONFLICT(user_id, integration_id) DO NOTHING
	`, uuid.New().String(), userID, integrationID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "ensure user integration", Err: err}
	}

	link, ok, err := s.GetUserIntegration(userID, integrationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errors.ErrDatabaseQuery{Operation: "ensure user integration", Err: sql.ErrNoRows}
	}
	return link, nil
}

// GetUserIntegration looks up the link for (userID, integrationID).
func (s *SQLiteStore) GetUserIntegration(userID, integrationID string) (*models.Link, bool, error) {
	var link models.Link
	var lastSynced sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, user_id, integration_id, status, last_synced_at, created_at, updated_at
		FROM user_integrations WHERE user_id = ? AND integration_id = ?
	`, userID, integrationID).Scan(&link.ID, &link.UserID, &link.IntegrationID, &link.Status, &lastSynced, &link.CreatedAt, &link.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &errors.ErrDatabaseQuery{Operation: "get user integration", Err: err}
	}
	if lastSynced.Valid {
		link.LastSyncedAt = &lastSynced.Time
	}
	return &link, true, nil
}

// MarkConnected sets the link status to CONNECTED, creating the link first
// when necessary.
func (s *SQLiteStore) MarkConnected(userID, integrationID string) error {
	if _, err := s.EnsureUserIntegration(userID, integrationID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		UPDATE user_integrations SET status = 'CONNECTED', updated_at = ?
		WHERE user_id = ? AND integration_id = ?
	`, time.Now(), userID, integrationID)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "mark connected", Err: err}
	}
	return nil
}

// MarkDisconnected sets the link status to DISCONNECTED. A missing link is
// not an error.
func (s *SQLiteStore) MarkDisconnected(userID, integrationID string) error {
	_, err := s.db.Exec(`
		UPDATE user_integrations SET status = 'DISCONNECTED', updated_at = ?
		WHERE user_id = ? AND integration_id = ?
	`, time.Now(), userID, integrationID)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "mark disconnected", Err: err}
	}
	return nil
}

// MarkSynced advances the watermark on a link.
func (s *SQLiteStore) MarkSynced(linkID string, at time.Time) error {
	_, err := s.db.Exec(
		"UPDATE user_integrations SET last_synced_at = ?, updated_at = ? WHERE id = ?",
		at, time.Now(), linkID,
	)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "mark synced", Err: err}
	}
	return nil
}

// GetLastSyncedAt reads the watermark for (userID, integrationID). Returns
// nil when the link does not exist or has never synced.
func (s *SQLiteStore) GetLastSyncedAt(userID, integrationID string) (*time.Time, error) {
	link, ok, err := s.GetUserIntegration(userID, integrationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return link.LastSyncedAt, nil
}

// EnsureListAndCategory resolves or creates the (list, userList, category)
// triple an item is written against.
func (s *SQLiteStore) EnsureListAndCategory(userID, listName, categoryName string) (*ListContext, error) {
	_, err := s.db.Exec(
		"INSERT INTO lists (id, name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING",
		uuid.New().String(), listName,
	)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "ensure list", Err: err}
	}

	var list models.List
	if err := s.db.QueryRow("SELECT id, name FROM lists WHERE name = ?", listName).Scan(&list.ID, &list.Name); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get list", Err: err}
	}

	_, err = s.db.Exec(
		"INSERT INTO user_lists (id, user_id, list_id) VALUES (?, ?, ?) ON CONFLICT(user_id, list_id) DO NOTHING",
		uuid.New().String(), userID, list.ID,
	)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "ensure user list", Err: err}
	}

	var userList models.UserList
	err = s.db.QueryRow("SELECT id, user_id, list_id FROM user_lists WHERE user_id = ? AND list_id = ?", userID, list.ID).
		Scan(&userList.ID, &userList.UserID, &userList.ListID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get user list", Err: err}
	}

	_, err = s.db.Exec(
		"INSERT INTO categories (id, list_id, name) VALUES (?, ?, ?) ON CONFLICT(list_id, name) DO NOTHING",
		uuid.New().String(), list.ID, categoryName,
	)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "ensure category", Err: err}
	}

	var category models.Category
	err = s.db.QueryRow("SELECT id, list_id, name FROM categories WHERE list_id = ? AND name = ?", list.ID, categoryName).
		Scan(&category.ID, &category.ListID, &category.Name)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get category", Err: err}
	}

	return &ListContext{List: list, UserList: userList, Category: category}, nil
}

// CreateListItem inserts a new item. It fails on a natural-key conflict; the
// create-only sync path is expected to check ItemExists first.
func (s *SQLiteStore) CreateListItem(item *models.NormalizedItem) error {
	attrs, types, err := encodeAttributes(item)
	if err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err = s.db.Exec(`
		INSERT INTO list_items (id, list_id, category_id, title, attributes, attribute_types, provider, external_id, external_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.ListID, nullable(item.CategoryID), item.Title, attrs, types, item.Provider, item.ExternalID, nullable(item.ExternalType))
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create list item", Err: err}
	}
	return nil
}

// UpsertListItem writes an item keyed by (list, provider, externalId),
// replacing prior attributes in place.
func (s *SQLiteStore) UpsertListItem(item *models.NormalizedItem) error {
	attrs, types, err := encodeAttributes(item)
	if err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err = s.db.Exec(`
		INSERT INTO list_items (id, list_id, category_id, title, attributes, attribute_types, provider, external_id, external_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(list_id, provider, external_id) DO UPDATE SET
			category_id = excluded.category_id,
			title = excluded.title,
			attributes = excluded.attributes,
			attribute_types = excluded.attribute_types,
			external_type = excluded.external_type,
			updated_at = CURRENT_TIMESTAMP
	`, item.ID, item.ListID, nullable(item.CategoryID), item.Title, attrs, types, item.Provider, item.ExternalID, nullable(item.ExternalType))
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "upsert list item", Err: err}
	}
	return nil
}

// ItemExists checks the natural key (provider, externalId) scoped to a list.
func (s *SQLiteStore) ItemExists(listID, provider, externalID string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM list_items WHERE list_id = ? AND provider = ? AND external_id = ?",
		listID, provider, externalID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "item exists", Err: err}
	}
	return true, nil
}

// CountListItems counts items in a list.
func (s *SQLiteStore) CountListItems(listID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM list_items WHERE list_id = ?", listID).Scan(&count)
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count list items", Err: err}
	}
	return count, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeAttributes(item *models.NormalizedItem) (string, string, error) {
	attrs, err := json.Marshal(item.Attributes)
	if err != nil {
		return "", "", &errors.ErrDatabaseQuery{Operation: "encode attributes", Err: err}
	}
	types, err := json.Marshal(item.AttributeTypes)
	if err != nil {
		return "", "", &errors.ErrDatabaseQuery{Operation: "encode attribute types", Err: err}
	}
	return string(attrs), string(types), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*SQLiteStore)(nil)
