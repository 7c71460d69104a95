package store

import (
	"time"

	"github.com/linkhub/linkhub/internal/models"
)

// ListContext is the resolved (list, userList, category) triple a normalized
// item is written against.
type ListContext struct {
	List     models.List
	UserList models.UserList
	Category models.Category
}

// Store is the persistence facade every adapter and the sync engine write
// through. Lookups return ok=false rather than an error for absent rows.
type Store interface {
	// Integration catalog
	EnsureIntegration(name string) (*models.Integration, error)
	GetIntegration(name string) (*models.Integration, bool, error)

	// Connection links
	EnsureUserIntegration(userID, integrationID string) (*models.Link, error)
	GetUserIntegration(userID, integrationID string) (*models.Link, bool, error)
	MarkConnected(userID, integrationID string) error
	MarkDisconnected(userID, integrationID string) error
	MarkSynced(linkID string, at time.Time) error
	GetLastSyncedAt(userID, integrationID string) (*time.Time, error)

	// Lists, categories, items
	EnsureListAndCategory(userID, listName, categoryName string) (*ListContext, error)
	CreateListItem(item *models.NormalizedItem) error
	UpsertListItem(item *models.NormalizedItem) error
	ItemExists(listID, provider, externalID string) (bool, error)
	CountListItems(listID string) (int, error)

	Close() error
}
