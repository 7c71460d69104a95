package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkhub/linkhub/internal/models"
)

// MemoryStore is an in-memory persistence facade for tests. It mirrors the
// SQLite implementation's semantics, including the natural-key constraint
// on list items.
type MemoryStore struct {
	mu           sync.RWMutex
	integrations map[string]models.Integration        // name -> integration
	links        map[string]models.Link               // userID+integrationID -> link
	lists        map[string]models.List               // name -> list
	userLists    map[string]models.UserList           // userID+listID -> userList
	categories   map[string]models.Category           // listID+name -> category
	items        map[string]models.NormalizedItem     // listID+provider+externalID -> item

	// FailCreates makes item writes fail, for partial-failure tests.
	FailCreates bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		integrations: make(map[string]models.Integration),
		links:        make(map[string]models.Link),
		lists:        make(map[string]models.List),
		userLists:    make(map[string]models.UserList),
		categories:   make(map[string]models.Category),
		items:        make(map[string]models.NormalizedItem),
	}
}

func linkKey(userID, integrationID string) string {
	return userID + "\x00" + integrationID
}

func itemKey(listID, provider, externalID string) string {
	return listID + "\x00" + provider + "\x00" + externalID
}

func (m *MemoryStore) EnsureIntegration(name string) (*models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if integration, ok := m.integrations[name]; ok {
		return &integration, nil
	}
	integration := models.Integration{ID: uuid.New().String(), Name: name}
	m.integrations[name] = integration
	return &integration, nil
}

func (m *MemoryStore) GetIntegration(name string) (*models.Integration, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	integration, ok := m.integrations[name]
	if !ok {
		return nil, false, nil
	}
	return &integration, true, nil
}

func (m *MemoryStore) EnsureUserIntegration(userID, integrationID string) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkKey(userID, integrationID)
	if link, ok := m.links[key]; ok {
		return &link, nil
	}
	now := time.Now()
	link := models.Link{
		ID:            uuid.New().String(),
		UserID:        userID,
		IntegrationID: integrationID,
		Status:        models.LinkDisconnected,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.links[key] = link
	return &link, nil
}

func (m *MemoryStore) GetUserIntegration(userID, integrationID string) (*models.Link, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[linkKey(userID, integrationID)]
	if !ok {
		return nil, false, nil
	}
	return &link, true, nil
}

func (m *MemoryStore) MarkConnected(userID, integrationID string) error {
	if _, err := m.EnsureUserIntegration(userID, integrationID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkKey(userID, integrationID)
	link := m.links[key]
	link.Status = models.LinkConnected
	link.UpdatedAt = time.Now()
	m.links[key] = link
	return nil
}

func (m *MemoryStore) MarkDisconnected(userID, integrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := linkKey(userID, integrationID)
	link, ok := m.links[key]
	if !ok {
		return nil
	}
	link.Status = models.LinkDisconnected
	link.UpdatedAt = time.Now()
	m.links[key] = link
	return nil
}

func (m *MemoryStore) MarkSynced(linkID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, link := range m.links {
		if link.ID == linkID {
			link.LastSyncedAt = &at
			link.UpdatedAt = time.Now()
			m.links[key] = link
			return nil
		}
	}
	return nil
}

func (m *MemoryStore) GetLastSyncedAt(userID, integrationID string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[linkKey(userID, integrationID)]
	if !ok {
		return nil, nil
	}
	return link.LastSyncedAt, nil
}

func (m *MemoryStore) EnsureListAndCategory(userID, listName, categoryName string) (*ListContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, ok := m.lists[listName]
	if !ok {
		list = models.List{ID: uuid.New().String(), Name: listName}
		m.lists[listName] = list
	}

	ulKey := userID + "\x00" + list.ID
	userList, ok := m.userLists[ulKey]
	if !ok {
		userList = models.UserList{ID: uuid.New().String(), UserID: userID, ListID: list.ID}
		m.userLists[ulKey] = userList
	}

	catKey := list.ID + "\x00" + categoryName
	category, ok := m.categories[catKey]
	if !ok {
		category = models.Category{ID: uuid.New().String(), ListID: list.ID, Name: categoryName}
		m.categories[catKey] = category
	}

	return &ListContext{List: list, UserList: userList, Category: category}, nil
}

func (m *MemoryStore) CreateListItem(item *models.NormalizedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreates {
		return fmt.Errorf("simulated write failure")
	}
	key := itemKey(item.ListID, item.Provider, item.ExternalID)
	if _, ok := m.items[key]; ok {
		return fmt.Errorf("duplicate item for natural key %s/%s", item.Provider, item.ExternalID)
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	m.items[key] = *item
	return nil
}

func (m *MemoryStore) UpsertListItem(item *models.NormalizedItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreates {
		return fmt.Errorf("simulated write failure")
	}
	key := itemKey(item.ListID, item.Provider, item.ExternalID)
	if existing, ok := m.items[key]; ok {
		item.ID = existing.ID
	} else if item.ID == "" {
		item.ID = uuid.New().String()
	}
	m.items[key] = *item
	return nil
}

func (m *MemoryStore) ItemExists(listID, provider, externalID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[itemKey(listID, provider, externalID)]
	return ok, nil
}

func (m *MemoryStore) CountListItems(listID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, item := range m.items {
		if item.ListID == listID {
			count++
		}
	}
	return count, nil
}

// Item returns a stored item by natural key, for tests.
func (m *MemoryStore) Item(listID, provider, externalID string) (models.NormalizedItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[itemKey(listID, provider, externalID)]
	return item, ok
}

func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
