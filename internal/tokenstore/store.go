package tokenstore

import (
	"github.com/linkhub/linkhub/internal/models"
)

// Store holds the OAuth tuple per (user, provider). Get returns ok=false
// rather than an error for "never connected".
type Store interface {
	Get(userID, provider string) (*models.Credential, bool, error)
	Set(userID, provider string, cred *models.Credential) error
	Delete(userID, provider string) error
	Close() error
}
