package providers

import (
	"context"

	"github.com/linkhub/linkhub/internal/models"
)

// Adapter is the contract every provider integration implements. The HTTP
// layer dispatches on provider name and never knows provider specifics.
type Adapter interface {
	// Name is the stable lowercase provider identifier, e.g. "strava".
	Name() string
	// CreateConnection starts a connection flow for userID. OAuth providers
	// return an authorization URL carrying a state token; device providers
	// return a capability descriptor and an upload token instead.
	CreateConnection(ctx context.Context, userID string) (*ConnectionResult, error)
	// HandleCallback completes a connection flow from a provider callback.
	// It returns the user id recovered from the payload's state token.
	HandleCallback(ctx context.Context, payload CallbackPayload) (string, error)
	// Sync runs one incremental data sync for a connected user.
	Sync(ctx context.Context, userID string) (*models.SyncResult, error)
	// Status reports effective connection state without touching the
	// provider's API.
	Status(ctx context.Context, userID string) (*models.ConnectionStatus, error)
	// Disconnect drops the stored credential and marks the link disconnected.
	Disconnect(ctx context.Context, userID string) error
}

// ConnectionResult is what CreateConnection hands back to the client.
type ConnectionResult struct {
	// AuthURL is the provider authorization page to redirect the user to.
	AuthURL string `json:"auth_url,omitempty"`
	// State echoes the minted state token for clients that build their own
	// redirect.
	State string `json:"state,omitempty"`
	// LinkToken is the short-lived client token for embedded link flows.
	LinkToken string `json:"link_token,omitempty"`
	// UploadToken authenticates subsequent device uploads. Only device
	// providers set it.
	UploadToken string `json:"upload_token,omitempty"`
	// Capability describes what a device integration should capture and
	// upload. Only device providers set it.
	Capability map[string]interface{} `json:"capability,omitempty"`
}

// CallbackPayload is the union of everything a provider callback can carry.
// OAuth redirects populate State/Code/Error from query parameters; embedded
// and device flows post the other fields as JSON.
type CallbackPayload struct {
	State string `json:"state" form:"state"`
	Code  string `json:"code" form:"code"`
	Error string `json:"error" form:"error"`

	// PublicToken is the embedded-link exchange token (Plaid-style flows).
	PublicToken string `json:"public_token" form:"public_token"`

	// DeviceToken authenticates uploads from device integrations, and
	// Samples is the batch being uploaded.
	DeviceToken string                   `json:"device_token" form:"device_token"`
	Samples     []map[string]interface{} `json:"samples"`

	// Username and Password connect scrape-backed providers that have no
	// OAuth surface.
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}
