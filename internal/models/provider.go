package models

// Provider names recognized by the hub. Adapters register under these names
// and the HTTP layer routes on them.
const (
	ProviderPlaid    = "plaid"
	ProviderStrava   = "strava"
	ProviderSpotify  = "spotify"
	ProviderHealth   = "healthkit"
	ProviderContacts = "contacts"
	ProviderGmail    = "gmail"
	ProviderLocation = "location"
	ProviderBooks    = "books"
)

// LinkStatus is the persisted state of a (user, integration) connection.
type LinkStatus string

const (
	LinkConnected    LinkStatus = "CONNECTED"
	LinkDisconnected LinkStatus = "DISCONNECTED"
)
