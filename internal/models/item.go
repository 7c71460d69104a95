package models

// DataType describes the type of a normalized item attribute, so consumers
// can render attributes without guessing.
type DataType string

const (
	TypeString   DataType = "string"
	TypeNumber   DataType = "number"
	TypeBool     DataType = "bool"
	TypeDate     DataType = "date"
	TypeDuration DataType = "duration"
)

// NormalizedItem is the generic record every provider sync writes.
// (Provider, ExternalID) is the natural key used for deduplication.
type NormalizedItem struct {
	ID             string
	ListID         string
	CategoryID     string
	Title          string
	Attributes     map[string]interface{}
	AttributeTypes map[string]DataType
	Provider       string
	ExternalID     string
	ExternalType   string
}

// Integration is the catalog record for a provider.
type Integration struct {
	ID   string
	Name string
}

// List is a user-visible collection normalized items land in.
type List struct {
	ID   string
	Name string
}

// UserList ties a list to a user.
type UserList struct {
	ID     string
	UserID string
	ListID string
}

// Category groups items inside a list.
type Category struct {
	ID     string
	ListID string
	Name   string
}
