package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/oauth"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/syncengine"
)

// NewContacts builds the Google Contacts adapter. The People API has no
// reliable per-contact change timestamps, so the window is effectively a full
// pull and create-only dedup keeps repeats out.
func NewContacts(cfg config.ProviderConfig, deps Deps, states *statetoken.Codec) Adapter {
	source := &contactsSource{
		api:     newAPIClient(models.ProviderContacts, deps.HTTPTimeout),
		baseURL: cfg.BaseURL,
		pageCap: deps.pageCap(),
		mock:    cfg.UseMockData,
	}
	adapter := newOAuthAdapter(models.ProviderContacts, cfg, deps, states, source, syncengine.PolicyCreateOnly,
		map[string][]string{"access_type": {"offline"}, "prompt": {"consent"}})
	source.creds = adapter.creds
	return adapter
}

type contactsSource struct {
	api     *apiClient
	creds   *oauth.Manager
	baseURL string
	pageCap int
	mock    bool
}

type peopleConnections struct {
	Connections []struct {
		ResourceName string `json:"resourceName"`
		Names        []struct {
			DisplayName string `json:"displayName"`
		} `json:"names"`
		EmailAddresses []struct {
			Value string `json:"value"`
		} `json:"emailAddresses"`
		Organizations []struct {
			Name string `json:"name"`
		} `json:"organizations"`
	} `json:"connections"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *contactsSource) ListName() string { return "Contacts" }

func (c *contactsSource) Fetch(ctx context.Context, userID string, since time.Time) ([]syncengine.Record, error) {
	if c.mock {
		return mockContactRecords(), nil
	}

	token, err := c.creds.EnsureValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var records []syncengine.Record
	pageToken := ""
	for page := 0; page < c.pageCap; page++ {
		endpoint := fmt.Sprintf("%s/people/me/connections?personFields=names,emailAddresses,organizations&pageSize=200", c.baseURL)
		if pageToken != "" {
			endpoint += "&pageToken=" + pageToken
		}

		var conns peopleConnections
		if err := c.api.getJSON(ctx, endpoint, token, &conns); err != nil {
			return nil, err
		}

		for _, person := range conns.Connections {
			name, email, org := "", "", ""
			if len(person.Names) > 0 {
				name = person.Names[0].DisplayName
			}
			if len(person.EmailAddresses) > 0 {
				email = person.EmailAddresses[0].Value
			}
			if len(person.Organizations) > 0 {
				org = person.Organizations[0].Name
			}
			if name == "" && email == "" {
				continue
			}
			records = append(records, contactRecord(person.ResourceName, name, email, org))
		}

		pageToken = conns.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return records, nil
}

// Classify groups contacts by the first letter of their display name.
func (c *contactsSource) Classify(rec syncengine.Record) string {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return ""
	}
	first := strings.ToUpper(title[:1])
	if first < "A" || first > "Z" {
		return ""
	}
	return first
}

func contactRecord(resourceName, name, email, org string) syncengine.Record {
	title := name
	if title == "" {
		title = email
	}
	return syncengine.Record{
		ExternalID:   resourceName,
		ExternalType: "contact",
		Title:        title,
		Attributes: map[string]interface{}{
			"email":        email,
			"organization": org,
		},
		AttributeTypes: map[string]models.DataType{
			"email":        models.TypeString,
			"organization": models.TypeString,
		},
	}
}

func mockContactRecords() []syncengine.Record {
	return []syncengine.Record{
		contactRecord("people/c1", "Ada Lovelace", "ada@example.com", "Analytical Engines"),
		contactRecord("people/c2", "Grace Hopper", "grace@example.com", "US Navy"),
	}
}
