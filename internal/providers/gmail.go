package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/oauth"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/syncengine"
)

// NewGmail builds the Gmail adapter. Messages are immutable once delivered,
// so writes are create-only; classification is by sender domain.
func NewGmail(cfg config.ProviderConfig, deps Deps, states *statetoken.Codec) Adapter {
	source := &gmailSource{
		api:     newAPIClient(models.ProviderGmail, deps.HTTPTimeout),
		baseURL: cfg.BaseURL,
		pageCap: deps.pageCap(),
		mock:    cfg.UseMockData,
	}
	adapter := newOAuthAdapter(models.ProviderGmail, cfg, deps, states, source, syncengine.PolicyCreateOnly,
		// Google requires these for a refresh token to be issued.
		map[string][]string{"access_type": {"offline"}, "prompt": {"consent"}})
	source.creds = adapter.creds
	return adapter
}

type gmailSource struct {
	api     *apiClient
	creds   *oauth.Manager
	baseURL string
	pageCap int
	mock    bool
}

type gmailMessageList struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailPayload struct {
	Headers []gmailHeader `json:"headers"`
}

type gmailMessage struct {
	ID           string       `json:"id"`
	InternalDate string       `json:"internalDate"` // epoch millis as a string
	Snippet      string       `json:"snippet"`
	Payload      gmailPayload `json:"payload"`
}

func (g *gmailSource) ListName() string { return "Mail" }

func (g *gmailSource) Fetch(ctx context.Context, userID string, since time.Time) ([]syncengine.Record, error) {
	if g.mock {
		return mockGmailRecords(since), nil
	}

	token, err := g.creds.EnsureValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var records []syncengine.Record
	pageToken := ""
	for page := 0; page < g.pageCap; page++ {
		endpoint := fmt.Sprintf("%s/users/me/messages?q=after:%d&maxResults=100", g.baseURL, since.Unix())
		if pageToken != "" {
			endpoint += "&pageToken=" + pageToken
		}

		var list gmailMessageList
		if err := g.api.getJSON(ctx, endpoint, token, &list); err != nil {
			return nil, err
		}

		for _, ref := range list.Messages {
			var msg gmailMessage
			detail := fmt.Sprintf("%s/users/me/messages/%s?format=metadata&metadataHeaders=From&metadataHeaders=Subject", g.baseURL, ref.ID)
			if err := g.api.getJSON(ctx, detail, token, &msg); err != nil {
				return nil, err
			}
			records = append(records, gmailRecord(msg))
		}

		pageToken = list.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return records, nil
}

// Classify buckets mail by the sender's domain.
func (g *gmailSource) Classify(rec syncengine.Record) string {
	from, _ := rec.Attributes["from"].(string)
	return classifySenderDomain(from)
}

func classifySenderDomain(from string) string {
	at := strings.LastIndex(from, "@")
	if at < 0 {
		return ""
	}
	domain := strings.ToLower(strings.Trim(from[at+1:], "<> "))
	switch {
	case strings.HasSuffix(domain, "github.com"), strings.HasSuffix(domain, "gitlab.com"):
		return "Development"
	case strings.HasSuffix(domain, "linkedin.com"), strings.HasSuffix(domain, "indeed.com"):
		return "Career"
	case strings.HasSuffix(domain, "amazon.com"), strings.HasSuffix(domain, "ebay.com"):
		return "Shopping"
	case strings.HasSuffix(domain, "chase.com"), strings.HasSuffix(domain, "paypal.com"), strings.HasSuffix(domain, "stripe.com"):
		return "Finance"
	default:
		return ""
	}
}

func gmailRecord(msg gmailMessage) syncengine.Record {
	var from, subject string
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "From":
			from = header.Value
		case "Subject":
			subject = header.Value
		}
	}
	if subject == "" {
		subject = msg.Snippet
	}

	var at time.Time
	if millis, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
		at = time.UnixMilli(millis)
	}

	return syncengine.Record{
		ExternalID:   msg.ID,
		ExternalType: "message",
		Title:        subject,
		Timestamp:    at,
		Attributes: map[string]interface{}{
			"from":        from,
			"snippet":     msg.Snippet,
			"received_at": at.Format(time.RFC3339),
		},
		AttributeTypes: map[string]models.DataType{
			"from":        models.TypeString,
			"snippet":     models.TypeString,
			"received_at": models.TypeDate,
		},
	}
}

func mockGmailRecords(since time.Time) []syncengine.Record {
	base := since.Add(time.Hour)
	return []syncengine.Record{
		gmailRecord(gmailMessage{
			ID:           "msg-1",
			InternalDate: strconv.FormatInt(base.UnixMilli(), 10),
			Snippet:      "Your pull request was merged",
			Payload: gmailPayload{Headers: []gmailHeader{
				{Name: "From", Value: "notifications@github.com"},
				{Name: "Subject", Value: "PR merged"},
			}},
		}),
	}
}
