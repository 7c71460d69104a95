package providers

import (
	"context"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/syncengine"
)

// plaidAdapter implements the embedded link flow: CreateConnection mints a
// short-lived link token for the client widget, and the callback exchanges
// the widget's public token for a long-lived access token. Plaid access
// tokens do not expire, so there is no refresh path.
type plaidAdapter struct {
	base
	states *statetoken.Codec
	api    *apiClient
	source *plaidSource
}

// NewPlaid builds the Plaid adapter. Transactions mutate while they settle
// (amounts and merchant names get rewritten), so writes are upserts.
func NewPlaid(cfg config.ProviderConfig, deps Deps, states *statetoken.Codec) Adapter {
	api := newAPIClient(models.ProviderPlaid, deps.HTTPTimeout)
	adapter := &plaidAdapter{
		base:   newBase(models.ProviderPlaid, cfg, deps),
		states: states,
		api:    api,
	}
	adapter.source = &plaidSource{adapter: adapter}
	return adapter
}

func (p *plaidAdapter) CreateConnection(ctx context.Context, userID string) (*ConnectionResult, error) {
	if err := p.requireConfig("client_id", p.cfg.ClientID, "client_secret", p.cfg.ClientSecret); err != nil {
		return nil, err
	}

	state := p.states.Encode(p.name, userID)
	if p.cfg.UseMockData {
		return &ConnectionResult{LinkToken: "link-sandbox-mock", State: state}, nil
	}

	var created struct {
		LinkToken string `json:"link_token"`
	}
	body := map[string]interface{}{
		"client_id":     p.cfg.ClientID,
		"secret":        p.cfg.ClientSecret,
		"client_name":   "LinkHub",
		"language":      "en",
		"country_codes": []string{"US"},
		"products":      []string{"transactions"},
		"user":          map[string]string{"client_user_id": userID},
	}
	if err := p.api.postJSON(ctx, p.cfg.BaseURL+"/link/token/create", body, &created); err != nil {
		return nil, err
	}

	p.deps.Logger.InfoWithContext(ctx, "link token created", "provider", p.name, "user_id", userID)
	return &ConnectionResult{LinkToken: created.LinkToken, State: state}, nil
}

func (p *plaidAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (string, error) {
	if payload.State == "" {
		return "", &errors.ErrInvalidCallback{Provider: p.name, Reason: "callback is missing state"}
	}
	if payload.PublicToken == "" {
		return "", &errors.ErrInvalidCallback{Provider: p.name, Reason: "callback is missing public_token"}
	}

	userID, err := p.states.Decode(p.name, payload.State)
	if err != nil {
		return "", err
	}

	accessToken := "access-sandbox-mock"
	itemID := "item-mock"
	if !p.cfg.UseMockData {
		var exchanged struct {
			AccessToken string `json:"access_token"`
			ItemID      string `json:"item_id"`
		}
		body := map[string]string{
			"client_id":    p.cfg.ClientID,
			"secret":       p.cfg.ClientSecret,
			"public_token": payload.PublicToken,
		}
		if err := p.api.postJSON(ctx, p.cfg.BaseURL+"/item/public_token/exchange", body, &exchanged); err != nil {
			return "", err
		}
		accessToken = exchanged.AccessToken
		itemID = exchanged.ItemID
	}

	cred := &models.Credential{AccessToken: accessToken, ProviderUserID: itemID}
	if err := p.deps.Tokens.Set(userID, p.name, cred); err != nil {
		return "", err
	}
	if err := p.markConnected(userID); err != nil {
		return "", err
	}

	p.deps.Logger.InfoWithContext(ctx, "provider connected", "provider", p.name, "user_id", userID)
	p.syncAfterConnect(ctx, userID, p.Sync)
	return userID, nil
}

func (p *plaidAdapter) Sync(ctx context.Context, userID string) (*models.SyncResult, error) {
	if err := p.requireConnected(userID); err != nil {
		return nil, err
	}
	return p.deps.Engine.Run(ctx, userID, p.source, syncengine.Options{
		Provider:   p.name,
		WindowDays: p.cfg.WindowDays,
		Policy:     syncengine.PolicyUpsert,
	})
}

func (p *plaidAdapter) Status(ctx context.Context, userID string) (*models.ConnectionStatus, error) {
	return p.status(ctx, userID, true)
}

func (p *plaidAdapter) Disconnect(ctx context.Context, userID string) error {
	return p.disconnect(ctx, userID)
}

type plaidSource struct {
	adapter *plaidAdapter
}

type plaidTransaction struct {
	TransactionID string   `json:"transaction_id"`
	Name          string   `json:"name"`
	Amount        float64  `json:"amount"`
	Date          string   `json:"date"` // 2006-01-02
	Pending       bool     `json:"pending"`
	Category      []string `json:"category"`
}

func (s *plaidSource) ListName() string { return "Finances" }

func (s *plaidSource) Fetch(ctx context.Context, userID string, since time.Time) ([]syncengine.Record, error) {
	p := s.adapter
	if p.cfg.UseMockData {
		return mockPlaidRecords(since), nil
	}

	cred, ok, err := p.deps.Tokens.Get(userID, p.name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errors.ErrInvalidToken{Provider: p.name, Reason: "no stored credential"}
	}

	var fetched struct {
		Transactions []plaidTransaction `json:"transactions"`
	}
	body := map[string]interface{}{
		"client_id":    p.cfg.ClientID,
		"secret":       p.cfg.ClientSecret,
		"access_token": cred.AccessToken,
		"start_date":   since.Format("2006-01-02"),
		"end_date":     time.Now().Format("2006-01-02"),
	}
	if err := p.api.postJSON(ctx, p.cfg.BaseURL+"/transactions/get", body, &fetched); err != nil {
		return nil, err
	}

	records := make([]syncengine.Record, 0, len(fetched.Transactions))
	for _, txn := range fetched.Transactions {
		records = append(records, plaidRecord(txn))
	}
	return records, nil
}

func (s *plaidSource) Classify(rec syncengine.Record) string {
	category, _ := rec.Attributes["category"].(string)
	return category
}

func plaidRecord(txn plaidTransaction) syncengine.Record {
	at, _ := time.Parse("2006-01-02", txn.Date)
	category := ""
	if len(txn.Category) > 0 {
		category = txn.Category[0]
	}
	return syncengine.Record{
		ExternalID:   txn.TransactionID,
		ExternalType: "transaction",
		Title:        txn.Name,
		Timestamp:    at,
		Attributes: map[string]interface{}{
			"amount":   txn.Amount,
			"date":     txn.Date,
			"pending":  txn.Pending,
			"category": category,
		},
		AttributeTypes: map[string]models.DataType{
			"amount":   models.TypeNumber,
			"date":     models.TypeDate,
			"pending":  models.TypeBool,
			"category": models.TypeString,
		},
	}
}

func mockPlaidRecords(since time.Time) []syncengine.Record {
	day := since.Add(48 * time.Hour)
	return []syncengine.Record{
		plaidRecord(plaidTransaction{TransactionID: "txn-1", Name: "WHOLE FOODS", Amount: 42.17, Date: day.Format("2006-01-02"), Category: []string{"Groceries"}}),
		plaidRecord(plaidTransaction{TransactionID: "txn-2", Name: "LYFT", Amount: 18.50, Date: day.Format("2006-01-02"), Pending: true, Category: []string{"Travel"}}),
	}
}
