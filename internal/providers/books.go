package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/syncengine"
)

// booksAdapter integrates a reading-tracker site that has no API. The user
// hands over site credentials, the adapter logs in with a browser-looking
// client and scrapes the shelf pages.
type booksAdapter struct {
	base
	states  *statetoken.Codec
	browser *BrowserClient
	source  *booksSource
}

// NewBooks builds the books adapter. Shelf entries never change once read,
// so writes are create-only.
func NewBooks(cfg config.ProviderConfig, deps Deps, states *statetoken.Codec, browser *BrowserClient) Adapter {
	adapter := &booksAdapter{
		base:    newBase(models.ProviderBooks, cfg, deps),
		states:  states,
		browser: browser,
	}
	adapter.source = &booksSource{adapter: adapter}
	return adapter
}

func (b *booksAdapter) CreateConnection(ctx context.Context, userID string) (*ConnectionResult, error) {
	if err := b.requireConfig("base_url", b.cfg.BaseURL); err != nil {
		return nil, err
	}
	// No redirect flow: the client collects site credentials and posts them
	// to the callback together with this state token.
	return &ConnectionResult{State: b.states.Encode(b.name, userID)}, nil
}

func (b *booksAdapter) HandleCallback(ctx context.Context, payload CallbackPayload) (string, error) {
	if payload.State == "" {
		return "", &errors.ErrInvalidCallback{Provider: b.name, Reason: "callback is missing state"}
	}
	if payload.Username == "" || payload.Password == "" {
		return "", &errors.ErrInvalidCallback{Provider: b.name, Reason: "callback is missing site credentials"}
	}

	userID, err := b.states.Decode(b.name, payload.State)
	if err != nil {
		return "", err
	}

	if !b.cfg.UseMockData {
		if err := b.login(ctx, payload.Username, payload.Password); err != nil {
			return "", err
		}
	}

	// The site has no token concept; the credential tuple carries the site
	// login itself, encrypted at rest like every other credential.
	cred := &models.Credential{AccessToken: payload.Password, ProviderUserID: payload.Username}
	if err := b.deps.Tokens.Set(userID, b.name, cred); err != nil {
		return "", err
	}
	if err := b.markConnected(userID); err != nil {
		return "", err
	}

	b.deps.Logger.InfoWithContext(ctx, "provider connected", "provider", b.name, "user_id", userID)
	b.syncAfterConnect(ctx, userID, b.Sync)
	return userID, nil
}

func (b *booksAdapter) login(ctx context.Context, username, password string) error {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := b.browser.PostForm(ctx, b.cfg.BaseURL+"/login", form.Encode())
	if err != nil {
		return &errors.ErrOAuthAuthentication{Provider: b.name, Reason: "site login request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return &errors.ErrOAuthAuthentication{
			Provider: b.name,
			Reason:   fmt.Sprintf("site login returned status %d", resp.StatusCode),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return &errors.ErrOAuthAuthentication{Provider: b.name, Reason: "site login page unreadable", Err: err}
	}
	if doc.Find(".login-error").Length() > 0 {
		return &errors.ErrOAuthAuthentication{Provider: b.name, Reason: "site rejected the credentials"}
	}
	return nil
}

func (b *booksAdapter) Sync(ctx context.Context, userID string) (*models.SyncResult, error) {
	if err := b.requireConnected(userID); err != nil {
		return nil, err
	}
	return b.deps.Engine.Run(ctx, userID, b.source, syncengine.Options{
		Provider:   b.name,
		WindowDays: b.cfg.WindowDays,
		Policy:     syncengine.PolicyCreateOnly,
	})
}

func (b *booksAdapter) Status(ctx context.Context, userID string) (*models.ConnectionStatus, error) {
	return b.status(ctx, userID, true)
}

func (b *booksAdapter) Disconnect(ctx context.Context, userID string) error {
	return b.disconnect(ctx, userID)
}

type booksSource struct {
	adapter *booksAdapter
}

func (s *booksSource) ListName() string { return "Books" }

func (s *booksSource) Fetch(ctx context.Context, userID string, since time.Time) ([]syncengine.Record, error) {
	b := s.adapter
	if b.cfg.UseMockData {
		return mockBookRecords(since), nil
	}

	cred, ok, err := b.deps.Tokens.Get(userID, b.name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errors.ErrInvalidToken{Provider: b.name, Reason: "no stored credential"}
	}
	if err := b.login(ctx, cred.ProviderUserID, cred.AccessToken); err != nil {
		return nil, err
	}

	resp, err := b.browser.Get(ctx, b.cfg.BaseURL+"/shelf/read")
	if err != nil {
		return nil, &errors.ErrDataSync{Provider: b.name, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, errors.FromFetchStatus(b.name, resp.StatusCode, 0)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &errors.ErrDataSync{Provider: b.name, Err: err}
	}

	var records []syncengine.Record
	doc.Find(".shelf-item").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-book-id")
		title := strings.TrimSpace(sel.Find(".book-title").Text())
		if id == "" || title == "" {
			return
		}
		author := strings.TrimSpace(sel.Find(".book-author").Text())
		genre := strings.TrimSpace(sel.Find(".book-genre").Text())

		var readAt time.Time
		if raw, ok := sel.Attr("data-read-at"); ok {
			if parsed, err := time.Parse("2006-01-02", raw); err == nil {
				readAt = parsed
			}
		}
		records = append(records, bookRecord(id, title, author, genre, readAt))
	})
	return records, nil
}

func (s *booksSource) Classify(rec syncengine.Record) string {
	genre, _ := rec.Attributes["genre"].(string)
	return genre
}

func bookRecord(id, title, author, genre string, readAt time.Time) syncengine.Record {
	attrs := map[string]interface{}{
		"author": author,
		"genre":  genre,
	}
	types := map[string]models.DataType{
		"author": models.TypeString,
		"genre":  models.TypeString,
	}
	if !readAt.IsZero() {
		attrs["read_at"] = readAt.Format("2006-01-02")
		types["read_at"] = models.TypeDate
	}
	return syncengine.Record{
		ExternalID:     id,
		ExternalType:   "book",
		Title:          title,
		Timestamp:      readAt,
		Attributes:     attrs,
		AttributeTypes: types,
	}
}

func mockBookRecords(since time.Time) []syncengine.Record {
	day := since.Add(72 * time.Hour)
	return []syncengine.Record{
		bookRecord("bk-1", "The Left Hand of Darkness", "Ursula K. Le Guin", "Science Fiction", day),
		bookRecord("bk-2", "Piranesi", "Susanna Clarke", "Fantasy", day.Add(24*time.Hour)),
	}
}
