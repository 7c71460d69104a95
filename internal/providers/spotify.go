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

// NewSpotify builds the Spotify adapter. Listening history is append-only,
// so writes are create-only: a play event never changes once recorded.
func NewSpotify(cfg config.ProviderConfig, deps Deps, states *statetoken.Codec) Adapter {
	source := &spotifySource{
		api:     newAPIClient(models.ProviderSpotify, deps.HTTPTimeout),
		baseURL: cfg.BaseURL,
		mock:    cfg.UseMockData,
	}
	adapter := newOAuthAdapter(models.ProviderSpotify, cfg, deps, states, source, syncengine.PolicyCreateOnly, nil)
	source.creds = adapter.creds
	return adapter
}

type spotifySource struct {
	api     *apiClient
	creds   *oauth.Manager
	baseURL string
	mock    bool
}

type spotifyPlayHistory struct {
	Items []struct {
		PlayedAt time.Time `json:"played_at"`
		Track    struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			DurationMS int    `json:"duration_ms"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name string `json:"name"`
			} `json:"album"`
		} `json:"track"`
	} `json:"items"`
}

func (s *spotifySource) ListName() string { return "Music" }

func (s *spotifySource) Fetch(ctx context.Context, userID string, since time.Time) ([]syncengine.Record, error) {
	if s.mock {
		return mockSpotifyRecords(since), nil
	}

	token, err := s.creds.EnsureValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/me/player/recently-played?after=%d&limit=50", s.baseURL, since.UnixMilli())
	var history spotifyPlayHistory
	if err := s.api.getJSON(ctx, endpoint, token, &history); err != nil {
		return nil, err
	}

	records := make([]syncengine.Record, 0, len(history.Items))
	for _, item := range history.Items {
		artists := make([]string, 0, len(item.Track.Artists))
		for _, artist := range item.Track.Artists {
			artists = append(artists, artist.Name)
		}
		records = append(records, spotifyRecord(
			item.Track.ID, item.Track.Name, strings.Join(artists, ", "),
			item.Track.Album.Name, item.Track.DurationMS, item.PlayedAt))
	}
	return records, nil
}

// Classify groups plays by artist so the Music list reads as a library.
func (s *spotifySource) Classify(rec syncengine.Record) string {
	artist, _ := rec.Attributes["artist"].(string)
	if idx := strings.Index(artist, ","); idx > 0 {
		artist = artist[:idx]
	}
	return strings.TrimSpace(artist)
}

func spotifyRecord(trackID, name, artist, album string, durationMS int, playedAt time.Time) syncengine.Record {
	// A track can be played repeatedly; the play event is the unit.
	externalID := trackID + "@" + playedAt.UTC().Format(time.RFC3339)
	return syncengine.Record{
		ExternalID:   externalID,
		ExternalType: "play",
		Title:        name,
		Timestamp:    playedAt,
		Attributes: map[string]interface{}{
			"artist":      artist,
			"album":       album,
			"duration_ms": durationMS,
			"played_at":   playedAt.Format(time.RFC3339),
		},
		AttributeTypes: map[string]models.DataType{
			"artist":      models.TypeString,
			"album":       models.TypeString,
			"duration_ms": models.TypeDuration,
			"played_at":   models.TypeDate,
		},
	}
}

func mockSpotifyRecords(since time.Time) []syncengine.Record {
	base := since.Add(2 * time.Hour)
	return []syncengine.Record{
		spotifyRecord("tr-1", "Pink Moon", "Nick Drake", "Pink Moon", 125000, base),
		spotifyRecord("tr-2", "Holocene", "Bon Iver", "Bon Iver, Bon Iver", 337000, base.Add(time.Hour)),
	}
}
