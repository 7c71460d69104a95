package statetoken

import (
	"testing"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	codec := New("")

	tests := []struct {
		provider string
		userID   string
	}{
		{"strava", "user42"},
		{"spotify", "user-42"},
		{"plaid", "a-b-c-d"},
		{"gmail", "550e8400-e29b-41d4-a716-446655440000"},
		{"books", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.userID, func(t *testing.T) {
			token := codec.Encode(tt.provider, tt.userID)
			decoded, err := codec.Decode(tt.provider, token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, decoded)
		})
	}
}

func TestRoundTripSigned(t *testing.T) {
	codec := New("topsecret")

	token := codec.Encode("strava", "user-with-hyphens-42")
	decoded, err := codec.Decode("strava", token)
	require.NoError(t, err)
	assert.Equal(t, "user-with-hyphens-42", decoded)
}

func TestDecodeRejections(t *testing.T) {
	codec := New("")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong prefix", "spotify-user42-1700000000000"},
		{"missing timestamp", "strava-user42"},
		{"non-numeric timestamp", "strava-user42-notanumber"},
		{"empty user id", "strava--1700000000000"},
		{"empty token", ""},
		{"bare provider", "strava-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode("strava", tt.token)
			require.Error(t, err)

			var ic *errors.ErrInvalidCallback
			assert.ErrorAs(t, err, &ic)
		})
	}
}

func TestSignedCodecRejectsUnsignedToken(t *testing.T) {
	unsigned := New("")
	signed := New("topsecret")

	token := unsigned.Encode("strava", "user42")
	_, err := signed.Decode("strava", token)
	assert.Error(t, err)
}

func TestSignedCodecRejectsTampering(t *testing.T) {
	codec := New("topsecret")

	token := codec.Encode("strava", "user42")
	tampered := "strava-mallory" + token[len("strava-user42"):]
	_, err := codec.Decode("strava", tampered)
	assert.Error(t, err)
}

func TestDecodeNeverReturnsHyphenUser(t *testing.T) {
	codec := New("")
	_, err := codec.Decode("strava", "strava---1700000000000")
	assert.Error(t, err)
}

func TestIssuedAt(t *testing.T) {
	codec := New("sekrit")
	fixed := time.UnixMilli(1700000000123)
	codec.now = func() time.Time { return fixed }

	token := codec.Encode("gmail", "user-1")
	at, err := codec.IssuedAt("gmail", token)
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), at.UnixMilli())
}
