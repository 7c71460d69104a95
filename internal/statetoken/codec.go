package statetoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/linkhub/linkhub/internal/errors"
)

// Codec produces and parses the correlation token that survives the OAuth
// redirect round trip. The wire format is
//
//	{provider}-{userId}-{epochMillis}[-{signature}]
//
// where userId may itself contain hyphens, so decoding works backwards from
// the end of the token rather than forwards from the first hyphen. When a
// secret is configured every token carries an HMAC-SHA256 signature segment
// and unsigned tokens are rejected.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// New creates a codec. An empty secret disables signing.
func New(secret string) *Codec {
	c := &Codec{now: time.Now}
	if secret != "" {
		c.secret = []byte(secret)
	}
	return c
}

// Encode mints a state token binding provider and userID to the current time.
func (c *Codec) Encode(provider, userID string) string {
	base := provider + "-" + userID + "-" + strconv.FormatInt(c.now().UnixMilli(), 10)
	if c.secret == nil {
		return base
	}
	return base + "-" + c.sign(base)
}

// Decode recovers the user id from a token minted for provider. It fails with
// InvalidCallback when the prefix is wrong, the timestamp segment is missing
// or non-numeric, the user id is empty, or the signature does not verify.
func (c *Codec) Decode(provider, token string) (string, error) {
	base := token
	if c.secret != nil {
		idx := strings.LastIndex(token, "-")
		if idx < 0 {
			return "", &errors.ErrInvalidCallback{Provider: provider, Reason: "state token is missing signature"}
		}
		base = token[:idx]
		if !hmac.Equal([]byte(c.sign(base)), []byte(token[idx+1:])) {
			return "", &errors.ErrInvalidCallback{Provider: provider, Reason: "state token signature mismatch"}
		}
	}

	prefix := provider + "-"
	if !strings.HasPrefix(base, prefix) {
		return "", &errors.ErrInvalidCallback{Provider: provider, Reason: "state token has wrong provider prefix"}
	}

	rest := base[len(prefix):]
	// The user id may contain hyphens, so the timestamp is everything after
	// the last hyphen, not the first.
	idx := strings.LastIndex(rest, "-")
	if idx < 0 {
		return "", &errors.ErrInvalidCallback{Provider: provider, Reason: "state token is missing timestamp segment"}
	}

	if _, err := strconv.ParseInt(rest[idx+1:], 10, 64); err != nil {
		return "", &errors.ErrInvalidCallback{Provider: provider, Reason: "state token timestamp is not numeric"}
	}

	userID := rest[:idx]
	if strings.Trim(userID, "-") == "" {
		return "", &errors.ErrInvalidCallback{Provider: provider, Reason: "state token carries an empty user id"}
	}

	return userID, nil
}

// IssuedAt extracts the mint time of a token that already decoded cleanly.
func (c *Codec) IssuedAt(provider, token string) (time.Time, error) {
	if _, err := c.Decode(provider, token); err != nil {
		return time.Time{}, err
	}
	base := token
	if c.secret != nil {
		base = token[:strings.LastIndex(token, "-")]
	}
	millis, _ := strconv.ParseInt(base[strings.LastIndex(base, "-")+1:], 10, 64)
	return time.UnixMilli(millis), nil
}

func (c *Codec) sign(base string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil)[:16])
}
