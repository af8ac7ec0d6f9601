// Package signedlink constructs and verifies HMAC-signed, time-limited link
// parameters for email verification and password reset. Links are stateless:
// the server keeps no table of outstanding links, only the expiry timestamp
// and signature travel with the URL.
//
// The signature covers a canonical pipe-joined string of the subject id, a
// stable secret-derived value for the subject (e.g. the SHA-1 of its email),
// and the expiry. Binding the link to an immutable property of the subject
// means a changed email invalidates every outstanding link.
package signedlink

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Verification failure modes. Both checks always run: an expired link with a
// bad signature reports ErrInvalid first, but the expiry is still evaluated
// so the two paths cost the same.
var (
	// ErrExpired indicates the link's expiry timestamp has passed.
	ErrExpired = errors.New("link expired")

	// ErrInvalid indicates the signature does not match the signed payload.
	ErrInvalid = errors.New("link invalid")
)

// Link is an issued signature with its expiry, ready to be embedded as the
// `expires` and `signature` query parameters of an outbound URL.
type Link struct {
	ExpiresAt int64  // epoch seconds
	Signature string // hex-encoded HMAC-SHA256
}

// Codec issues and verifies signed links with a single server-side key.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// New returns a Codec signing with the given application secret key.
func New(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// Issue produces a link for subjectID that expires ttl from now.
// subjectMaterial must be a stable one-way value derived from the subject
// (callers use the hex SHA-1 of the email) so unrelated field changes do not
// invalidate the link while an email change does.
func (c *Codec) Issue(subjectID, subjectMaterial string, ttl time.Duration) Link {
	exp := c.now().Add(ttl).Unix()
	return Link{
		ExpiresAt: exp,
		Signature: c.sign(subjectID, subjectMaterial, exp),
	}
}

// Verify recomputes the signature for the presented parameters and checks the
// expiry. Expiry and signature are evaluated independently: a valid signature
// never shortcuts the expiry check and vice versa. Returns nil, ErrExpired,
// or ErrInvalid.
func (c *Codec) Verify(subjectID, subjectMaterial string, expiresAt int64, signature string) error {
	expected := c.sign(subjectID, subjectMaterial, expiresAt)

	// Constant-time compare over the hex strings.
	sigOK := hmac.Equal([]byte(expected), []byte(signature))
	expired := c.now().Unix() > expiresAt

	if !sigOK {
		return ErrInvalid
	}
	if expired {
		return ErrExpired
	}
	return nil
}

// EqualMaterial compares two subject-material values in constant time.
// Callers use it to check the material carried in a redeemed link against the
// value derived from the subject's current state.
func EqualMaterial(presented, derived string) bool {
	return hmac.Equal([]byte(presented), []byte(derived))
}

// sign computes HMAC-SHA256(secret, subjectID|subjectMaterial|expiresAt) hex.
func (c *Codec) sign(subjectID, subjectMaterial string, expiresAt int64) string {
	mac := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(mac, "%s|%s|%d", subjectID, subjectMaterial, expiresAt)
	return hex.EncodeToString(mac.Sum(nil))
}

// URL appends the subject parameters, expiry, and signature to base as query
// parameters. base is the frontend route that redeems the link, e.g.
// "https://app.example.com/verify-email".
func (c *Codec) URL(base string, params map[string]string, link Link) string {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("expires", strconv.FormatInt(link.ExpiresAt, 10))
	q.Set("signature", link.Signature)
	return base + "?" + q.Encode()
}
