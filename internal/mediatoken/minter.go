package mediatoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role scopes a minted token to a participant's privileges within a channel.
type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

// defaultShortTokenTTL and defaultBookedTokenTTL back New when the caller
// passes a zero Duration, matching config.RoomConfig's own defaults
// (TOKEN_TTL_SHORT_SECONDS / TOKEN_TTL_BOOKED_SECONDS).
const (
	defaultShortTokenTTL  = 90 * time.Second
	defaultBookedTokenTTL = 3600 * time.Second
)

// Grant is what callers receive from every mint operation.
type Grant struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

// Minter is C3: the sole place in the system that constructs media-vendor
// channel credentials. The token format is internal and opaque to callers;
// nothing downstream parses it, only the vendor side-channel (out of scope)
// would. Grounded on the teacher's hashVoucher/Sign manual byte-packing
// technique, generalized from an EIP-712 struct hash to a flat authenticated
// grant: pack fields big-endian, HMAC the result, base64 the envelope.
type Minter struct {
	appID          string
	certKey        []byte
	shortTokenTTL  time.Duration
	bookedTokenTTL time.Duration
}

// New builds a Minter. shortTTL/bookedTTL of zero fall back to the spec
// defaults so callers that don't carry config.RoomConfig (tests, tools)
// still get sane TTLs.
func New(appID, appCertificate string, shortTTL, bookedTTL time.Duration) *Minter {
	if shortTTL <= 0 {
		shortTTL = defaultShortTokenTTL
	}
	if bookedTTL <= 0 {
		bookedTTL = defaultBookedTokenTTL
	}
	return &Minter{
		appID:          appID,
		certKey:        []byte(appCertificate),
		shortTokenTTL:  shortTTL,
		bookedTokenTTL: bookedTTL,
	}
}

// ShortToken mints a short-lived grant for free-room participants. A client
// keeps it fresh through the room actor's Renew, which mints a new one while
// the wallet still has at least the renew minimum of credit.
func (m *Minter) ShortToken(channel, vendorUID string) (Grant, error) {
	return m.mint(channel, vendorUID, RoleSubscriber, m.shortTokenTTL)
}

// BookedToken mints a long-lived grant issued once per paid-room segment.
func (m *Minter) BookedToken(channel, vendorUID string) (Grant, error) {
	return m.mint(channel, vendorUID, RoleSubscriber, m.bookedTokenTTL)
}

// BroadcasterToken mints a publisher-scoped grant for a duet room host.
func (m *Minter) BroadcasterToken(channel, vendorUID string) (Grant, error) {
	return m.mint(channel, vendorUID, RolePublisher, m.bookedTokenTTL)
}

// ViewerToken mints a subscriber-scoped grant for a duet room guest/viewer.
func (m *Minter) ViewerToken(channel, vendorUID string) (Grant, error) {
	return m.mint(channel, vendorUID, RoleSubscriber, m.bookedTokenTTL)
}

func (m *Minter) mint(channel, vendorUID string, role Role, ttl time.Duration) (Grant, error) {
	expiresAt := time.Now().Add(ttl).Unix()
	grantID := uuid.NewString()

	payload := packPayload(m.appID, channel, vendorUID, string(role), grantID, expiresAt)

	mac := hmac.New(sha256.New, m.certKey)
	if _, err := mac.Write(payload); err != nil {
		return Grant{}, fmt.Errorf("mac media token: %w", err)
	}
	tag := mac.Sum(nil)

	envelope := append(payload, tag...)
	token := base64.RawURLEncoding.EncodeToString(envelope)

	return Grant{Token: token, ExpiresInSeconds: int64(ttl.Seconds())}, nil
}

// packPayload lays out a length-prefixed field sequence followed by a
// big-endian expiry, mirroring the teacher's fixed-width ABI-style field
// packing ahead of the final hash/sign step.
func packPayload(fields ...interface{}) []byte {
	var buf []byte
	for _, f := range fields {
		switch v := f.(type) {
		case string:
			buf = appendLenPrefixed(buf, []byte(v))
		case int64:
			buf = appendLenPrefixed(buf, encodeInt64(v))
		}
	}
	return buf
}

func encodeInt64(v int64) []byte {
	return appendInt64(nil, v)
}

func decodeInt64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("expected 8 bytes, got %d", len(b))
	}
	return int64(b[0])<<56 | int64(b[1])<<48 | int64(b[2])<<40 | int64(b[3])<<32 |
		int64(b[4])<<24 | int64(b[5])<<16 | int64(b[6])<<8 | int64(b[7]), nil
}

func appendLenPrefixed(b []byte, s []byte) []byte {
	n := int64(len(s))
	b = appendInt64(b, n)
	return append(b, s...)
}

func appendInt64(b []byte, v int64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v),
	)
}

// Verify decodes and authenticates a token minted by this Minter, returning
// the channel, vendor UID, role, and expiry as a unix timestamp. Used by any
// internal check that must assert a grant is genuine without round-tripping
// through the vendor (e.g. tests, or a future revocation sweep).
func (m *Minter) Verify(token string) (channel, vendorUID string, role Role, expiresAt int64, err error) {
	envelope, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", "", 0, fmt.Errorf("decode token: %w", err)
	}
	if len(envelope) < sha256.Size {
		return "", "", "", 0, fmt.Errorf("token too short")
	}
	cut := len(envelope) - sha256.Size
	payload, tag := envelope[:cut], envelope[cut:]

	mac := hmac.New(sha256.New, m.certKey)
	if _, err := mac.Write(payload); err != nil {
		return "", "", "", 0, fmt.Errorf("mac media token: %w", err)
	}
	if !hmac.Equal(tag, mac.Sum(nil)) {
		return "", "", "", 0, fmt.Errorf("invalid token signature")
	}

	fields, err := unpackPayload(payload)
	if err != nil {
		return "", "", "", 0, err
	}
	if len(fields) != 6 {
		return "", "", "", 0, fmt.Errorf("unexpected field count %d", len(fields))
	}
	// fields[0] is appID, fields[4] is grantID — neither consumed by callers.
	channel = string(fields[1])
	vendorUID = string(fields[2])
	role = Role(fields[3])
	expiresAt, err = decodeInt64(fields[5])
	if err != nil {
		return "", "", "", 0, fmt.Errorf("parse expiry: %w", err)
	}
	return channel, vendorUID, role, expiresAt, nil
}

func unpackPayload(b []byte) ([][]byte, error) {
	var fields [][]byte
	for len(b) > 0 {
		if len(b) < 8 {
			return nil, fmt.Errorf("truncated length prefix")
		}
		n := int64(b[0])<<56 | int64(b[1])<<48 | int64(b[2])<<40 | int64(b[3])<<32 |
			int64(b[4])<<24 | int64(b[5])<<16 | int64(b[6])<<8 | int64(b[7])
		b = b[8:]
		if int64(len(b)) < n {
			return nil, fmt.Errorf("truncated field")
		}
		fields = append(fields, b[:n])
		b = b[n:]
	}
	return fields, nil
}
