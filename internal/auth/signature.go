package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Device auth headers sent on the websocket handshake.
const (
	HeaderDeviceID = "X-Device-ID"
	HeaderAuthTS   = "X-Auth-Ts"
	HeaderAuthSig  = "X-Auth-Sig"
)

// DefaultMaxSkew bounds the distance between a signed timestamp and now.
const DefaultMaxSkew = 300 * time.Second

var (
	ErrMissingHeaders = errors.New("missing auth headers")
	ErrTimestampSkew  = errors.New("timestamp skew")
	ErrBadSignature   = errors.New("bad signature")
)

// Sign returns hex(HMAC-SHA256(secret, deviceID ":" ts)).
func Sign(deviceID, secret, ts string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(deviceID))
	m.Write([]byte(":"))
	m.Write([]byte(ts))
	return hex.EncodeToString(m.Sum(nil))
}

// SignNow signs the current unix time and returns it with the signature.
func SignNow(deviceID, secret string) (ts, sig string) {
	ts = strconv.FormatInt(time.Now().Unix(), 10)
	return ts, Sign(deviceID, secret, ts)
}

// Verify checks a signature made by Sign. ts must be unix seconds within
// maxSkew of now.
func Verify(deviceID, secret, ts, sig string, now time.Time, maxSkew time.Duration) error {
	if deviceID == "" || ts == "" || sig == "" {
		return ErrMissingHeaders
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrTimestampSkew
	}
	skew := now.Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return ErrTimestampSkew
	}

	want := Sign(deviceID, secret, ts)
	if !hmac.Equal([]byte(strings.ToLower(sig)), []byte(want)) {
		return ErrBadSignature
	}
	return nil
}
