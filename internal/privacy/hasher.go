package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Hasher produces the two hash families the data model requires. Identity
// hashes are keyed with a persistent secret and stay stable forever, so a
// later erasure request can still find its rows. IP hashes are keyed with a
// salt derived from the current day, which deliberately breaks cross-day
// correlation.
type Hasher struct {
	identityKey []byte
	ipSecret    []byte
	salt        atomic.Pointer[ipSalt]
	now         func() time.Time
}

type ipSalt struct {
	key []byte
	day int64
}

func NewHasher(identityKey, ipSecret string) *Hasher {
	h := &Hasher{
		identityKey: []byte(identityKey),
		ipSecret:    []byte(ipSecret),
		now:         time.Now,
	}
	h.Rotate()
	return h
}

// HashIdentity hashes a user or session identifier with the persistent key.
func (h *Hasher) HashIdentity(value string) string {
	if value == "" {
		return ""
	}
	mac := hmac.New(sha256.New, h.identityKey)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashIP hashes an IP address with the daily salt. Readers always see either
// the old or the new salt, never a partial rotation.
func (h *Hasher) HashIP(ip string) string {
	if ip == "" {
		return ""
	}
	salt := h.salt.Load()
	if salt == nil || salt.day != h.dayIndex() {
		salt = h.Rotate()
	}
	mac, err := blake2b.New256(salt.key)
	if err != nil {
		// blake2b only rejects oversized keys; the salt is always 32 bytes
		panic(err)
	}
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// Rotate derives and installs the salt for the current day. Deriving from
// the day index keeps salts consistent across instances without
// coordination.
func (h *Hasher) Rotate() *ipSalt {
	day := h.dayIndex()
	mac := hmac.New(sha256.New, h.ipSecret)
	mac.Write([]byte{byte(day >> 24), byte(day >> 16), byte(day >> 8), byte(day)})
	salt := &ipSalt{key: mac.Sum(nil), day: day}
	h.salt.Store(salt)
	return salt
}

func (h *Hasher) dayIndex() int64 {
	return h.now().UTC().Unix() / int64(24*time.Hour/time.Second)
}
