package privacy

import (
	"testing"
	"time"
)

func TestHashIdentityStable(t *testing.T) {
	hasher := NewHasher("identity-key", "ip-secret")
	first := hasher.HashIdentity("user-1")
	second := hasher.HashIdentity("user-1")
	if first == "" || first != second {
		t.Errorf("identity hash not stable: %q vs %q", first, second)
	}
	if hasher.HashIdentity("user-2") == first {
		t.Error("distinct identities collide")
	}
	if hasher.HashIdentity("") != "" {
		t.Error("empty identity should hash to empty")
	}
}

func TestHashIPRotatesDaily(t *testing.T) {
	hasher := NewHasher("identity-key", "ip-secret")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hasher.now = func() time.Time { return base }
	hasher.Rotate()

	today := hasher.HashIP("203.0.113.7")
	if today != hasher.HashIP("203.0.113.7") {
		t.Error("hash not stable within a day")
	}

	hasher.now = func() time.Time { return base.Add(24 * time.Hour) }
	tomorrow := hasher.HashIP("203.0.113.7")
	if tomorrow == today {
		t.Error("IP hash did not change across salt rotation")
	}

	// identity hashes must not be affected by rotation
	before := hasher.HashIdentity("user-1")
	hasher.Rotate()
	if hasher.HashIdentity("user-1") != before {
		t.Error("identity hash changed on rotation")
	}
}
