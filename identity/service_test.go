package identity

import (
	"context"
	"testing"

	"github.com/seve42/CodingSnake/grid"
	"github.com/seve42/CodingSnake/world"
)

type fixedSpawner struct{ p grid.Point }

func (f fixedSpawner) RandomSafeSpawn(players []*world.Player, safeRadius int) grid.Point {
	return f.p
}

func TestLoginUniversalProofBypassesOracle(t *testing.T) {
	oracle := UniversalOracle{UID: "1", Proof: "test-proof"}
	svc := New(nil, oracle, nil, 3, 2)

	key, err := svc.Login(context.Background(), "1", "test-proof")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key == "" {
		t.Fatal("expected non-empty key")
	}
	uid, ok := svc.ValidateKey(key)
	if !ok || uid != "1" {
		t.Fatalf("expected key to validate to uid 1, got %q ok=%v", uid, ok)
	}
}

func TestLoginRejectsWhenOracleFails(t *testing.T) {
	oracle := UniversalOracle{} // no universal proof configured, no fallback
	svc := New(nil, oracle, nil, 3, 2)
	if _, err := svc.Login(context.Background(), "1", "bogus"); err == nil {
		t.Fatal("expected error on oracle rejection")
	}
}

func TestJoinRejectsDuplicateLiveSession(t *testing.T) {
	oracle := UniversalOracle{UID: "1", Proof: "p"}
	svc := New(nil, oracle, nil, 3, 2)
	key, _ := svc.Login(context.Background(), "1", "p")

	spawn := fixedSpawner{p: grid.NewPoint(5, 5)}
	if _, err := svc.Join(key, "alice", "", spawn); err != nil {
		t.Fatalf("first join should succeed: %v", err)
	}
	if _, err := svc.Join(key, "alice2", "", spawn); err == nil {
		t.Fatal("expected conflict on second join for same uid")
	}
}

func TestJoinValidatesNameAndColor(t *testing.T) {
	oracle := UniversalOracle{UID: "1", Proof: "p"}
	svc := New(nil, oracle, nil, 3, 2)
	key, _ := svc.Login(context.Background(), "1", "p")
	spawn := fixedSpawner{p: grid.NewPoint(5, 5)}

	if _, err := svc.Join(key, "", "", spawn); err == nil {
		t.Fatal("expected rejection of empty name")
	}
	if _, err := svc.Join(key, "bob", "not-a-color", spawn); err == nil {
		t.Fatal("expected rejection of invalid color")
	}
}

// Join's token and the session id suffix are both full 256-bit
// crypto/rand draws, not a UUID — 64 hex characters each.
func TestJoinTokenAndSessionIDAreFullWidthRandom(t *testing.T) {
	oracle := UniversalOracle{UID: "1", Proof: "p"}
	svc := New(nil, oracle, nil, 3, 2)
	key, _ := svc.Login(context.Background(), "1", "p")
	spawn := fixedSpawner{p: grid.NewPoint(1, 1)}

	res, err := svc.Join(key, "alice", "", spawn)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Token) != 64 {
		t.Fatalf("expected a 256-bit (64 hex char) token, got %d chars: %q", len(res.Token), res.Token)
	}
	suffix := string(res.SessionID)[len("p_1_"):]
	if len(suffix) != 64 {
		t.Fatalf("expected a 256-bit (64 hex char) session id suffix, got %d chars: %q", len(suffix), suffix)
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	oracle := UniversalOracle{UID: "1", Proof: "p"}
	svc := New(nil, oracle, nil, 3, 2)
	key, _ := svc.Login(context.Background(), "1", "p")
	spawn := fixedSpawner{p: grid.NewPoint(1, 1)}
	res, err := svc.Join(key, "alice", "", spawn)
	if err != nil {
		t.Fatal(err)
	}
	id, ok := svc.ValidateToken(res.Token)
	if !ok || id != res.SessionID {
		t.Fatalf("expected token to resolve to %q, got %q ok=%v", res.SessionID, id, ok)
	}
}
