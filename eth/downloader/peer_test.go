package downloader

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clique-core/poachain/core/types"
)

// stubPeer is a minimal Peer that never actually answers requests; these
// tests only exercise PeerSet bookkeeping, not fetch behavior.
type stubPeer struct{ id string }

func (p *stubPeer) ID() string { return p.id }
func (p *stubPeer) RequestHeadersByNumber(context.Context, uint64, int) ([]*types.Header, error) {
	return nil, nil
}
func (p *stubPeer) RequestHeadersByHash(context.Context, common.Hash, int) ([]*types.Header, error) {
	return nil, nil
}

func TestPeerSetRegisterAndActive(t *testing.T) {
	s := NewPeerSet()
	s.Register(&stubPeer{id: "a"})
	s.Register(&stubPeer{id: "b"})

	active := s.Active()
	if len(active) != 2 {
		t.Fatalf("Active() = %d peers, want 2", len(active))
	}
}

func TestPeerSetZombifyRemovesFromActive(t *testing.T) {
	s := NewPeerSet()
	s.Register(&stubPeer{id: "a"})
	s.Register(&stubPeer{id: "b"})

	s.Zombify("a")
	if !s.IsZombie("a") {
		t.Fatal("expected a to be a zombie after Zombify")
	}
	active := s.Active()
	if len(active) != 1 || active[0].ID() != "b" {
		t.Fatalf("Active() after zombifying a = %v, want just [b]", active)
	}
}

func TestPeerSetUnregisterClearsZombieStatus(t *testing.T) {
	s := NewPeerSet()
	s.Register(&stubPeer{id: "a"})
	s.Zombify("a")

	s.Unregister("a")
	if s.IsZombie("a") {
		t.Fatal("expected Unregister to clear zombie membership")
	}
	if len(s.Active()) != 0 {
		t.Fatal("expected no active peers after Unregister")
	}
}

func TestPeerSetModeTracksPoolFlag(t *testing.T) {
	s := NewPeerSet()
	if s.Mode() != ModeMulti {
		t.Fatalf("Mode() = %v, want ModeMulti by default", s.Mode())
	}
	s.SetPoolMode(true)
	if s.Mode() != ModePool {
		t.Fatalf("Mode() = %v, want ModePool once pool mode is set", s.Mode())
	}
	s.SetPoolMode(false)
	if s.Mode() != ModeMulti {
		t.Fatalf("Mode() = %v, want ModeMulti once pool mode is cleared", s.Mode())
	}
}
