package registry

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

var testEntry = Entry{
	SongID:               "song-001",
	Title:                "Midnight Drive",
	Artist:               "The Analogs",
	UpstreamIPID:         "ip-123",
	ControllerWallet:     "0x1111111111111111111111111111111111111111",
	PayoutChain:          "base",
	PayoutAddress:        "0x2222222222222222222222222222222222222222",
	UpstreamRoyaltyBps:   750,
	AttestationSignature: "0xdeadbeef",
	LicensePreset:        "standard",
}

func TestSave_Get(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	ctx := context.Background()

	if err := store.Save(ctx, &testEntry); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, testEntry.SongID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.Title != testEntry.Title {
		t.Errorf("Title: got %q want %q", got.Title, testEntry.Title)
	}
	if got.UpstreamRoyaltyBps != testEntry.UpstreamRoyaltyBps {
		t.Errorf("UpstreamRoyaltyBps: got %d want %d", got.UpstreamRoyaltyBps, testEntry.UpstreamRoyaltyBps)
	}
	if got.ControllerWallet != testEntry.ControllerWallet {
		t.Errorf("ControllerWallet: got %q want %q", got.ControllerWallet, testEntry.ControllerWallet)
	}
}

func TestGet_NotFound(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	ctx := context.Background()

	got, err := store.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestSearch_MatchesTitleOrArtistCaseInsensitive(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	ctx := context.Background()

	entries := []Entry{
		{SongID: "s1", Title: "Midnight Drive", Artist: "The Analogs"},
		{SongID: "s2", Title: "Daylight", Artist: "Analog Heart"},
		{SongID: "s3", Title: "Static Noise", Artist: "Feedback Loop"},
	}
	for i := range entries {
		if err := store.Save(ctx, &entries[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Search(ctx, "analog")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}

	sort.Slice(got, func(i, j int) bool { return got[i].SongID < got[j].SongID })
	if got[0].SongID != "s1" || got[1].SongID != "s2" {
		t.Errorf("unexpected match set: %+v", got)
	}
}

func TestSearch_EmptyQueryReturnsAll(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		e := Entry{SongID: id, Title: id, Artist: id}
		if err := store.Save(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.Search(ctx, "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
}

func TestSearch_NoMatches(t *testing.T) {
	rdb := newTestRedis(t)
	store := NewStore(rdb)
	ctx := context.Background()

	if err := store.Save(ctx, &testEntry); err != nil {
		t.Fatal(err)
	}

	got, err := store.Search(ctx, "nonexistent-needle")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 matches, got %d", len(got))
	}
}
