// Package registry implements the song registry: a small, independently
// searchable catalog of upstream song entries, each inserted only after its
// controller wallet's typed-data attestation has been verified.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const entryKeyPrefix = "registry:song:"

func entryKey(songID string) string {
	return entryKeyPrefix + songID
}

// Entry is one song registry row, serialized directly as the POST /songs
// and GET /songs/search response body.
type Entry struct {
	SongID               string `json:"song_id"`
	Title                string `json:"title"`
	Artist               string `json:"artist"`
	UpstreamIPID         string `json:"upstream_ip_id"`
	ControllerWallet     string `json:"controller_wallet"`
	PayoutChain          string `json:"payout_chain"`
	PayoutAddress        string `json:"payout_address"`
	UpstreamRoyaltyBps   int    `json:"upstream_royalty_bps"`
	AttestationSignature string `json:"attestation_signature"`
	LicensePreset        string `json:"license_preset,omitempty"`
}

// Store is the durable persistence layer for registry entries, grounded on
// the teacher's session.go HSet/HGetAll-per-record idiom.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Save(ctx context.Context, e *Entry) error {
	return s.rdb.HSet(ctx, entryKey(e.SongID), entryToMap(e)).Err()
}

func (s *Store) Get(ctx context.Context, songID string) (*Entry, error) {
	vals, err := s.rdb.HGetAll(ctx, entryKey(songID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get registry entry %s: %w", songID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return entryFromMap(vals), nil
}

// Search walks every entry looking for a case-insensitive substring match
// in title or artist, generalizing the teacher's ScanAllSessions full-table
// SCAN to a filtered search since the registry has no secondary index.
func (s *Store) Search(ctx context.Context, q string) ([]*Entry, error) {
	needle := strings.ToLower(strings.TrimSpace(q))

	var entries []*Entry
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, entryKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan registry entries: %w", err)
		}
		for _, key := range keys {
			vals, err := s.rdb.HGetAll(ctx, key).Result()
			if err != nil || len(vals) == 0 {
				continue
			}
			e := entryFromMap(vals)
			if needle == "" || strings.Contains(strings.ToLower(e.Title), needle) || strings.Contains(strings.ToLower(e.Artist), needle) {
				entries = append(entries, e)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return entries, nil
}

func entryToMap(e *Entry) map[string]interface{} {
	return map[string]interface{}{
		"song_id":               e.SongID,
		"title":                 e.Title,
		"artist":                e.Artist,
		"upstream_ip_id":        e.UpstreamIPID,
		"controller_wallet":     e.ControllerWallet,
		"payout_chain":          e.PayoutChain,
		"payout_address":        e.PayoutAddress,
		"upstream_royalty_bps":  e.UpstreamRoyaltyBps,
		"attestation_signature": e.AttestationSignature,
		"license_preset":        e.LicensePreset,
	}
}

func entryFromMap(m map[string]string) *Entry {
	bps, _ := strconv.Atoi(m["upstream_royalty_bps"])
	return &Entry{
		SongID:               m["song_id"],
		Title:                m["title"],
		Artist:               m["artist"],
		UpstreamIPID:         m["upstream_ip_id"],
		ControllerWallet:     m["controller_wallet"],
		PayoutChain:          m["payout_chain"],
		PayoutAddress:        m["payout_address"],
		UpstreamRoyaltyBps:   bps,
		AttestationSignature: m["attestation_signature"],
		LicensePreset:        m["license_preset"],
	}
}
