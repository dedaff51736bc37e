package room

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	roomKeyPrefix        = "room:"
	participantKeyPrefix = "room:participant:"
)

func roomKey(roomID string) string {
	return roomKeyPrefix + roomID
}

func participantKey(connectionID string) string {
	return participantKeyPrefix + connectionID
}

// participantIndexKey is the set of connection_ids belonging to a room, so
// the actor can enumerate participants without a full table scan.
func participantIndexKey(roomID string) string {
	return "room:participants:" + roomID
}

// Store is the durable persistence layer for rooms and participants,
// grounded on the teacher's session.go HSet/HGetAll-per-record idiom.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) SaveRoom(ctx context.Context, r *Room) error {
	return s.rdb.HSet(ctx, roomKey(r.RoomID), roomToMap(r)).Err()
}

func (s *Store) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	vals, err := s.rdb.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return roomFromMap(vals), nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	return s.rdb.Del(ctx, roomKey(roomID)).Err()
}

func (s *Store) SaveParticipant(ctx context.Context, p *Participant) error {
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, participantKey(p.ConnectionID), participantToMap(p))
	pipe.SAdd(ctx, participantIndexKey(p.RoomID), p.ConnectionID)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) GetParticipant(ctx context.Context, connectionID string) (*Participant, error) {
	vals, err := s.rdb.HGetAll(ctx, participantKey(connectionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get participant %s: %w", connectionID, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return participantFromMap(vals), nil
}

func (s *Store) DeleteParticipant(ctx context.Context, roomID, connectionID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, participantKey(connectionID))
	pipe.SRem(ctx, participantIndexKey(roomID), connectionID)
	_, err := pipe.Exec(ctx)
	return err
}

// ListParticipants returns every participant row currently indexed for
// roomID, including ones that have been marked Left but not yet deleted.
func (s *Store) ListParticipants(ctx context.Context, roomID string) ([]*Participant, error) {
	ids, err := s.rdb.SMembers(ctx, participantIndexKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list participant ids for %s: %w", roomID, err)
	}
	participants := make([]*Participant, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetParticipant(ctx, id)
		if err != nil || p == nil {
			continue
		}
		participants = append(participants, p)
	}
	return participants, nil
}

// ScanEndedUnattestedDuets walks every duet room row looking for ones that
// are Ended but not yet Attested, for the attestation sweeper.
func (s *Store) ScanEndedUnattestedDuets(ctx context.Context) ([]*Room, error) {
	var rooms []*Room
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, roomKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan rooms: %w", err)
		}
		for _, key := range keys {
			if key == roomKeyPrefix || !isBareRoomKey(key) {
				continue
			}
			vals, err := s.rdb.HGetAll(ctx, key).Result()
			if err != nil || len(vals) == 0 {
				continue
			}
			r := roomFromMap(vals)
			if r.Kind == KindDuet && r.Status == StatusEnded && !r.Attested {
				rooms = append(rooms, r)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return rooms, nil
}

func roomToMap(r *Room) map[string]interface{} {
	return map[string]interface{}{
		"room_id":                   r.RoomID,
		"kind":                      string(r.Kind),
		"status":                    string(r.Status),
		"host":                      r.Host,
		"capacity":                  r.Capacity,
		"created_at":                r.CreatedAt,
		"replay_mode":               string(r.ReplayMode),
		"guest_wallet":              r.GuestWallet,
		"split_address":             r.SplitAddress,
		"asset_id":                  r.AssetID,
		"network_id":                r.NetworkID,
		"live_amount":               r.LiveAmount,
		"replay_amount":             r.ReplayAmount,
		"segment_id":                r.SegmentID,
		"bridge_ticket":             r.BridgeTicket,
		"broadcaster_online":        r.BroadcasterOnline,
		"broadcaster_mode":          r.BroadcasterMode,
		"last_beat":                 r.LastBeat,
		"blob_ref":                  r.BlobRef,
		"attested":                  r.Attested,
		"attest_failures":           r.AttestFailures,
		"total_live_entitlements":   r.TotalLiveEntitlements,
		"total_replay_entitlements": r.TotalReplayEntitlements,
		"agent_id":                  r.AgentID,
	}
}

func roomFromMap(m map[string]string) *Room {
	return &Room{
		RoomID:                  m["room_id"],
		Kind:                    Kind(m["kind"]),
		Status:                  Status(m["status"]),
		Host:                    m["host"],
		Capacity:                atoiOr(m["capacity"], 0),
		CreatedAt:               atoi64Or(m["created_at"], 0),
		ReplayMode:              ReplayMode(m["replay_mode"]),
		GuestWallet:             m["guest_wallet"],
		SplitAddress:            m["split_address"],
		AssetID:                 m["asset_id"],
		NetworkID:               m["network_id"],
		LiveAmount:              m["live_amount"],
		ReplayAmount:            m["replay_amount"],
		SegmentID:               m["segment_id"],
		BridgeTicket:            m["bridge_ticket"],
		BroadcasterOnline:       m["broadcaster_online"] == "1",
		BroadcasterMode:         m["broadcaster_mode"],
		LastBeat:                atoi64Or(m["last_beat"], 0),
		BlobRef:                 m["blob_ref"],
		Attested:                m["attested"] == "1",
		AttestFailures:          atoiOr(m["attest_failures"], 0),
		TotalLiveEntitlements:   atoi64Or(m["total_live_entitlements"], 0),
		TotalReplayEntitlements: atoi64Or(m["total_replay_entitlements"], 0),
		AgentID:                 m["agent_id"],
	}
}

func participantToMap(p *Participant) map[string]interface{} {
	return map[string]interface{}{
		"connection_id":    p.ConnectionID,
		"room_id":          p.RoomID,
		"wallet":           p.Wallet,
		"vendor_uid":       p.VendorUID,
		"joined_at":        p.JoinedAt,
		"last_metered_at":  p.LastMeteredAt,
		"debited_seconds":  p.DebitedSecond,
		"warned_low":       p.WarnedLow,
		"exhausted":        p.Exhausted,
		"left":             p.Left,
	}
}

func participantFromMap(m map[string]string) *Participant {
	return &Participant{
		ConnectionID:  m["connection_id"],
		RoomID:        m["room_id"],
		Wallet:        m["wallet"],
		VendorUID:     m["vendor_uid"],
		JoinedAt:      atoi64Or(m["joined_at"], 0),
		LastMeteredAt: atoi64Or(m["last_metered_at"], 0),
		DebitedSecond: atoi64Or(m["debited_seconds"], 0),
		WarnedLow:     m["warned_low"] == "1",
		Exhausted:     m["exhausted"] == "1",
		Left:          m["left"] == "1",
	}
}

// isBareRoomKey reports whether key is a room record key ("room:<id>") as
// opposed to a participant or participant-index key, assuming room ids
// themselves never contain a colon.
func isBareRoomKey(key string) bool {
	rest := strings.TrimPrefix(key, roomKeyPrefix)
	return rest != key && !strings.Contains(rest, ":")
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func atoi64Or(s string, fallback int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
