package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// topupScript atomically appends a positive entry to the per-wallet log and
// rolls the remaining balance forward in the projection hash.
//
// KEYS[1] = log key (list)
// KEYS[2] = balance key (hash: remaining, total_debited)
// ARGV[1] = delta seconds (positive integer, string)
// ARGV[2] = entry JSON (already escaped by the caller)
var topupScript = redis.NewScript(`
redis.call('RPUSH', KEYS[1], ARGV[2])
redis.call('HINCRBY', KEYS[2], 'remaining', tonumber(ARGV[1]))
return redis.call('HGET', KEYS[2], 'remaining')
`)

// debitScript atomically clamps a debit to the current balance, rolls the
// projection forward, and appends the resulting entry to the log — all in
// one round-trip so two concurrent debits against the same wallet can never
// observe the same "before" balance.
//
// KEYS[1] = log key (list)
// KEYS[2] = balance key (hash)
// ARGV[1] = requested seconds (string)
// ARGV[2] = wallet (json-escaped)
// ARGV[3] = source_id (json-escaped)
// ARGV[4] = now unix seconds (string)
var debitScript = redis.NewScript(`
local before = tonumber(redis.call('HGET', KEYS[2], 'remaining'))
if before == nil or before < 0 then before = 0 end
local requested = tonumber(ARGV[1])
local debited = requested
if before < requested then debited = before end
local remaining = before - debited
redis.call('HSET', KEYS[2], 'remaining', remaining)
redis.call('HINCRBY', KEYS[2], 'total_debited', debited)
local entry = string.format('{"wallet":"%s","delta_seconds":%d,"reason":"debit","source_id":"%s","at":%s}', ARGV[2], -debited, ARGV[3], ARGV[4])
redis.call('RPUSH', KEYS[1], entry)
return {debited, remaining}
`)

// Ledger implements C2: an append-only per-wallet log with an atomically
// maintained balance projection, grounded on the teacher's
// seedAndIncrScript atomic-nonce idiom (one Lua round-trip per mutation).
type Ledger struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Ledger {
	return &Ledger{rdb: rdb}
}

func logKey(wallet string) string {
	return "ledger:log:" + strings.ToLower(wallet)
}

func balanceKey(wallet string) string {
	return "ledger:balance:" + strings.ToLower(wallet)
}

// escapeJSON makes a string safe to interpolate into a hand-built JSON
// string literal via Lua's string.format.
func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// Topup appends a positive entry for wallet.
func (l *Ledger) Topup(ctx context.Context, wallet string, seconds int64, sourceID string) error {
	if seconds <= 0 {
		return fmt.Errorf("topup seconds must be positive, got %d", seconds)
	}
	now := time.Now().Unix()
	entry := Entry{
		Wallet:       wallet,
		DeltaSeconds: seconds,
		Reason:       ReasonTopup,
		SourceID:     sourceID,
		At:           now,
	}
	raw := fmt.Sprintf(`{"wallet":"%s","delta_seconds":%d,"reason":"topup","source_id":"%s","at":%d}`,
		escapeJSON(entry.Wallet), entry.DeltaSeconds, escapeJSON(entry.SourceID), entry.At)

	return topupScript.Run(ctx, l.rdb, []string{logKey(wallet), balanceKey(wallet)}, seconds, raw).Err()
}

// Debit atomically debits up to seconds from wallet's balance. If the
// balance is insufficient, the shortfall is discarded — balance never goes
// negative.
func (l *Ledger) Debit(ctx context.Context, wallet string, seconds int64, sourceID string) (DebitResult, error) {
	if seconds < 0 {
		return DebitResult{}, fmt.Errorf("debit seconds must be non-negative, got %d", seconds)
	}
	now := time.Now().Unix()

	res, err := debitScript.Run(ctx, l.rdb,
		[]string{logKey(wallet), balanceKey(wallet)},
		seconds, escapeJSON(wallet), escapeJSON(sourceID), now,
	).Result()
	if err != nil {
		return DebitResult{}, fmt.Errorf("debit: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return DebitResult{}, fmt.Errorf("debit: unexpected script result %T", res)
	}
	debited, err := toInt64(vals[0])
	if err != nil {
		return DebitResult{}, err
	}
	remaining, err := toInt64(vals[1])
	if err != nil {
		return DebitResult{}, err
	}
	return DebitResult{Debited: debited, Remaining: remaining}, nil
}

// GetBalance returns the current projection for wallet.
func (l *Ledger) GetBalance(ctx context.Context, wallet string) (Balance, error) {
	vals, err := l.rdb.HMGet(ctx, balanceKey(wallet), "remaining", "total_debited").Result()
	if err != nil {
		return Balance{}, fmt.Errorf("read balance: %w", err)
	}
	remaining := parseHashInt(vals[0])
	totalDebited := parseHashInt(vals[1])
	return Balance{Remaining: remaining, TotalDebited: totalDebited}, nil
}

func parseHashInt(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	fmt.Sscanf(s, "%d", &n)
	return n
}

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, fmt.Errorf("parse int64 from %q: %w", t, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
