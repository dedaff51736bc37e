package room

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// evictMultiplier times the heartbeat interval is the staleness window after
// which a participant who stopped heartbeating without an explicit Leave is
// evicted by the alarm.
const evictMultiplier = 3

// meterParticipant implements the free-room metering algorithm from spec
// §4.5: debit elapsed presence time from the participant's wallet, advance
// last_metered_at only if the debit succeeds (so a failed append never
// loses time), and raise low/exhausted threshold events exactly once each.
// Must be called with a.mu held.
func (a *Actor) meterParticipant(ctx context.Context, p *Participant) (debited int64, events []Event, remaining int64, err error) {
	if a.room.Kind != KindFree {
		bal, err := a.ledger.GetBalance(ctx, p.Wallet)
		if err != nil {
			return 0, nil, 0, err
		}
		return 0, nil, bal.Remaining, nil
	}

	now := time.Now().Unix()
	elapsed := now - p.LastMeteredAt
	if elapsed <= 0 {
		bal, err := a.ledger.GetBalance(ctx, p.Wallet)
		if err != nil {
			return 0, nil, 0, err
		}
		return 0, nil, bal.Remaining, nil
	}

	res, err := a.ledger.Debit(ctx, p.Wallet, elapsed, p.ConnectionID)
	if err != nil {
		// Transient storage error: do not advance last_metered_at, so the
		// next alarm tick re-meters the same elapsed window.
		return 0, nil, 0, err
	}

	p.LastMeteredAt = now
	p.DebitedSecond += res.Debited

	if res.Remaining <= a.cfg.CreditsLowThreshold && !p.WarnedLow {
		events = append(events, EventCreditsLow)
		p.WarnedLow = true
	}
	if res.Remaining <= 0 && !p.Exhausted {
		events = append(events, EventCreditsExhausted)
		p.Exhausted = true
	}

	return res.Debited, events, res.Remaining, nil
}

// scheduleHeartbeatAlarmLocked arms the heartbeat alarm HEARTBEAT_INTERVAL
// from now. Must be called with a.mu held.
func (a *Actor) scheduleHeartbeatAlarmLocked() {
	interval := time.Duration(a.cfg.HeartbeatIntervalSec) * time.Second
	a.scheduleAlarm(interval, a.fireHeartbeatAlarm)
}

// fireHeartbeatAlarm is the alarm callback: it evicts stale participants,
// meters everyone remaining, persists state, and reschedules itself if
// anyone is still present. Runs on its own goroutine via time.AfterFunc, so
// it takes the lock itself rather than assuming the caller holds it.
func (a *Actor) fireHeartbeatAlarm() {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx := context.Background()
	if a.room == nil {
		return
	}

	if len(a.participants) == 0 {
		a.onRoomEmptyLocked(ctx)
		return
	}

	staleAfter := evictMultiplier * a.cfg.HeartbeatIntervalSec
	now := time.Now().Unix()

	for id, p := range a.participants {
		if now-p.LastMeteredAt >= staleAfter {
			if _, _, _, err := a.meterParticipant(ctx, p); err != nil {
				a.log.Warn("alarm: final meter before eviction failed", zap.String("room_id", a.roomID), zap.String("connection_id", id), zap.Error(err))
			}
			p.Left = true
			if err := a.store.DeleteParticipant(ctx, a.roomID, id); err != nil {
				a.log.Warn("alarm: evict participant failed", zap.String("room_id", a.roomID), zap.String("connection_id", id), zap.Error(err))
			}
			delete(a.participants, id)
			continue
		}

		if _, _, _, err := a.meterParticipant(ctx, p); err != nil {
			a.log.Warn("alarm: meter participant failed", zap.String("room_id", a.roomID), zap.String("connection_id", id), zap.Error(err))
			continue
		}
		if err := a.store.SaveParticipant(ctx, p); err != nil {
			a.log.Warn("alarm: persist participant failed", zap.String("room_id", a.roomID), zap.String("connection_id", id), zap.Error(err))
		}
	}

	if len(a.participants) == 0 {
		a.onRoomEmptyLocked(ctx)
		return
	}

	a.scheduleHeartbeatAlarmLocked()
}
