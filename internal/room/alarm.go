package room

import "time"

// alarm is a self-rescheduling per-actor timer, standing in for the
// platform "alarm" primitive spec §9 describes. Unlike the teacher's
// generator.go, which drives one shared time.Ticker across every session,
// each Actor owns its own timer here so an individual room can cancel its
// alarm the moment it empties — a single shared ticker has no notion of
// "this one item is done", only a per-item timer does.
type alarm struct {
	timer *time.Timer
}

// scheduleAlarm (re)arms the actor's alarm to fire fn after d, cancelling
// any previously scheduled firing. Must be called with a.mu held; fn itself
// acquires a.mu on its own when it runs, since it fires on a separate
// goroutine after the caller has released the lock.
func (a *Actor) scheduleAlarm(d time.Duration, fn func()) {
	if a.alarmState.timer != nil {
		a.alarmState.timer.Stop()
	}
	a.alarmState.timer = time.AfterFunc(d, fn)
}

// cancelAlarm stops any pending alarm firing. Must be called with a.mu held.
func (a *Actor) cancelAlarm() {
	if a.alarmState.timer != nil {
		a.alarmState.timer.Stop()
		a.alarmState.timer = nil
	}
}
