package room

import (
	"context"

	"go.uber.org/zap"
)

// AgentHooks is satisfied by *agent.Client. Decoupled here so room
// tests can substitute a fake, the same seam the teacher's proxy package
// uses for BillingHooks.
type AgentHooks interface {
	Start(ctx context.Context, roomID, channel string) (agentID string, err error)
	Stop(ctx context.Context, agentID string) error
}

// dispatchAgentStart fires AgentHooks.Start off the hot path on the 0 -> 1
// participant transition, mirroring the teacher's
// "go h.billing.OnCreate(...)" fire-and-forget dispatch: the caller's
// response does not wait on the sidecar, and a failure here only logs — it
// never fails the join.
func (a *Actor) dispatchAgentStart(roomID string) {
	if a.agent == nil {
		return
	}
	go func() {
		ctx := context.Background()
		agentID, err := a.agent.Start(ctx, roomID, roomID)
		if err != nil {
			a.log.Warn("agent start failed", zap.String("room_id", roomID), zap.Error(err))
			return
		}
		a.mu.Lock()
		if a.room != nil {
			a.room.AgentID = agentID
			_ = a.store.SaveRoom(ctx, a.room)
		}
		a.mu.Unlock()
	}()
}

// dispatchAgentStop fires AgentHooks.Stop off the hot path on the 1 -> 0
// participant transition or explicit host close/end.
func (a *Actor) dispatchAgentStop(roomID, agentID string) {
	if a.agent == nil || agentID == "" {
		return
	}
	go func() {
		if err := a.agent.Stop(context.Background(), agentID); err != nil {
			a.log.Warn("agent stop failed", zap.String("room_id", roomID), zap.String("agent_id", agentID), zap.Error(err))
		}
	}()
}
