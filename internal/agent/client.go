// Package agent talks to the external AI-agent orchestrator: a sidecar
// service that actually runs the voice AI inside a room. The contract is
// two trivial calls — start a channel, stop an agent — so this client
// dials it directly with wrapperspb request/response values rather than
// carrying a generated .pb.go package for two RPCs.
package agent

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	startMethod = "/agentorchestrator.Orchestrator/Start"
	stopMethod  = "/agentorchestrator.Orchestrator/Stop"
)

// Orchestrator is the contract room.Actor depends on (room.AgentHooks),
// generalizing the teacher's single bare grpc.NewClient dial in
// internal/tee/appkey.go to a second, smaller external RPC dependency.
type Orchestrator interface {
	Start(ctx context.Context, roomID, channel string) (agentID string, err error)
	Stop(ctx context.Context, agentID string) error
}

// Client is a gRPC-backed Orchestrator. It dials once at construction and
// reuses the connection, the same long-lived-conn idiom the teacher uses
// for its chain client.
type Client struct {
	conn *grpc.ClientConn
}

func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("agent: dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Start asks the orchestrator to run an agent in channel. The request is a
// single wrapperspb.StringValue holding roomID and channel joined by "|";
// the response is a StringValue carrying the new agent id.
func (c *Client) Start(ctx context.Context, roomID, channel string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &wrapperspb.StringValue{Value: roomID + "|" + channel}
	resp := &wrapperspb.StringValue{}
	if err := c.conn.Invoke(ctx, startMethod, req, resp); err != nil {
		return "", fmt.Errorf("agent: start %s: %w", roomID, err)
	}
	if resp.Value == "" {
		return "", fmt.Errorf("agent: start %s: empty agent id returned", roomID)
	}
	return resp.Value, nil
}

// Stop is idempotent: stopping an agent id the orchestrator no longer
// knows about is not an error, matching spec §6's idempotence requirement
// for the orchestrator collaborator.
func (c *Client) Stop(ctx context.Context, agentID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req := &wrapperspb.StringValue{Value: agentID}
	resp := &wrapperspb.BoolValue{}
	if err := c.conn.Invoke(ctx, stopMethod, req, resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("agent: stop %s: %w", agentID, err)
	}
	return nil
}
