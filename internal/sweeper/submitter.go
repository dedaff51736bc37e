package sweeper

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SettlementSubmitter is the external collaborator contract from spec §6:
// "receives signed attestations". Decoupled here the way the teacher's
// chain.Client is decoupled from the settler's consumer loop, so tests can
// substitute a fake.
type SettlementSubmitter interface {
	Submit(ctx context.Context, a *Attestation) error
}

type attestationPayload struct {
	RoomID                  string `json:"room_id"`
	Host                    string `json:"host"`
	Guest                   string `json:"guest"`
	TotalLiveEntitlements   string `json:"total_live_entitlements"`
	TotalReplayEntitlements string `json:"total_replay_entitlements"`
	BlobRef                 string `json:"blob_ref"`
	Signature               string `json:"signature"`
}

// HTTPSubmitter posts the attestation to a settlement oracle's HTTP
// endpoint, grounded on the teacher's daytona.Client bearer-authenticated
// JSON POST idiom.
type HTTPSubmitter struct {
	baseURL string
	http    *http.Client
}

func NewHTTPSubmitter(baseURL string) *HTTPSubmitter {
	return &HTTPSubmitter{baseURL: baseURL, http: &http.Client{Timeout: 15 * time.Second}}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, a *Attestation) error {
	payload := attestationPayload{
		RoomID:                  a.RoomID,
		Host:                    a.Host.Hex(),
		Guest:                   a.Guest.Hex(),
		TotalLiveEntitlements:   a.TotalLiveEntitlements.String(),
		TotalReplayEntitlements: a.TotalReplayEntitlements.String(),
		BlobRef:                 a.BlobRef,
		Signature:               hex.EncodeToString(a.Signature),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal attestation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/attestations", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build attestation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit attestation: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the oracle already holds this attestation: idempotent
	// success per spec §4.6, not a failure the sweeper should retry.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("submit attestation %s: status %d", a.RoomID, resp.StatusCode)
	}
	return nil
}
