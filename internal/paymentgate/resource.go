package paymentgate

import "fmt"

// Resource builds the stable resource identifier for a paid operation:
// "/<room_kind>/<room_id>/<op>?segment_id=<segment>". Two challenges sharing
// a resource identifier are interchangeable; two differing in any component
// are not.
func Resource(roomKind, roomID, op, segmentID string) string {
	return fmt.Sprintf("/%s/%s/%s?segment_id=%s", roomKind, roomID, op, segmentID)
}
