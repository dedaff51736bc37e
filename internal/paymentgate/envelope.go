package paymentgate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ChallengeEnvelope is the base64-encoded JSON body of the PAYMENT-REQUIRED
// header sent on a 402.
type ChallengeEnvelope struct {
	Resource   string            `json:"resource"`
	Amount     string            `json:"amount"`
	Asset      string            `json:"asset"`
	Network    string            `json:"network"`
	PayTo      string            `json:"payTo"`
	Extensions map[string]string `json:"extensions,omitempty"`
}

// SignatureEnvelope is the base64-encoded JSON body the client POSTs back in
// the PAYMENT-SIGNATURE header. The gate treats everything inside it as
// opaque except the fields it needs to match against the live challenge;
// the outer wallet cryptography that produced it is the external
// collaborator's concern.
type SignatureEnvelope struct {
	Resource string `json:"resource"`
	Wallet   string `json:"wallet"`
	PayTo    string `json:"payTo"`
	Amount   string `json:"amount"`
	Asset    string `json:"asset"`
	Network  string `json:"network"`
	Proof    string `json:"proof"`
}

// ResponseEnvelope is the base64-encoded JSON body of the PAYMENT-RESPONSE
// header echoed back on a successful verifyAndGrant.
type ResponseEnvelope struct {
	Resource string `json:"resource"`
}

func EncodeChallenge(c ChallengeEnvelope) (string, error) {
	return encodeEnvelope(c)
}

func DecodeSignature(header string) (SignatureEnvelope, error) {
	var sig SignatureEnvelope
	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return sig, fmt.Errorf("decode PAYMENT-SIGNATURE: %w", err)
	}
	if err := json.Unmarshal(raw, &sig); err != nil {
		return sig, fmt.Errorf("unmarshal PAYMENT-SIGNATURE: %w", err)
	}
	return sig, nil
}

func EncodeResponse(r ResponseEnvelope) (string, error) {
	return encodeEnvelope(r)
}

func encodeEnvelope(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

const (
	HeaderPaymentRequired  = "Payment-Required"
	HeaderPaymentSignature = "Payment-Signature"
	HeaderPaymentResponse  = "Payment-Response"
)
