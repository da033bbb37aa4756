package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Slack rejects replayed requests older than five minutes; so do we.
const signatureTolerance = 5 * time.Minute

// verifySlackSignature checks the v0 request signature Slack attaches to
// webhook calls: HMAC-SHA256 over "v0:<timestamp>:<body>" with the app's
// signing secret.
func verifySlackSignature(signingSecret, timestamp, signature string, body []byte, now time.Time) error {
	signingSecret = strings.TrimSpace(signingSecret)
	timestamp = strings.TrimSpace(timestamp)
	signature = strings.TrimSpace(signature)
	if signingSecret == "" {
		return fmt.Errorf("signing secret is not configured")
	}
	if timestamp == "" || signature == "" {
		return fmt.Errorf("missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid signature timestamp")
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(signingSecret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) != 1 {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
