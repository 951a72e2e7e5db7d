package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"
	"time"
)

// StripeSignatureTolerance bounds the age of a Stripe webhook timestamp.
const StripeSignatureTolerance = 5 * time.Minute

// VerifyStripeSignature checks the Stripe-Signature header against the raw
// payload. The header carries "t=<unix>,v1=<hex>[,v1=...]"; the signed message
// is "<t>.<payload>" with HMAC-SHA256.
func VerifyStripeSignature(payload []byte, signatureHeader, webhookSecret string, now time.Time) bool {
	secret := strings.TrimSpace(webhookSecret)
	header := strings.TrimSpace(signatureHeader)
	if secret == "" || header == "" {
		return false
	}

	var timestamp int64
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return false
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(kv[1]))
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return false
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > StripeSignatureTolerance || age < -StripeSignatureTolerance {
		return false
	}

	signed := append([]byte(strconv.FormatInt(timestamp, 10)+"."), payload...)
	for _, sig := range candidates {
		if verifyHMAC(signed, sig, []byte(secret), sha256.New) {
			return true
		}
	}
	return false
}

// VerifyNowPaymentsSignature checks the x-nowpayments-sig header: a hex
// HMAC-SHA512 over the raw IPN body with the shared IPN secret.
func VerifyNowPaymentsSignature(payload []byte, signatureHeader, ipnSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(ipnSecret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}
	return verifyHMAC(payload, decodedSig, []byte(secret), sha512.New)
}

func verifyHMAC(payload, expectedSig, secret []byte, hashFunc func() hash.Hash) bool {
	mac := hmac.New(hashFunc, secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), expectedSig)
}
