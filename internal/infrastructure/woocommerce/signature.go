package woocommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/erp/wooerp/internal/domain/integration"
)

// Webhook request headers set by WooCommerce
const (
	HeaderSignature  = "X-WC-Webhook-Signature"
	HeaderTopic      = "X-WC-Webhook-Topic"
	HeaderDeliveryID = "X-WC-Webhook-Delivery-ID"
	HeaderResource   = "X-WC-Webhook-Resource"
)

// Sign returns the base64 HMAC-SHA256 of body keyed by secret, as sent in
// the X-WC-Webhook-Signature header
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a webhook body against its signature header.
// An empty secret disables verification.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return fmt.Errorf("%w: missing %s header", integration.ErrPlatformInvalidSignature, HeaderSignature)
	}
	expected, err := base64.StdEncoding.DecodeString(Sign(secret, body))
	if err != nil {
		return err
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || !hmac.Equal(expected, given) {
		return integration.ErrPlatformInvalidSignature
	}
	return nil
}
