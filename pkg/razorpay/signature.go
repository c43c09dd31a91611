package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignPayment returns the checkout signature for an order/payment pair:
// hex(HMAC-SHA256(order_id + "|" + payment_id, key_secret)).
func SignPayment(orderID, paymentID, keySecret string) string {
	return sign([]byte(orderID+"|"+paymentID), keySecret)
}

// VerifyPaymentSignature checks a checkout signature in constant time.
func VerifyPaymentSignature(orderID, paymentID, signature, keySecret string) bool {
	if orderID == "" || paymentID == "" || keySecret == "" {
		return false
	}
	return equal(SignPayment(orderID, paymentID, keySecret), signature)
}

// SignWebhook returns hex(HMAC-SHA256(body, webhook_secret)).
func SignWebhook(body []byte, webhookSecret string) string {
	return sign(body, webhookSecret)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the raw body.
func VerifyWebhookSignature(body []byte, signature, webhookSecret string) bool {
	if len(body) == 0 || webhookSecret == "" {
		return false
	}
	return equal(SignWebhook(body, webhookSecret), signature)
}

func sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func equal(expected, provided string) bool {
	provided = strings.ToLower(strings.TrimSpace(provided))
	if provided == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(provided))
}
