package bidding

import (
	"html"
	"strings"

	"RewardBid/internal/domain/models"
)

const unknownMerchant = "unknown merchant"

// SanitizeText decodes HTML entities and trims whitespace.
func SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

// SanitizeTransaction returns a cleaned copy of tx; the caller's value is not touched.
func SanitizeTransaction(tx models.Transaction) models.Transaction {
	out := tx
	out.Description = SanitizeText(tx.Description)
	out.Merchant = SanitizeText(tx.Merchant)
	if out.Merchant == "" {
		out.Merchant = unknownMerchant
	}
	return out
}
