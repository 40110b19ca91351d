package financialimporter

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionID is the content hash that identifies a logical transaction.
// Amounts are compared to the cent and descriptions ignore case and
// whitespace, so the same transaction exported by two banks in two layouts
// gets the same id.
func TransactionID(accountID string, bookingDate time.Time, amount decimal.Decimal, description string) string {
	key := strings.Join([]string{
		accountID,
		bookingDate.Format(DateLayout),
		amount.StringFixed(2),
		NormalizeDescription(description),
	}, "|")

	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// NormalizeDescription lowercases s and collapses whitespace runs.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// AccountIDFromName derives a short stable account id from a display name.
func AccountIDFromName(name string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(name))))
	return hex.EncodeToString(sum[:])[:12]
}
