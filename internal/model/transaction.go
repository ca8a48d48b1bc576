package model

import (
	"regexp"
	"time"
)

// UnknownValue marks a field the extraction pipeline could not determine.
const UnknownValue = "unknown"

// UTRLength is the number of digits in a valid UTR.
const UTRLength = 12

var utrPattern = regexp.MustCompile(`^[0-9]{12}$`)

// ExtractedData is the structured result of reading a payment screenshot.
// All values are opaque strings; UnknownValue marks missing fields.
type ExtractedData struct {
	Date     string `json:"date"`
	UTR      string `json:"utr"`
	Amount   string `json:"amount_in_inr"`
	IsEdited bool   `json:"is_edited"`
}

// IsValidUTR reports whether s is exactly twelve ASCII digits.
func IsValidUTR(s string) bool {
	return utrPattern.MatchString(s)
}

// Normalize replaces empty fields with UnknownValue and discards any UTR
// that is not exactly twelve digits.
func (d *ExtractedData) Normalize() {
	if d.Date == "" {
		d.Date = UnknownValue
	}
	if d.Amount == "" {
		d.Amount = UnknownValue
	}
	if !IsValidUTR(d.UTR) {
		d.UTR = UnknownValue
	}
}

// Transaction is the persisted result of one successful submission.
// Immutable once written.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	UTR       string    `json:"utr"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Log is the per-user audit entry written alongside each Transaction.
// Logs expire after the retention window and are purged in the background.
type Log struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Data      ExtractedData `json:"data"`
	Timestamp time.Time     `json:"timestamp"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Submission groups the records produced by one processed image.
type Submission struct {
	Transaction *Transaction
	Log         *Log
}
