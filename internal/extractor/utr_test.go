package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUTRCandidates(t *testing.T) {
	t.Parallel()

	text := "UTR 412345678901, phone 9876543210, acct 1234567890123, ref 312345678901"
	assert.Equal(t, []string{"412345678901", "312345678901"}, utrCandidates(text))
	assert.Empty(t, utrCandidates("no digits"))
}

func TestChooseUTR(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		modelUTR string
		raw      string
		want     string
	}{
		{"no candidates keeps model", "412345678901", "nothing", "412345678901"},
		{"no candidates keeps invalid model", "123", "nothing", "123"},
		{"agreeing candidate", "412345678901", "412345678901", "412345678901"},
		{"four wins over model", "312345678901", "312345678901 412345678901", "412345678901"},
		{"first four candidate wins", "", "212345678901 412345678901 498765432109", "412345678901"},
		{"valid model kept without four", "512345678901", "312345678901", "512345678901"},
		{"missing model uses first", "", "312345678901 212345678901", "312345678901"},
		{"invalid model uses first", "31234", "312345678901", "312345678901"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, chooseUTR(tt.modelUTR, tt.raw))
		})
	}
}
