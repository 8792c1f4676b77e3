package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionKeyNormalizesCounterparty(t *testing.T) {
	tests := []struct {
		name         string
		counterparty string
		want         string
	}{
		{"plain digits", "5521988887777", "conn-1_5521988887777"},
		{"formatted number", "+55 (21) 98888-7777", "conn-1_5521988887777"},
		{"jid suffix stripped", "5521988887777@s.whatsapp.net", "conn-1_5521988887777"},
		{"no digits at all", "anonymous", "conn-1_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SessionKey("conn-1", tt.counterparty))
		})
	}
}
