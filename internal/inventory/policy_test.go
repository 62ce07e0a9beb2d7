package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanServe(t *testing.T) {
	tests := []struct {
		name       string
		dailyLimit int64
		usedToday  int64
		amount     int64
		want       bool
	}{
		{
			name:       "full capacity available",
			dailyLimit: 1000,
			usedToday:  0,
			amount:     500,
			want:       true,
		},
		{
			name:       "amount exceeds remaining capacity",
			dailyLimit: 1000,
			usedToday:  900,
			amount:     150,
			want:       false,
		},
		{
			name:       "amount fits remaining capacity",
			dailyLimit: 1000,
			usedToday:  900,
			amount:     50,
			want:       true,
		},
		{
			name:       "amount exactly equals remaining capacity",
			dailyLimit: 1000,
			usedToday:  900,
			amount:     100,
			want:       true,
		},
		{
			name:       "number already exhausted",
			dailyLimit: 1000,
			usedToday:  1000,
			amount:     1,
			want:       false,
		},
		{
			name:       "zero amount never served",
			dailyLimit: 1000,
			usedToday:  0,
			amount:     0,
			want:       false,
		},
		{
			name:       "negative amount never served",
			dailyLimit: 1000,
			usedToday:  0,
			amount:     -50,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanServe(tt.dailyLimit, tt.usedToday, tt.amount))
		})
	}
}

func TestValidPinOrderTransition(t *testing.T) {
	statuses := []string{PinOrderPaid, PinOrderCompleted, PinOrderFailed}
	allowed := map[[2]string]bool{
		{PinOrderPaid, PinOrderCompleted}: true,
		{PinOrderPaid, PinOrderFailed}:    true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]string{from, to}]
			assert.Equal(t, want, ValidPinOrderTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestValidCashOrderTransition(t *testing.T) {
	statuses := []string{CashOrderPending, CashOrderAirtimeSent, CashOrderCompleted, CashOrderRejected}
	allowed := map[[2]string]bool{
		{CashOrderPending, CashOrderAirtimeSent}:   true,
		{CashOrderPending, CashOrderRejected}:      true,
		{CashOrderAirtimeSent, CashOrderCompleted}: true,
		{CashOrderAirtimeSent, CashOrderRejected}:  true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]string{from, to}]
			assert.Equal(t, want, ValidCashOrderTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}
