package models

import "testing"

func TestSignedSat(t *testing.T) {
	tests := []struct {
		kind   string
		amount int64
		want   int64
	}{
		{ChangeReceivedCase, 1000, 1000},
		{ChangeRefundedCase, 1050, 1050},
		{ChangeUserActivation, 10000, 10000},
		{ChangeWithdrawal, 500, -500},
		{ChangeProcessingCase, 2100, 2100},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			c := BalanceChange{Kind: tt.kind, AmountSat: tt.amount}
			if got := c.SignedSat(); got != tt.want {
				t.Errorf("SignedSat() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSumChanges(t *testing.T) {
	changes := []BalanceChange{
		{Kind: ChangeUserActivation, AmountSat: 10000},
		{Kind: ChangeReceivedCase, AmountSat: 3000},
		{Kind: ChangeRefundedCase, AmountSat: 1050},
		{Kind: ChangeWithdrawal, AmountSat: 4000},
	}
	if got := SumChanges(changes); got != 10050 {
		t.Errorf("SumChanges() = %d, want 10050", got)
	}

	if got := SumChanges(nil); got != 0 {
		t.Errorf("SumChanges(nil) = %d, want 0", got)
	}
}
