package models

import "testing"

func TestCaseGuards(t *testing.T) {
	tests := []struct {
		name      string
		c         Case
		canAward  bool
		canCancel bool
	}{
		{"unpaid open", Case{}, false, true},
		{"paid open", Case{Paid: true}, true, true},
		{"paid awarded", Case{Paid: true, Awarded: true}, false, false},
		{"paid canceled by seller", Case{Paid: true, CanceledBySeller: true}, false, false},
		{"paid canceled by buyer", Case{Paid: true, CanceledByBuyer: true}, false, false},
		{"unpaid canceled by buyer", Case{CanceledByBuyer: true}, false, false},
		{"awarded but unpaid", Case{Awarded: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.CanAward(); got != tt.canAward {
				t.Errorf("CanAward() = %v, want %v", got, tt.canAward)
			}
			if got := tt.c.CanCancel(); got != tt.canCancel {
				t.Errorf("CanCancel() = %v, want %v", got, tt.canCancel)
			}
		})
	}
}

func TestCaseIsResolvedMatchesGuards(t *testing.T) {
	resolved := []Case{
		{Awarded: true},
		{CanceledBySeller: true},
		{CanceledByBuyer: true},
		{Paid: true, Awarded: true, CanceledByBuyer: true},
	}
	for _, c := range resolved {
		if !c.IsResolved() {
			t.Errorf("case %+v should be resolved", c)
		}
		if c.CanAward() || c.CanCancel() {
			t.Errorf("resolved case %+v must not allow award or cancel", c)
		}
	}

	open := Case{Paid: true}
	if open.IsResolved() {
		t.Error("paid open case must not be resolved")
	}
}

func TestCaseAmounts(t *testing.T) {
	tests := []struct {
		name       string
		priceSat   int64
		quantity   int64
		feeRateBPS int
		wantOwed   int64
		wantCredit int64
	}{
		{"no fee", 1000, 1, 0, 1000, 1000},
		{"5 percent", 1000, 1, 500, 1050, 1000},
		{"5 percent qty 3", 1000, 3, 500, 3150, 3000},
		{"fee rounds down", 999, 1, 500, 1048, 999},
		{"tiny amount fee floors to zero", 10, 1, 50, 10, 10},
		{"1 bps", 100000, 1, 1, 100010, 100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owed, credit := CaseAmounts(tt.priceSat, tt.quantity, tt.feeRateBPS)
			if owed != tt.wantOwed {
				t.Errorf("amountOwed = %d, want %d", owed, tt.wantOwed)
			}
			if credit != tt.wantCredit {
				t.Errorf("sellerCredit = %d, want %d", credit, tt.wantCredit)
			}
			if owed < credit {
				t.Errorf("amountOwed %d must never be below sellerCredit %d", owed, credit)
			}
		})
	}
}
