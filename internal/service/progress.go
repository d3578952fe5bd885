package service

import "github.com/shopspring/decimal"

// Progress returns the completion percentage for a project given its task
// counts: approved/total x 100 rounded to 2 decimal places. A project with no
// tasks is at 0. Decimal math avoids integer truncation (1 of 3 is 33.33).
func Progress(total, approved int64) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(approved).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		Round(2).
		InexactFloat64()
}
