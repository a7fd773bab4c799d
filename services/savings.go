package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"melhor-casa/models"
)

// TargetDateLayout is the format of SavingsGoal.TargetDate.
const TargetDateLayout = "2006-01-02"

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidTargetDate = errors.New("target date must be YYYY-MM-DD")

	downPaymentRate = decimal.RequireFromString("0.30")
	monthLength     = 30 * 24 * time.Hour
)

// ParseAmount reads a deposit typed by the user, keeping digits and the dot.
// Only the leading number counts, so "100.50.25" is 100.50.
func ParseAmount(input string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, input)
	amount, err := decimal.NewFromString(leadingNumber(cleaned))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("savings: %q: %w", input, ErrInvalidAmount)
	}
	return amount, nil
}

// AddMoney returns the new piggy-bank total after depositing input.
func AddMoney(total float64, input string) (float64, error) {
	amount, err := ParseAmount(input)
	if err != nil {
		return total, err
	}
	return decimal.NewFromFloat(total).Add(amount).InexactFloat64(), nil
}

// SetTargetDate replaces the goal for propertyID, snapshotting totalSavings.
func SetTargetDate(goals []models.SavingsGoal, propertyID, targetDate string, totalSavings float64) ([]models.SavingsGoal, error) {
	if _, err := time.Parse(TargetDateLayout, targetDate); err != nil {
		return goals, fmt.Errorf("savings: %q: %w", targetDate, ErrInvalidTargetDate)
	}

	updated := make([]models.SavingsGoal, 0, len(goals)+1)
	for _, g := range goals {
		if g.PropertyID != propertyID {
			updated = append(updated, g)
		}
	}
	updated = append(updated, models.SavingsGoal{
		PropertyID:     propertyID,
		TargetDate:     targetDate,
		CurrentSavings: totalSavings,
	})
	return updated, nil
}

// FindGoal returns the goal for propertyID, or nil.
func FindGoal(goals []models.SavingsGoal, propertyID string) *models.SavingsGoal {
	for i := range goals {
		if goals[i].PropertyID == propertyID {
			return &goals[i]
		}
	}
	return nil
}

// DownPayment is 30% of the listed price.
func DownPayment(price string) decimal.Decimal {
	return decimal.NewFromInt(ParseNumeric(price)).Mul(downPaymentRate)
}

// MonthlyNeeded is how much must be saved per month to reach the down payment
// by the goal's target date. Less than a month left counts as one month.
func MonthlyNeeded(goal *models.SavingsGoal, price string, totalSavings float64, now time.Time) float64 {
	if goal == nil || goal.TargetDate == "" {
		return 0
	}
	remaining := DownPayment(price).Sub(decimal.NewFromFloat(totalSavings))
	if !remaining.IsPositive() {
		return 0
	}

	target, err := time.Parse(TargetDateLayout, goal.TargetDate)
	if err != nil {
		return 0
	}
	months := int64(1)
	if left := target.Sub(now); left > 0 {
		months = int64((left + monthLength - 1) / monthLength)
		if months < 1 {
			months = 1
		}
	}
	return remaining.Div(decimal.NewFromInt(months)).Round(2).InexactFloat64()
}

// Progress is the saved share of the down payment, in percent, capped at 100.
func Progress(price string, totalSavings float64) float64 {
	down := DownPayment(price)
	if down.IsZero() {
		if totalSavings > 0 {
			return 100
		}
		return 0
	}
	pct := decimal.NewFromFloat(totalSavings).Div(down).Mul(decimal.NewFromInt(100))
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	return pct.Round(2).InexactFloat64()
}
