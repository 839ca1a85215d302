package resource

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is money spent
type Expense struct {
	Base
	Title      string          `json:"title"`
	Amount     decimal.Decimal `json:"amount"`
	Category   string          `json:"category"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes,omitempty"`
	SemesterID string          `json:"semester,omitempty"`
}

// ExpenseFilter narrows the expense list
type ExpenseFilter struct {
	Category   string `json:"category,omitempty"`
	Month      int    `json:"month,omitempty"`
	Year       int    `json:"year,omitempty"`
	SemesterID string `json:"semester,omitempty"`
	Page
}

// ExpenseInput creates or updates an expense; empty fields are left unchanged on update
type ExpenseInput struct {
	Title      string           `json:"title,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Category   string           `json:"category,omitempty"`
	Date       *time.Time       `json:"date,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	SemesterID string           `json:"semester,omitempty"`
}

// IncomeEntry is money received
type IncomeEntry struct {
	Base
	Source    string          `json:"source"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Recurring bool            `json:"recurring"`
}

// IncomeFilter narrows the income list
type IncomeFilter struct {
	Month int `json:"month,omitempty"`
	Year  int `json:"year,omitempty"`
}

// IncomeInput creates or updates an income entry
type IncomeInput struct {
	Source    string           `json:"source,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Date      *time.Time       `json:"date,omitempty"`
	Recurring *bool            `json:"recurring,omitempty"`
}

// Budget is a spending limit per category and period
type Budget struct {
	Base
	Category   string          `json:"category"`
	Limit      decimal.Decimal `json:"limit"`
	Spent      decimal.Decimal `json:"spent"`
	Period     string          `json:"period"`
	SemesterID string          `json:"semester,omitempty"`
}

// Remaining returns the unspent part of the limit, negative when overspent
func (b Budget) Remaining() decimal.Decimal {
	return b.Limit.Sub(b.Spent)
}

// BudgetFilter narrows the budget list
type BudgetFilter struct {
	Period     string `json:"period,omitempty"`
	SemesterID string `json:"semester,omitempty"`
}

// BudgetInput creates or updates a budget
type BudgetInput struct {
	Category   string           `json:"category,omitempty"`
	Limit      *decimal.Decimal `json:"limit,omitempty"`
	Period     string           `json:"period,omitempty"`
	SemesterID string           `json:"semester,omitempty"`
}

// Semester groups finances by academic term
type Semester struct {
	Base
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Active    bool      `json:"active"`
}

// SemesterFilter narrows the semester list
type SemesterFilter struct {
	Active *bool `json:"active,omitempty"`
}

// SemesterInput creates or updates a semester
type SemesterInput struct {
	Name      string     `json:"name,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Active    *bool      `json:"active,omitempty"`
}

// PaymentSchedule is a recurring or one-off payment due
type PaymentSchedule struct {
	Base
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   time.Time       `json:"dueDate"`
	Frequency string          `json:"frequency"`
	Paid      bool            `json:"paid"`
}

// PaymentScheduleFilter narrows the payment schedule list
type PaymentScheduleFilter struct {
	Paid     *bool `json:"paid,omitempty"`
	Upcoming bool  `json:"upcoming,omitempty"`
}

// PaymentScheduleInput creates or updates a payment schedule
type PaymentScheduleInput struct {
	Title     string           `json:"title,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	DueDate   *time.Time       `json:"dueDate,omitempty"`
	Frequency string           `json:"frequency,omitempty"`
	Paid      *bool            `json:"paid,omitempty"`
}

// SavingsGoal tracks progress toward a target amount
type SavingsGoal struct {
	Base
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      time.Time       `json:"deadline,omitzero"`
}

// Progress returns the saved fraction in [0, 1]
func (g SavingsGoal) Progress() decimal.Decimal {
	if !g.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	p := g.CurrentAmount.Div(g.TargetAmount)
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// SavingsGoalInput creates or updates a savings goal
type SavingsGoalInput struct {
	Name          string           `json:"name,omitempty"`
	TargetAmount  *decimal.Decimal `json:"targetAmount,omitempty"`
	CurrentAmount *decimal.Decimal `json:"currentAmount,omitempty"`
	Deadline      *time.Time       `json:"deadline,omitempty"`
}
