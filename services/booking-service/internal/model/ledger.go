package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxIncome     TransactionType = "income"
	TxCommission TransactionType = "commission"
	TxExpense    TransactionType = "expense"
)

// Transaction is an append-only ledger row.
type Transaction struct {
	ID             string
	UnitID         string
	AppointmentID  *string
	ProfessionalID *string
	Type           TransactionType
	Amount         decimal.Decimal
	Description    string
	PaymentMethod  string
	CreatedAt      time.Time
}

// Settlement is the outcome of closing an appointment.
type Settlement struct {
	AppointmentID        string
	Price                decimal.Decimal
	CommissionPercentage decimal.Decimal
	CommissionAmount     decimal.Decimal
	SalonAmount          decimal.Decimal
	Income               Transaction
	Commission           Transaction
}
