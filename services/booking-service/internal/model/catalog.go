package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	Price           decimal.Decimal
	UpdatedAt       time.Time
}

type Professional struct {
	ID                   string
	Name                 string
	CommissionPercentage decimal.Decimal
	UpdatedAt            time.Time
}

// BlockedTime is a range the professional is unavailable, in absolute time.
type BlockedTime struct {
	ID             string
	ProfessionalID string
	Start          time.Time
	End            time.Time
	Reason         string
}
