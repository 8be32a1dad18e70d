package integrations

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductMeta is the catalog entry of a sellable product
type ProductMeta struct {
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	MaxFinancing int    `json:"max_financing"`
}

type agreementDTO struct {
	AgreementID  string `json:"agreement_id"`
	Product      string `json:"product"`
	MaxFinancing int    `json:"max_financing"`
}

type productDTO struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	MaxFinancing int             `json:"max_financing"`
}

type paymentsDTO struct {
	Data []paymentDTO `json:"data"`
}

type paymentDTO struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

type advisoryDTO struct {
	State         string  `json:"state,omitempty"`
	SettledDate   *string `json:"settled_date,omitempty"`
	SettledAmount int64   `json:"settled_amount"`
}

type verdictDTO struct {
	State         string           `json:"state"`
	SettledDate   *string          `json:"settled_date"`
	SettledAmount *decimal.Decimal `json:"settled_amount"`
	PendingRefs   []string         `json:"pending_refs"`
}

// units rounds a decimal amount to whole currency units
func units(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// parseDate accepts a plain date or an RFC 3339 timestamp
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
