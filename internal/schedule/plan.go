package schedule

import (
	"time"

	"github.com/google/uuid"
)

// AgreementContext is fixed once the sale is finalized
type AgreementContext struct {
	AgreementID  string `json:"agreement_id"`
	Product      string `json:"product"`
	MaxFinancing int    `json:"max_financing"`
}

// Installment is one scheduled payment ("cuota")
type Installment struct {
	Sequence int       `json:"sequence"`
	DueDate  time.Time `json:"due_date"`
	Value    int64     `json:"value"`
}

// Plan is the full set of installments for one financed sale. A Plan is owned by a
// single caller; concurrent edits on the same Plan must be serialized by that caller.
type Plan struct {
	ID                       string           `json:"id"`
	Context                  AgreementContext `json:"context"`
	Total                    int64            `json:"total"`
	IsMaxFinancing           bool             `json:"is_max_financing"`
	PreferredAnchorDay       int              `json:"preferred_anchor_day"`
	FirstInstallmentModified bool             `json:"first_installment_modified"`
	FirstInstallmentIsToday  bool             `json:"first_installment_is_today"`
	Today                    time.Time        `json:"today"`
	Installments             []Installment    `json:"installments"`

	// Original is the schedule as built, used to detect modified dates and the
	// minimum first value under max financing.
	Original []Installment `json:"-"`
}

// Count returns the number of installments
func (p *Plan) Count() int {
	return len(p.Installments)
}

// Sum adds up the current installment values
func (p *Plan) Sum() int64 {
	return sumValues(p.Installments)
}

// Clone returns a deep copy of the plan
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Installments = append([]Installment(nil), p.Installments...)
	cp.Original = append([]Installment(nil), p.Original...)
	return &cp
}

// SetToday records the calendar day the plan was built on and whether the
// first installment falls on it.
func (p *Plan) SetToday(today time.Time) {
	p.Today = DateOf(today)
	if len(p.Installments) > 0 {
		p.FirstInstallmentIsToday = SameDay(p.Installments[0].DueDate, p.Today)
	}
}

// Build creates a plan of count installments splitting total without drift.
// Row i is due i months after anchor, on anchor's day clamped to the month length.
// The plan is dated on anchor; callers anchoring on another day use SetToday.
func Build(total int64, count int, anchor time.Time, ctx AgreementContext) (*Plan, error) {
	if count < 1 {
		return nil, validation(-1, "count", "debe ser al menos 1, recibido %d", count)
	}
	if total <= 0 {
		return nil, validation(-1, "total", "debe ser positivo, recibido %d", total)
	}
	if total < int64(count) {
		return nil, validation(-1, "total", "%d no alcanza para %d cuotas de al menos 1", total, count)
	}

	anchor = DateOf(anchor)
	day := anchor.Day()
	values := Split(total, count)

	rows := make([]Installment, count)
	for i := range rows {
		rows[i] = Installment{
			Sequence: i + 1,
			DueDate:  AddMonthsClamped(anchor, i, day),
			Value:    values[i],
		}
	}

	return &Plan{
		ID:                      uuid.New().String(),
		Context:                 ctx,
		Total:                   total,
		IsMaxFinancing:          count == ctx.MaxFinancing,
		PreferredAnchorDay:      day,
		FirstInstallmentIsToday: true,
		Today:                   anchor,
		Installments:            rows,
		Original:                append([]Installment(nil), rows...),
	}, nil
}

// Split divides amount into n integer parts; the first amount%n parts carry one extra unit.
func Split(amount int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := amount / int64(n)
	remainder := amount - base*int64(n)

	out := make([]int64, n)
	for i := range out {
		out[i] = base
		if int64(i) < remainder {
			out[i]++
		}
	}
	return out
}

func sumValues(rows []Installment) int64 {
	var total int64
	for _, r := range rows {
		total += r.Value
	}
	return total
}
