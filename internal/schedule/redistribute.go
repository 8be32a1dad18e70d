package schedule

import "time"

// EditRequest carries the fields a caller wants to change on one installment.
// Nil fields are left untouched.
type EditRequest struct {
	Value   *int64     `json:"value,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// Edit applies req to installment index and redistributes the rest of the plan.
// The edit runs on a copy and is committed only when the sum of values still
// equals the plan total, so on any error p is left exactly as it was.
func Edit(p *Plan, index int, req EditRequest, today time.Time) error {
	if index < 0 || index >= p.Count() {
		return validation(-1, "index", "no existe la cuota %d", index+1)
	}
	if req.Value == nil && req.DueDate == nil {
		return validation(index, "request", "no hay cambios")
	}
	today = DateOf(today)

	capability := Resolve(p, index, today)
	if req.Value != nil && !capability.CanEditValue {
		return violation(index, "value", "el valor no es editable")
	}
	if req.DueDate != nil && !capability.CanEditDate {
		return violation(index, "due_date", "la fecha no es editable")
	}

	next := p.Clone()

	if req.Value != nil {
		if err := applyValue(next, index, *req.Value, capability); err != nil {
			return err
		}
	}
	if req.DueDate != nil {
		if err := applyDate(next, index, DateOf(*req.DueDate), capability); err != nil {
			return err
		}
	}

	if index == 0 {
		next.FirstInstallmentModified = true
	}
	next.FirstInstallmentIsToday = SameDay(next.Installments[0].DueDate, today)

	if err := checkInvariant(next); err != nil {
		return err
	}

	*p = *next
	return nil
}

func applyValue(p *Plan, index int, value int64, c Capability) error {
	if value <= 0 {
		return validation(index, "value", "debe ser positivo, recibido %d", value)
	}

	rows := p.Installments
	last := len(rows) - 1

	if index == last {
		// Nothing downstream can absorb a difference
		if closing := p.Total - sumValues(rows[:last]); value != closing {
			return validation(index, "value", "la última cuota debe ser %d para cerrar el total %d, recibido %d", closing, p.Total, value)
		}
		rows[index].Value = value
		return nil
	}

	if value < c.ValueMin || value > c.ValueMax {
		return validation(index, "value", "debe estar entre %d y %d, recibido %d", c.ValueMin, c.ValueMax, value)
	}

	rows[index].Value = value
	used := sumValues(rows[:index+1])
	remaining := p.Total - used
	downstream := last - index
	if remaining < int64(downstream) {
		return validation(index, "value", "quedan %d para %d cuotas", remaining, downstream)
	}

	for k, v := range Split(remaining, downstream) {
		rows[index+1+k].Value = v
	}
	return nil
}

func applyDate(p *Plan, index int, date time.Time, c Capability) error {
	if date.Before(c.DateMin) || date.After(c.DateMax) {
		return validation(index, "due_date", "debe estar entre %s y %s, recibido %s",
			c.DateMin.Format(time.DateOnly), c.DateMax.Format(time.DateOnly), date.Format(time.DateOnly))
	}

	rows := p.Installments
	rows[index].DueDate = date
	p.PreferredAnchorDay = date.Day()

	for j := index + 1; j < len(rows); j++ {
		rows[j].DueDate = AddMonthsClamped(rows[j-1].DueDate, 1, p.PreferredAnchorDay)

		// Moving the first date must never open a gap wider than a month before the second
		if !p.IsMaxFinancing && index == 0 && j == 1 {
			if limit := EndOfNextMonth(rows[0].DueDate); rows[1].DueDate.After(limit) {
				rows[1].DueDate = limit
			}
		}
	}
	return nil
}

func checkInvariant(p *Plan) error {
	for i, r := range p.Installments {
		if r.Value <= 0 {
			return validation(i, "value", "quedaría en %d", r.Value)
		}
	}
	if sum := p.Sum(); sum != p.Total {
		return validation(-1, "total", "la suma de cuotas %d no coincide con el total %d", sum, p.Total)
	}
	return nil
}
