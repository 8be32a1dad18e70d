package schedule

import "time"

// Capability says which fields of one installment may be edited right now, and
// within which bounds. Bounds are inclusive and only meaningful when the
// matching Can* flag is set.
type Capability struct {
	Index        int       `json:"index"`
	CanEditDate  bool      `json:"can_edit_date"`
	CanEditValue bool      `json:"can_edit_value"`
	DateMin      time.Time `json:"date_min,omitempty"`
	DateMax      time.Time `json:"date_max,omitempty"`
	ValueMin     int64     `json:"value_min,omitempty"`
	ValueMax     int64     `json:"value_max,omitempty"`
}

// ResolveAll returns the capability of every installment in plan order.
func ResolveAll(p *Plan, today time.Time) []Capability {
	caps := make([]Capability, p.Count())
	for i := range caps {
		caps[i] = Resolve(p, i, today)
	}
	return caps
}

// Resolve decides what may be edited on installment index under the plan's
// financing regime. It never mutates the plan.
func Resolve(p *Plan, index int, today time.Time) Capability {
	c := Capability{Index: index}
	if index < 0 || index >= p.Count() {
		return c
	}
	today = DateOf(today)

	if p.IsMaxFinancing {
		return resolveMaxFinancing(p, c)
	}
	return resolvePartial(p, c, today)
}

// Under max financing only the second date and the first value (upwards) move.
func resolveMaxFinancing(p *Plan, c Capability) Capability {
	first := p.Installments[0]
	switch c.Index {
	case 0:
		c.CanEditValue = true
		c.ValueMin = p.Original[0].Value
		c.ValueMax = p.Total - int64(p.Count()-1)
	case 1:
		c.CanEditDate = true
		c.DateMin = first.DueDate
		c.DateMax = EndOfNextMonth(first.DueDate)
	}
	return c
}

func resolvePartial(p *Plan, c Capability, today time.Time) Capability {
	i := c.Index

	if i == 0 {
		c.CanEditDate = true
		c.DateMin = today
		c.DateMax = AddMonthsClamped(today, 1, today.Day())
	} else if sequenceUnlocked(p, i, today) {
		prev := p.Installments[i-1].DueDate
		c.CanEditDate = true
		c.DateMin = prev.AddDate(0, 0, 1)
		c.DateMax = EndOfNextMonth(prev)
	}

	// Everything before i is fixed; everything after needs at least one unit each
	before := sumValues(p.Installments[:i])
	after := int64(p.Count() - 1 - i)
	max := p.Total - before - after
	if max >= 1 {
		c.CanEditValue = true
		c.ValueMin = 1
		c.ValueMax = max
		if i == p.Count()-1 {
			c.ValueMin = max
		}
	}
	return c
}

// sequenceUnlocked reports whether later dates are still open: every row before
// index keeps its generated due date and the first row is still dated today.
func sequenceUnlocked(p *Plan, index int, today time.Time) bool {
	if !SameDay(p.Installments[0].DueDate, today) {
		return false
	}
	for j := 0; j < index; j++ {
		if !SameDay(p.Installments[j].DueDate, p.Original[j].DueDate) {
			return false
		}
	}
	return true
}
