package services

import (
	"sync"
	"time"

	"github.com/sjperalta/fintera-cuotas/internal/schedule"
)

// PlanStore keeps plans being edited, keyed by plan ID. Each plan has its own
// lock so edits to one plan are applied one at a time in arrival order.
type PlanStore struct {
	mu    sync.Mutex
	plans map[string]*planEntry
	ttl   time.Duration
	now   func() time.Time
}

type planEntry struct {
	mu          sync.Mutex
	plan        *schedule.Plan
	agreementID string
	touched     time.Time
}

// NewPlanStore creates a store that forgets plans idle for longer than ttl
func NewPlanStore(ttl time.Duration) *PlanStore {
	return &PlanStore{
		plans: make(map[string]*planEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Put stores plan under its ID
func (s *PlanStore) Put(plan *schedule.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = &planEntry{plan: plan, agreementID: plan.Context.AgreementID, touched: s.now()}
}

// Get returns a copy of the plan
func (s *PlanStore) Get(id string) (*schedule.Plan, error) {
	var out *schedule.Plan
	err := s.With(id, func(p *schedule.Plan) error {
		out = p.Clone()
		return nil
	})
	return out, err
}

// With runs fn while holding the plan's lock. fn may mutate the plan.
func (s *PlanStore) With(id string, fn func(*schedule.Plan) error) error {
	s.mu.Lock()
	entry, ok := s.plans[id]
	if ok && s.expired(entry) {
		delete(s.plans, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return ErrPlanNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	s.mu.Lock()
	entry.touched = s.now()
	s.mu.Unlock()

	return fn(entry.plan)
}

// Delete forgets a plan
func (s *PlanStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.plans, id)
}

// DeleteAgreement forgets every plan of an agreement except keepID
func (s *PlanStore) DeleteAgreement(agreementID, keepID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.plans {
		if id != keepID && entry.agreementID == agreementID {
			delete(s.plans, id)
			removed++
		}
	}
	return removed
}

// Evict removes idle plans and returns how many were dropped
func (s *PlanStore) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.plans {
		if s.expired(entry) {
			delete(s.plans, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored plans
func (s *PlanStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plans)
}

func (s *PlanStore) expired(entry *planEntry) bool {
	return s.ttl > 0 && s.now().Sub(entry.touched) > s.ttl
}
