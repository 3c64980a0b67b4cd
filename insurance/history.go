package insurance

import (
	"context"
	"fmt"
	"sort"
)

// HistoryAggregator merges a car's policy lifecycle events and claims into
// one chronological timeline.
type HistoryAggregator struct {
	Cars     CarStore
	Policies PolicyStore
	Claims   ClaimStore
}

// NewHistoryAggregator creates an aggregator over the given stores.
func NewHistoryAggregator(cars CarStore, policies PolicyStore, claims ClaimStore) *HistoryAggregator {
	return &HistoryAggregator{Cars: cars, Policies: policies, Claims: claims}
}

// History returns the car's events sorted ascending by date. Each policy
// contributes a policy_start and a policy_end event, each claim one claim
// event. The sort is stable and keyed on date only, so same-date events keep
// insertion order: policy events in policy-row order, then claims in
// claim-row order. Returns ErrCarNotFound if the car does not exist.
func (h *HistoryAggregator) History(ctx context.Context, carID int64) ([]HistoryEvent, error) {
	exists, err := h.Cars.CarExists(ctx, carID)
	if err != nil {
		return nil, fmt.Errorf("checking car %d: %w", carID, err)
	}
	if !exists {
		return nil, fmt.Errorf("car %d: %w", carID, ErrCarNotFound)
	}

	policies, err := h.Policies.PoliciesByCar(ctx, carID)
	if err != nil {
		return nil, fmt.Errorf("loading policies for car %d: %w", carID, err)
	}
	claims, err := h.Claims.ClaimsByCar(ctx, carID)
	if err != nil {
		return nil, fmt.Errorf("loading claims for car %d: %w", carID, err)
	}

	events := make([]HistoryEvent, 0, 2*len(policies)+len(claims))
	for _, p := range policies {
		events = append(events, HistoryEvent{
			Kind:        EventPolicyStart,
			Date:        p.StartDate,
			Label:       p.Provider,
			Description: fmt.Sprintf("Policy started (%s)", p.Provider),
		})
		events = append(events, HistoryEvent{
			Kind:        EventPolicyEnd,
			Date:        p.EndDate,
			Label:       p.Provider,
			Description: fmt.Sprintf("Policy ended (%s)", p.Provider),
		})
	}
	for _, c := range claims {
		events = append(events, HistoryEvent{
			Kind:        EventClaim,
			Date:        c.ClaimDate,
			Description: fmt.Sprintf("%s | %s", c.Description, c.Amount.StringFixed(2)),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})

	return events, nil
}
