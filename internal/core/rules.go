package core

import (
	"context"
	"fmt"

	"materialtracker/pkg/domain"
)

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds an engine with the built-in rule set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewUniqueRequestIDRule())
	engine.Register(NewOverSupplyRule())
	return engine
}

// NewUniqueRequestIDRule blocks any transaction that leaves a created or
// updated request sharing its id with another request.
func NewUniqueRequestIDRule() domain.Rule {
	return uniqueRequestIDRule{}
}

type uniqueRequestIDRule struct{}

func (uniqueRequestIDRule) Name() string { return "unique_request_id" }

func (r uniqueRequestIDRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	counts := make(map[string]int)
	for _, req := range view.ListRequests() {
		counts[req.ID]++
	}
	res := domain.Result{}
	reported := make(map[string]bool)
	for _, change := range changes {
		after, ok := change.After.(domain.Request)
		if !ok || reported[after.ID] {
			continue
		}
		if counts[after.ID] > 1 {
			reported[after.ID] = true
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request id %s is used by %d requests", after.ID, counts[after.ID]),
				Entity:   domain.EntityRequest,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// NewOverSupplyRule warns when a delivery pushes a line item past its
// requested quantity. Over-supply is allowed; the warning is advisory.
func NewOverSupplyRule() domain.Rule {
	return overSupplyRule{}
}

type overSupplyRule struct{}

func (overSupplyRule) Name() string { return "over_supply" }

func (r overSupplyRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityDelivery {
			continue
		}
		before, _ := change.Before.(domain.Request)
		after, ok := change.After.(domain.Request)
		if !ok {
			continue
		}
		for i, item := range after.Items {
			if i < len(before.Items) && len(before.Items[i].Supplied) == len(item.Supplied) {
				continue
			}
			if item.Status() != domain.StatusSuppliedMore {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				Message: fmt.Sprintf("request %s item %d (%s) supplied %d of %d %s requested",
					after.ID, i, item.Material, item.SuppliedTotal(), item.RequestedQty, item.Unit),
				Entity:   domain.EntityDelivery,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
