package entitlement

import "careerguide/internal/model"

// Decide checks meter against its quota. Server-reported usage in the snapshot
// wins when present, and a server item marked not allowed denies even below
// its limit. The local estimate only fills the gap and never yields an
// authoritative decision.
func Decide(snapshot *model.SubscriptionSnapshot, meter model.Meter, local *model.LocalUsageEstimate) model.AccessDecision {
	if item, ok := snapshot.UsageFor(meter); ok {
		if item.Unlimited() {
			return model.AccessDecision{
				Feature:       meter,
				Allowed:       true,
				Authoritative: true,
				Source:        model.SourceUnlimited,
				CurrentUsage:  item.CurrentUsage,
				Limit:         model.Unlimited,
				Remaining:     model.Unlimited,
			}
		}
		d := model.AccessDecision{
			Feature:       meter,
			Allowed:       item.Allowed && item.CurrentUsage < item.Limit,
			Authoritative: true,
			Source:        model.SourceServer,
			CurrentUsage:  item.CurrentUsage,
			Limit:         item.Limit,
			Remaining:     model.Remaining(item.CurrentUsage, item.Limit),
		}
		switch {
		case item.CurrentUsage >= item.Limit:
			d.Reason = "limit_reached"
		case !item.Allowed:
			d.Reason = "not_allowed"
		}
		return d
	}

	if snapshot != nil {
		if limit, ok := snapshot.Limits[string(meter)]; ok && limit == model.Unlimited {
			return model.AccessDecision{
				Feature:       meter,
				Allowed:       true,
				Authoritative: true,
				Source:        model.SourceUnlimited,
				Limit:         model.Unlimited,
				Remaining:     model.Unlimited,
			}
		}
	}

	if local == nil {
		return model.AccessDecision{
			Feature: meter,
			Allowed: true,
			Source:  model.SourceLocalEstimate,
			Limit:   model.Unlimited,
			Reason:  "no_usage_data",
		}
	}
	if local.Unlimited {
		return model.AccessDecision{
			Feature:      meter,
			Allowed:      true,
			Source:       model.SourceUnlimited,
			CurrentUsage: local.Count,
			Limit:        model.Unlimited,
			Remaining:    model.Unlimited,
		}
	}
	d := model.AccessDecision{
		Feature:      meter,
		Allowed:      local.Count < local.Limit,
		Source:       model.SourceLocalEstimate,
		CurrentUsage: local.Count,
		Limit:        local.Limit,
		Remaining:    model.Remaining(local.Count, local.Limit),
	}
	if !d.Allowed {
		d.Reason = "estimated_limit_reached"
	}
	return d
}
