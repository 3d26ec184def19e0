package model

import "time"

// Tier is a named subscription level. Tiers form a total order:
// free < basic < premium < pro.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Feature is a gated feature flag granted by a tier.
type Feature string

// Meter is a metered feature with a numeric monthly quota.
type Meter string

const (
	MeterAssessment   Meter = "assessment"
	MeterCareerView   Meter = "career_view"
	MeterRoadmapLevel Meter = "roadmap_level"
)

// Unlimited is the limit value the backend uses for unconstrained quotas.
const Unlimited = -1

// SubscriptionSnapshot is the subscription/usage state reported by the backend
// at a point in time. A snapshot is never mutated after it is stored; refreshes
// replace it wholesale.
type SubscriptionSnapshot struct {
	PlanName  string         `json:"plan_name"`
	IsPremium bool           `json:"is_premium"`
	Status    string         `json:"status"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Limits    map[string]int `json:"limits"`
	Usage     []ServerUsage  `json:"usage"`
}

// ServerUsage is the authoritative, server-reported usage of one meter.
type ServerUsage struct {
	Feature      Meter `json:"feature"`
	CurrentUsage int   `json:"current_usage"`
	Limit        int   `json:"limit"`
	Remaining    int   `json:"remaining"`
	Allowed      bool  `json:"allowed"`
}

// Unlimited reports whether the meter carries the unlimited sentinel.
func (u ServerUsage) Unlimited() bool {
	return u.Limit == Unlimited
}

// UsageFor returns the server usage item for the given meter.
func (s *SubscriptionSnapshot) UsageFor(m Meter) (ServerUsage, bool) {
	if s == nil {
		return ServerUsage{}, false
	}
	for _, item := range s.Usage {
		if item.Feature == m {
			return item, true
		}
	}
	return ServerUsage{}, false
}

// Clone returns a deep copy so callers cannot reach into cached state.
func (s *SubscriptionSnapshot) Clone() *SubscriptionSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	if s.Limits != nil {
		c.Limits = make(map[string]int, len(s.Limits))
		for k, v := range s.Limits {
			c.Limits[k] = v
		}
	}
	if s.Usage != nil {
		c.Usage = append([]ServerUsage(nil), s.Usage...)
	}
	return &c
}

// Remaining computes max(0, limit-usage). For the unlimited sentinel the
// result is Unlimited and must not be used to gate anything.
func Remaining(usage, limit int) int {
	if limit < 0 {
		return Unlimited
	}
	return max(0, limit-usage)
}

// FeatureAccessResult is the tier derived from a snapshot and the features it enables.
type FeatureAccessResult struct {
	CurrentPlanTier Tier      `json:"current_plan_tier"`
	EnabledFeatures []Feature `json:"enabled_features"`
}
