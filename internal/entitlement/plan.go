package entitlement

import (
	"strings"

	"careerguide/internal/model"
)

// PlanSignals is the tier and premium status derived from a snapshot, along
// with the two premium signals it was derived from.
type PlanSignals struct {
	Tier        model.Tier
	Recognized  bool
	FlagPremium bool
	NamePremium bool
}

// IsPremium merges the server flag and the plan-name heuristic.
func (p PlanSignals) IsPremium() bool {
	return p.FlagPremium || p.NamePremium
}

// Disagree reports whether the server flag and the plan name tell different stories.
func (p PlanSignals) Disagree() bool {
	return p.FlagPremium != p.NamePremium
}

func normalizePlanName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", " ", "_", " ").Replace(n)
	return strings.Join(strings.Fields(n), " ")
}

// knownPlanTier maps a plan name to a tier by whole-word match. Free and
// basic words take precedence over premium ones. The second result is
// false when nothing matched.
func knownPlanTier(name string) (model.Tier, bool) {
	n := normalizePlanName(name)
	if n == "" {
		return "", false
	}
	words := make(map[string]struct{})
	for _, w := range strings.Fields(n) {
		words[w] = struct{}{}
	}
	has := func(candidates ...string) bool {
		for _, c := range candidates {
			if _, ok := words[c]; ok {
				return true
			}
		}
		return false
	}
	switch {
	case has("free"):
		return model.TierFree, true
	case has("basic"):
		return model.TierBasic, true
	case has("pro", "professional", "enterprise"):
		return model.TierPro, true
	case has("premium"):
		return model.TierPremium, true
	default:
		return "", false
	}
}

// IsPremiumPlanName reports whether the plan name matches a known premium tier.
func IsPremiumPlanName(name string) bool {
	tier, ok := knownPlanTier(name)
	return ok && (tier == model.TierPremium || tier == model.TierPro)
}

// TierForPlan maps a plan name to a tier. Unrecognised names fall back to
// basic when the server says the user is premium, otherwise free.
func TierForPlan(planName string, premiumFlag bool) model.Tier {
	if tier, ok := knownPlanTier(planName); ok {
		return tier
	}
	if premiumFlag {
		return model.TierBasic
	}
	return model.TierFree
}

// ResolvePlan derives plan signals from a snapshot. A nil snapshot resolves to free.
func ResolvePlan(s *model.SubscriptionSnapshot) PlanSignals {
	if s == nil {
		return PlanSignals{Tier: model.TierFree}
	}
	_, recognized := knownPlanTier(s.PlanName)
	return PlanSignals{
		Tier:        TierForPlan(s.PlanName, s.IsPremium),
		Recognized:  recognized,
		FlagPremium: s.IsPremium,
		NamePremium: IsPremiumPlanName(s.PlanName),
	}
}
