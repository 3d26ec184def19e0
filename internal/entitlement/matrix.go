// Package entitlement decides what a user's subscription tier grants: the
// static feature matrix, plan-name to tier mapping, quota decisions and the
// per-user cache of backend-reported subscription snapshots.
package entitlement

import "careerguide/internal/model"

// Feature flags gated by tier.
const (
	// Free tier features
	FeatureBigFiveAssessment model.Feature = "big_five_assessment"
	FeatureRIASECAssessment  model.Feature = "riasec_assessment"
	FeatureCareerBrowse      model.Feature = "career_browse"

	// Basic tier features (everything in Free, plus:)
	FeatureCareerDetails  model.Feature = "career_details"
	FeatureBasicReport    model.Feature = "basic_report"
	FeatureRoadmapPreview model.Feature = "roadmap_preview"

	// Premium tier features (everything in Basic, plus:)
	FeatureFullReport            model.Feature = "full_report"
	FeatureCareerRecommendations model.Feature = "career_recommendations"
	FeatureRoadmapFull           model.Feature = "roadmap_full"
	FeatureReportExport          model.Feature = "report_export"

	// Pro tier features (everything in Premium, plus:)
	FeatureCareerComparison  model.Feature = "career_comparison"
	FeatureAdvancedAnalytics model.Feature = "advanced_analytics"
	FeaturePrioritySupport   model.Feature = "priority_support"
)

var freeFeatures = []model.Feature{
	FeatureBigFiveAssessment,
	FeatureRIASECAssessment,
	FeatureCareerBrowse,
}

var basicFeatures = appendFeatures(freeFeatures,
	FeatureCareerDetails,
	FeatureBasicReport,
	FeatureRoadmapPreview,
)

var premiumFeatures = appendFeatures(basicFeatures,
	FeatureFullReport,
	FeatureCareerRecommendations,
	FeatureRoadmapFull,
	FeatureReportExport,
)

var proFeatures = appendFeatures(premiumFeatures,
	FeatureCareerComparison,
	FeatureAdvancedAnalytics,
	FeaturePrioritySupport,
)

// appendFeatures returns a new slice with extra features appended (no mutation).
func appendFeatures(base []model.Feature, extra ...model.Feature) []model.Feature {
	result := make([]model.Feature, len(base), len(base)+len(extra))
	copy(result, base)
	return append(result, extra...)
}

type tierDefinition struct {
	tier     model.Tier
	features []model.Feature
}

// tierDefinitions is the feature matrix in declaration order. RequiredTierFor
// depends on this order.
var tierDefinitions = []tierDefinition{
	{tier: model.TierFree, features: freeFeatures},
	{tier: model.TierBasic, features: basicFeatures},
	{tier: model.TierPremium, features: premiumFeatures},
	{tier: model.TierPro, features: proFeatures},
}

// tierHierarchy is the fixed upgrade order.
var tierHierarchy = []model.Tier{model.TierFree, model.TierBasic, model.TierPremium, model.TierPro}

// Tiers returns the tiers from lowest to highest.
func Tiers() []model.Tier {
	return append([]model.Tier(nil), tierHierarchy...)
}

// TierRank returns the tier's position in the hierarchy, or -1 if unknown.
func TierRank(tier model.Tier) int {
	for i, t := range tierHierarchy {
		if t == tier {
			return i
		}
	}
	return -1
}

// TierFeatures returns a copy of the features enabled for tier; nil if unknown.
func TierFeatures(tier model.Tier) []model.Feature {
	for _, def := range tierDefinitions {
		if def.tier == tier {
			return append([]model.Feature(nil), def.features...)
		}
	}
	return nil
}

// HasFeature checks if a tier includes a specific feature.
func HasFeature(tier model.Tier, feature model.Feature) bool {
	for _, def := range tierDefinitions {
		if def.tier != tier {
			continue
		}
		for _, f := range def.features {
			if f == feature {
				return true
			}
		}
		return false
	}
	return false
}

// RequiredTierFor returns the first tier, in table declaration order, whose
// feature set contains feature. The scan is first-match, not a minimum search.
func RequiredTierFor(feature model.Feature) (model.Tier, bool) {
	for _, def := range tierDefinitions {
		for _, f := range def.features {
			if f == feature {
				return def.tier, true
			}
		}
	}
	return "", false
}

// CanUpgradeTo reports whether target sits strictly above current.
func CanUpgradeTo(current, target model.Tier) bool {
	cur, tgt := TierRank(current), TierRank(target)
	if cur < 0 || tgt < 0 {
		return false
	}
	return tgt > cur
}

// FeatureAccess returns the access result for tier.
func FeatureAccess(tier model.Tier) model.FeatureAccessResult {
	features := TierFeatures(tier)
	if features == nil {
		features = []model.Feature{}
	}
	return model.FeatureAccessResult{CurrentPlanTier: tier, EnabledFeatures: features}
}

// TierDisplayName returns a human-readable name for the tier.
func TierDisplayName(tier model.Tier) string {
	switch tier {
	case model.TierFree:
		return "Free"
	case model.TierBasic:
		return "Basic"
	case model.TierPremium:
		return "Premium"
	case model.TierPro:
		return "Pro"
	default:
		return string(tier)
	}
}
