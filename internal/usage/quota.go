package usage

import "careerguide/internal/model"

// tierQuotas maps each tier to its monthly quota per meter. model.Unlimited
// means unconstrained. This table is separate from the feature matrix.
var tierQuotas = map[model.Tier]map[model.Meter]int{
	model.TierFree: {
		model.MeterAssessment:   5,
		model.MeterCareerView:   10,
		model.MeterRoadmapLevel: 1,
	},
	model.TierBasic: {
		model.MeterAssessment:   20,
		model.MeterCareerView:   50,
		model.MeterRoadmapLevel: 3,
	},
	model.TierPremium: {
		model.MeterAssessment:   model.Unlimited,
		model.MeterCareerView:   model.Unlimited,
		model.MeterRoadmapLevel: model.Unlimited,
	},
	model.TierPro: {
		model.MeterAssessment:   model.Unlimited,
		model.MeterCareerView:   model.Unlimited,
		model.MeterRoadmapLevel: model.Unlimited,
	},
}

// Meters lists the metered features in display order.
func Meters() []model.Meter {
	return []model.Meter{model.MeterAssessment, model.MeterCareerView, model.MeterRoadmapLevel}
}

// IsMeter reports whether m is a known metered feature.
func IsMeter(m model.Meter) bool {
	_, ok := tierQuotas[model.TierFree][m]
	return ok
}

// QuotaFor returns the monthly quota of meter for tier. Unknown tiers get the
// free quota; unknown meters report false.
func QuotaFor(tier model.Tier, meter model.Meter) (int, bool) {
	quotas, ok := tierQuotas[tier]
	if !ok {
		quotas = tierQuotas[model.TierFree]
	}
	limit, ok := quotas[meter]
	return limit, ok
}
