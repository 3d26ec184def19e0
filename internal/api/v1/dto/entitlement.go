package dto

import (
	"time"

	"careerguide/internal/model"
)

// EntitlementResponseDTO is the user's cached subscription state.
type EntitlementResponseDTO struct {
	PlanName        string                      `json:"plan_name,omitempty"`
	Tier            model.Tier                  `json:"tier"`
	TierDisplayName string                      `json:"tier_display_name"`
	IsPremium       bool                        `json:"is_premium"`
	PremiumSignals  PremiumSignalsDTO           `json:"premium_signals"`
	EnabledFeatures []model.Feature             `json:"enabled_features"`
	Subscription    *model.SubscriptionSnapshot `json:"subscription,omitempty"`
	FetchedAt       *time.Time                  `json:"fetched_at,omitempty"`
	Loading         bool                        `json:"loading"`
	Error           string                      `json:"error,omitempty"`
}

// PremiumSignalsDTO shows both inputs to the premium decision.
type PremiumSignalsDTO struct {
	ServerFlag     bool `json:"server_flag"`
	PlanName       bool `json:"plan_name"`
	Disagree       bool `json:"disagree"`
	PlanRecognized bool `json:"plan_recognized"`
}

// AccessCheckRequestDTO asks the backend whether a feature can be used now.
type AccessCheckRequestDTO struct {
	FeatureType string `json:"feature_type" validate:"required,max=64"`
	Level       *int   `json:"level,omitempty" validate:"omitempty,min=1"`
}

// UsageSummaryDTO lists the local estimates for every metered feature.
type UsageSummaryDTO struct {
	Tier  model.Tier                 `json:"tier"`
	Items []model.LocalUsageEstimate `json:"items"`
}
