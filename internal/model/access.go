package model

// UsageSource tells where an access decision got its usage figures.
type UsageSource string

const (
	SourceServer        UsageSource = "server"
	SourceLocalEstimate UsageSource = "local_estimate"
	SourceUnlimited     UsageSource = "unlimited"
)

// AccessDecision is the outcome of checking a meter against its quota.
// Authoritative is true only when the decision rests on server-reported usage.
type AccessDecision struct {
	Feature       Meter       `json:"feature"`
	Allowed       bool        `json:"allowed"`
	Authoritative bool        `json:"authoritative"`
	Source        UsageSource `json:"source"`
	CurrentUsage  int         `json:"current_usage"`
	Limit         int         `json:"limit"`
	Remaining     int         `json:"remaining"`
	Reason        string      `json:"reason,omitempty"`
}

// RemoteAccessCheck is the backend's answer to a one-off check-access call.
type RemoteAccessCheck struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	CurrentUsage *int   `json:"current_usage,omitempty"`
	Limit        *int   `json:"limit,omitempty"`
}

// FeatureCheck answers whether a user's tier includes a feature and what
// they would need to upgrade to.
type FeatureCheck struct {
	Feature      Feature `json:"feature"`
	HasAccess    bool    `json:"has_access"`
	CurrentTier  Tier    `json:"current_tier"`
	RequiredTier Tier    `json:"required_tier,omitempty"`
	CanUpgrade   bool    `json:"can_upgrade"`
}
