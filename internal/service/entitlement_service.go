package service

import (
	"context"
	"errors"
	"fmt"

	"careerguide/internal/entitlement"
	"careerguide/internal/model"
	"careerguide/internal/pubsub"
	"careerguide/internal/usage"

	"github.com/rs/zerolog"
)

// ErrUnknownFeature is returned for a feature name the matrix does not know.
var ErrUnknownFeature = errors.New("unknown feature")

// AccessChecker performs one-off access checks against the backend.
type AccessChecker interface {
	CheckAccess(ctx context.Context, token, feature string, level *int) (*model.RemoteAccessCheck, error)
}

// EntitlementService exposes a user's entitlements, local usage estimates and
// access decisions.
type EntitlementService interface {
	State(ctx context.Context, userID, token string, force bool) entitlement.State
	Refresh(ctx context.Context, userID, token string) entitlement.State
	Feature(ctx context.Context, userID, token string, feature model.Feature) (model.FeatureCheck, error)
	Usage(ctx context.Context, userID, token string, meter model.Meter) (model.LocalUsageEstimate, error)
	UsageSummary(ctx context.Context, userID, token string) (model.Tier, []model.LocalUsageEstimate, error)
	RecordUsage(ctx context.Context, userID, token string, meter model.Meter) (model.LocalUsageEstimate, error)
	Decide(ctx context.Context, userID, token string, meter model.Meter) (model.AccessDecision, error)
	CheckAccess(ctx context.Context, token, feature string, level *int) (*model.RemoteAccessCheck, error)
	Forget(userID string)
}

type entitlementService struct {
	registry  *entitlement.Registry
	tracker   *usage.Tracker
	checker   AccessChecker
	publisher pubsub.Publisher
	logger    zerolog.Logger
}

// NewEntitlementService creates a new EntitlementService with a scoped logger.
func NewEntitlementService(registry *entitlement.Registry, tracker *usage.Tracker, checker AccessChecker, publisher pubsub.Publisher, logger zerolog.Logger) EntitlementService {
	return &entitlementService{
		registry:  registry,
		tracker:   tracker,
		checker:   checker,
		publisher: publisher,
		logger:    logger.With().Str("service", "EntitlementService").Logger(),
	}
}

// State fetches if needed and returns the user's cache state. Fetch failures
// are reported through State.Err, not as an error.
func (s *entitlementService) State(ctx context.Context, userID, token string, force bool) entitlement.State {
	c := s.registry.For(userID, token)
	if err := c.Fetch(ctx, force); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Entitlement fetch failed")
	}
	return c.State()
}

// Refresh drops the user's snapshot, refetches it and tells other instances to
// do the same.
func (s *entitlementService) Refresh(ctx context.Context, userID, token string) entitlement.State {
	c := s.registry.For(userID, token)
	if err := s.registry.Refresh(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("Entitlement refresh failed")
	}
	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, pubsub.NewEvent(pubsub.SubscriptionUpdated, userID)); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to publish subscription-updated")
		}
	}
	return c.State()
}

func (s *entitlementService) Feature(ctx context.Context, userID, token string, feature model.Feature) (model.FeatureCheck, error) {
	required, ok := entitlement.RequiredTierFor(feature)
	if !ok {
		return model.FeatureCheck{}, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	tier := s.State(ctx, userID, token, false).Tier()
	return model.FeatureCheck{
		Feature:      feature,
		HasAccess:    entitlement.HasFeature(tier, feature),
		CurrentTier:  tier,
		RequiredTier: required,
		CanUpgrade:   entitlement.CanUpgradeTo(tier, required),
	}, nil
}

func (s *entitlementService) Usage(ctx context.Context, userID, token string, meter model.Meter) (model.LocalUsageEstimate, error) {
	tier := s.State(ctx, userID, token, false).Tier()
	return s.tracker.CurrentUsage(ctx, userID, meter, tier)
}

func (s *entitlementService) UsageSummary(ctx context.Context, userID, token string) (model.Tier, []model.LocalUsageEstimate, error) {
	tier := s.State(ctx, userID, token, false).Tier()
	items, err := s.tracker.Summary(ctx, userID, tier)
	if err != nil {
		return tier, nil, err
	}
	return tier, items, nil
}

func (s *entitlementService) RecordUsage(ctx context.Context, userID, token string, meter model.Meter) (model.LocalUsageEstimate, error) {
	tier := s.State(ctx, userID, token, false).Tier()
	est, err := s.tracker.RecordUsage(ctx, userID, meter, tier)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("feature", string(meter)).Msg("Failed to record usage")
		return model.LocalUsageEstimate{}, err
	}
	return est, nil
}

// Decide prefers server-reported usage and falls back to the local estimate.
func (s *entitlementService) Decide(ctx context.Context, userID, token string, meter model.Meter) (model.AccessDecision, error) {
	state := s.State(ctx, userID, token, false)
	local, err := s.tracker.CurrentUsage(ctx, userID, meter, state.Tier())
	if err != nil {
		return model.AccessDecision{}, err
	}
	return entitlement.Decide(state.Snapshot, meter, &local), nil
}

func (s *entitlementService) CheckAccess(ctx context.Context, token, feature string, level *int) (*model.RemoteAccessCheck, error) {
	res, err := s.checker.CheckAccess(ctx, token, feature, level)
	if err != nil {
		s.logger.Error().Err(err).Str("feature", feature).Msg("Remote access check failed")
		return nil, err
	}
	return res, nil
}

func (s *entitlementService) Forget(userID string) {
	s.registry.Forget(userID)
}
