package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and gradual rollouts.
// Supports per-learner targeting and percentage-based experiments.
//
// Philosophy alignment: the app must stay calm and predictable for kids
// - Sync behavior changes roll out gradually, never all at once
// - Analytics extras can be tested on a fraction of learners
// - Anything that could lose progress ships behind a flag first
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Users are assigned based on hash of their ID
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID  string // Learner ID
	IsAdmin bool   // Is admin user
}

// Predefined feature flag names.
const (
	// === Sync Features ===
	FeatureSyncPriorityDrain = "sync.priority_drain" // Quiz results drain first
	FeatureSyncEventBus      = "sync.event_bus"      // Cross-process pulse via Redis
	FeatureSyncPeriodicDrain = "sync.periodic_drain" // Background drain timer
	FeatureSyncStaleAlerts   = "sync.stale_alerts"   // Warn about aging queues

	// === Analytics Features ===
	FeatureAnalyticsBreakdown       = "analytics.module_breakdown" // Per-module completion stats
	FeatureAnalyticsRecommendations = "analytics.recommendations"  // "Continue here" suggestions
	FeatureAnalyticsValidation      = "analytics.validation"       // Ghost-entry detection

	// === Server Features ===
	FeatureServerIntegritySweep = "server.integrity_sweep" // Recompute stored aggregates
	FeatureServerAdminAPI       = "server.admin_api"       // Maintenance endpoints

	// === Agent Features ===
	FeatureAgentProfileCache = "agent.profile_cache" // Redis read-through cache

	// === Experimental Features ===
	FeatureExperimentalStreaks = "experimental.streaks" // Daily streak tracking
	FeatureExperimentalBadges  = "experimental.badges"  // Achievement badges
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Sync features - core behavior, enabled by default
	ff.features[FeatureSyncPriorityDrain] = &Feature{
		Name:           FeatureSyncPriorityDrain,
		Description:    "Drain quiz results before lesson completions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSyncEventBus] = &Feature{
		Name:           FeatureSyncEventBus,
		Description:    "Publish sync pulses to sibling processes",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSyncPeriodicDrain] = &Feature{
		Name:           FeatureSyncPeriodicDrain,
		Description:    "Drain the pending queue on a timer",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSyncStaleAlerts] = &Feature{
		Name:           FeatureSyncStaleAlerts,
		Description:    "Alert when pending updates sit too long",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Analytics features
	ff.features[FeatureAnalyticsBreakdown] = &Feature{
		Name:           FeatureAnalyticsBreakdown,
		Description:    "Per-module completion breakdown",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAnalyticsRecommendations] = &Feature{
		Name:           FeatureAnalyticsRecommendations,
		Description:    "Next-content recommendations on the dashboard",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureAnalyticsValidation] = &Feature{
		Name:           FeatureAnalyticsValidation,
		Description:    "Flag progress entries missing from the curriculum",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Server features
	ff.features[FeatureServerIntegritySweep] = &Feature{
		Name:           FeatureServerIntegritySweep,
		Description:    "Nightly recompute of profile aggregates",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureServerAdminAPI] = &Feature{
		Name:           FeatureServerAdminAPI,
		Description:    "Admin maintenance endpoints",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Agent features
	ff.features[FeatureAgentProfileCache] = &Feature{
		Name:           FeatureAgentProfileCache,
		Description:    "Cache fetched profiles in Redis between refreshes",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalStreaks] = &Feature{
		Name:           FeatureExperimentalStreaks,
		Description:    "Daily learning streaks",
		Enabled:        false, // Phase 2
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalBadges] = &Feature{
		Name:           FeatureExperimentalBadges,
		Description:    "Achievement badges",
		Enabled:        false, // Phase 2
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_SYNC_PRIORITY_DRAIN=true
// Example: FEATURE_ANALYTICS_RECOMMENDATIONS=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "sync.priority_drain" -> "FEATURE_SYNC_PRIORITY_DRAIN"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check user overrides first
	if ctx != nil && ctx.UserID != "" {
		if userOverrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := userOverrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return ff.isInRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a user is in the rollout percentage.
// Uses consistent hashing so users stay in their bucket.
func (ff *FeatureFlags) isInRollout(userID, featureName string, percent int) bool {
	// Create a consistent hash for this user+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a user.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok || !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	if len(feature.Variants) == 0 {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.UserID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// SyncExtrasEnabled checks if any optional sync behavior is enabled.
func (ff *FeatureFlags) SyncExtrasEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureSyncEventBus, ctx) ||
		ff.IsEnabled(FeatureSyncPeriodicDrain, ctx) ||
		ff.IsEnabled(FeatureSyncStaleAlerts, ctx)
}

// AnalyticsEnabled checks if any analytics surface is enabled.
func (ff *FeatureFlags) AnalyticsEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureAnalyticsBreakdown, ctx) ||
		ff.IsEnabled(FeatureAnalyticsRecommendations, ctx) ||
		ff.IsEnabled(FeatureAnalyticsValidation, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
