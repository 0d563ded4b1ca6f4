package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags toggles optional sinks and API surfaces.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Predefined feature flag names.
const (
	// === Event sinks ===
	FeatureSinkLog           = "sink.log"            // log every transition
	FeatureSinkHomeAssistant = "sink.home_assistant" // fire HA bus events (needs HA_URL)
	FeatureSinkRedis         = "sink.redis"          // publish to Redis Pub/Sub

	// === Snapshot ===
	FeatureSnapshotCache = "snapshot.redis_cache" // keep the last snapshot in Redis

	// === API ===
	FeatureAPIPollTrigger = "api.poll_trigger" // POST /api/v1/poll
)

var featureDefaults = []Feature{
	{Name: FeatureSinkLog, Description: "Log every homework transition", Enabled: true},
	{Name: FeatureSinkHomeAssistant, Description: "Fire canvas_homework_* events on the Home Assistant bus", Enabled: true},
	{Name: FeatureSinkRedis, Description: "Publish homework events to Redis Pub/Sub", Enabled: false},
	{Name: FeatureSnapshotCache, Description: "Cache the last Canvas snapshot in Redis", Enabled: false},
	{Name: FeatureAPIPollTrigger, Description: "Allow manual poll cycles over HTTP", Enabled: true},
}

// LoadFeatureFlags builds flags from defaults, then overrides (from the
// config file), then FEATURE_* environment variables.
func LoadFeatureFlags(overrides map[string]bool) *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature, len(featureDefaults))}

	for _, f := range featureDefaults {
		f := f
		ff.features[f.Name] = &f
	}
	for name, enabled := range overrides {
		if f, ok := ff.features[name]; ok {
			f.Enabled = enabled
		}
	}
	ff.loadFromEnvironment()

	return ff
}

// loadFromEnvironment applies FEATURE_SINK_REDIS=true style overrides.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, f := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			f.Enabled = b
		}
	}
}

// featureNameToEnvKey converts "sink.home_assistant" to "FEATURE_SINK_HOME_ASSISTANT".
func featureNameToEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled reports whether the feature is on. Unknown features and a nil
// receiver report false.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[featureName]
	return ok && f.Enabled
}

// EnableFeature turns a feature on.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.set(featureName, true)
}

// DisableFeature turns a feature off.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.set(featureName, false)
}

func (ff *FeatureFlags) set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	f, ok := ff.features[featureName]
	if !ok {
		return &FeatureFlagError{Feature: featureName, Message: "feature not found"}
	}
	f.Enabled = enabled
	return nil
}

// GetAllFeatures returns a copy of all features sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FeatureFlagError represents an error related to feature flags.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return fmt.Sprintf("feature flag %s: %s", e.Feature, e.Message)
}
