package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of curation settings and
// per-source configurations.
type Loader struct {
	settingsFile string
	sourcesDir   string
}

func NewLoader(settingsFile, sourcesDir string) *Loader {
	return &Loader{settingsFile: settingsFile, sourcesDir: sourcesDir}
}

// LoadSettings loads the global curation settings file. A missing file
// yields defaults rather than an error.
func (l *Loader) LoadSettings() (*Settings, error) {
	settings := &Settings{}

	data, err := os.ReadFile(l.settingsFile)
	if err != nil {
		if os.IsNotExist(err) {
			setSettingsDefaults(settings)
			return settings, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}

	setSettingsDefaults(settings)

	if err := validateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", l.settingsFile, err)
	}

	return settings, nil
}

// LoadSources loads all YAML source configuration files from the sources
// directory, keyed by source name.
func (l *Loader) LoadSources() (map[string]*SourceConfig, error) {
	configs := make(map[string]*SourceConfig)

	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return configs, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		config, err := l.loadSourceFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := validateSource(config); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", file, err)
		}

		if _, exists := configs[config.Name]; exists {
			return nil, fmt.Errorf("duplicate source name %q in %s", config.Name, file)
		}

		configs[config.Name] = config
	}

	return configs, nil
}

func (l *Loader) loadSourceFile(path string) (*SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config SourceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setSourceDefaults(&config)

	return &config, nil
}

func setSettingsDefaults(s *Settings) {
	if s.PollIntervalMs == 0 {
		s.PollIntervalMs = 600000 // 10 minutes
	}
	if s.Retention.MaxAgeDays == 0 {
		s.Retention.MaxAgeDays = 7
	}
	if s.Retention.MaxItems == 0 {
		s.Retention.MaxItems = 200
	}
	if s.TopicTracking.CoolingHours == 0 {
		s.TopicTracking.CoolingHours = 48
	}
	if s.TopicTracking.MaxActiveTopics == 0 {
		s.TopicTracking.MaxActiveTopics = 20
	}
	if s.TopicTracking.MaxConsequencesPerTopic == 0 {
		s.TopicTracking.MaxConsequencesPerTopic = 3
	}
	if len(s.TopicTracking.ImportanceThresholds) == 0 {
		s.TopicTracking.ImportanceThresholds = []float64{6.0, 7.5, 9.0}
	}
	if s.TopicTracking.EscalationThreshold == 0 {
		s.TopicTracking.EscalationThreshold = 8.5
	}
	if s.ContentLimits.EvaluationCharLimit == 0 {
		s.ContentLimits.EvaluationCharLimit = 4000
	}
	if s.ContentLimits.SummaryCharLimit == 0 {
		s.ContentLimits.SummaryCharLimit = 400
	}
	if s.QuietHours.Timezone == "" {
		s.QuietHours.Timezone = "UTC"
	}
}

func setSourceDefaults(c *SourceConfig) {
	if c.Kind == "" {
		c.Kind = "rss"
	}
	if c.ShortTweetThreshold == 0 {
		c.ShortTweetThreshold = 100
	}
	if c.Priority == 0 {
		c.Priority = 1
	}
}

func validateSettings(s *Settings) error {
	if s.PollIntervalMs < 0 {
		return fmt.Errorf("poll interval must be non-negative")
	}
	if s.QuietHours.Start < 0 || s.QuietHours.Start > 23 {
		return fmt.Errorf("quiet hours start must be within 0-23")
	}
	if s.QuietHours.End < 0 || s.QuietHours.End > 23 {
		return fmt.Errorf("quiet hours end must be within 0-23")
	}
	if s.Retention.MaxAgeDays < 0 || s.Retention.MaxItems < 0 {
		return fmt.Errorf("retention bounds must be non-negative")
	}

	// The consequence threshold ladder must be non-decreasing.
	thresholds := s.TopicTracking.ImportanceThresholds
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] < thresholds[i-1] {
			return fmt.Errorf("importance thresholds must be non-decreasing, got %v", thresholds)
		}
	}

	for category, weight := range s.TopicTracking.CategoryWeights {
		if weight <= 0 {
			return fmt.Errorf("category weight for %q must be positive", category)
		}
	}

	return nil
}

func validateSource(c *SourceConfig) error {
	if c.Name == "" {
		return fmt.Errorf("source name is required")
	}

	switch c.Kind {
	case "rss", "page", "social":
	default:
		return fmt.Errorf("invalid source kind: %s", c.Kind)
	}

	if c.Kind != "social" && c.URL == "" {
		return fmt.Errorf("source URL is required")
	}

	if c.Kind == "social" {
		for i, cred := range c.Credentials {
			if cred.Name == "" || cred.Secret == "" {
				return fmt.Errorf("credential at index %d must have name and secret", i)
			}
			if cred.MonthlyResetDay < 1 || cred.MonthlyResetDay > 28 {
				return fmt.Errorf("credential %q: monthly reset day must be within 1-28", cred.Name)
			}
		}
	}

	if c.Priority < 0 {
		return fmt.Errorf("priority must be non-negative")
	}

	return nil
}
