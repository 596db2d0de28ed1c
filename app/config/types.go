package config

// Settings holds the global curation options loaded from the settings file.
type Settings struct {
	PollIntervalMs int               `yaml:"poll_interval_ms"`
	QuietHours     QuietHoursConfig  `yaml:"quiet_hours"`
	Retention      RetentionConfig   `yaml:"retention"`
	TopicTracking  TopicConfig       `yaml:"topic_tracking"`
	ContentLimits  ContentLimits     `yaml:"content_limits"`
}

// QuietHoursConfig describes a daily window during which cycles are skipped.
// A window whose start hour is greater than its end hour wraps past midnight.
type QuietHoursConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Start    int    `yaml:"start"` // hour of day, 0-23
	End      int    `yaml:"end"`   // hour of day, 0-23
	Timezone string `yaml:"timezone"`
}

// RetentionConfig bounds the delivered-item history.
type RetentionConfig struct {
	MaxAgeDays int `yaml:"max_age_days"`
	MaxItems   int `yaml:"max_items"`
}

// TopicConfig controls the active topic tracker.
type TopicConfig struct {
	CoolingHours            int                `yaml:"cooling_hours"`
	MaxActiveTopics         int                `yaml:"max_active_topics"`
	MaxConsequencesPerTopic int                `yaml:"max_consequences_per_topic"`
	ImportanceThresholds    []float64          `yaml:"importance_thresholds"`
	CategoryWeights         map[string]float64 `yaml:"category_weights"`
	EscalationThreshold     float64            `yaml:"escalation_threshold"`
}

// ContentLimits caps the amount of text sent to the oracle.
type ContentLimits struct {
	EvaluationCharLimit int `yaml:"evaluation_char_limit"`
	SummaryCharLimit    int `yaml:"summary_char_limit"`
}

// SourceConfig represents a complete per-source configuration.
type SourceConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // rss | page | social
	URL  string `yaml:"url"`

	Priority       int    `yaml:"priority"`
	SkipEvaluation bool   `yaml:"skip_evaluation"`
	MediaOnly      bool   `yaml:"media_only"`
	StrictMedia    bool   `yaml:"strict_media"`
	PromptSpecific string `yaml:"prompt_specific"`

	ProcessLinksForShortTweets bool `yaml:"process_links_for_short_tweets"`
	ShortTweetThreshold        int  `yaml:"short_tweet_threshold"`

	WhitelistHosts    []string `yaml:"whitelist_hosts"`
	WhitelistPaths    []string `yaml:"whitelist_paths"`
	BlacklistKeywords []string `yaml:"blacklist_keywords"`

	// Page sources: CSS selector locating item links on the listing page.
	ItemSelector string `yaml:"item_selector"`

	// Social sources: interchangeable credential slots for the upstream API.
	Credentials []CredentialConfig `yaml:"credentials"`
}

// CredentialConfig is one rotation slot for the rate-limited upstream source.
type CredentialConfig struct {
	Name            string `yaml:"name"`
	Secret          string `yaml:"secret"`
	UsageLimit      int    `yaml:"usage_limit"`
	MonthlyResetDay int    `yaml:"monthly_reset_day"`
}
