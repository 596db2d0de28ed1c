package cfg

type Cfg struct {
	// File locations
	SettingsFile string
	SourcesDir   string
	StorePath    string

	// Oracle (completion service) access
	OracleEndpoint string
	OracleAPIKey   string
	OracleModel    string

	// Delivery channel
	TelegramBotToken string
	TelegramChatID   string

	// Quota endpoint for rotated social API credentials
	SocialUsageEndpoint string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
