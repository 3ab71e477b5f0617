package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level"`
	GrpcHost   string            `yaml:"grpc_host"`
	GrpcPort   int               `yaml:"grpc_port"`
	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	Cache      MCacheConfig      `yaml:"cache"`
	Fetch      MFetchConfig      `yaml:"fetch"`
	Analysis   MAnalysisConfig   `yaml:"analysis"`
	Classifier MClassifierConfig `yaml:"classifier"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"` // sqlite, postgres, http
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	BaseURL            string `yaml:"base_url"`
	AuthToken          string `yaml:"auth_token"`
	DataRetentionDays  int    `yaml:"data_retention_days"` // 0 keeps everything
	Timezone           string `yaml:"timezone"`
}

type MNetworkConfig struct {
	RequestTimeout     int    `yaml:"timeout"`
	MaxRetries         int    `yaml:"retries"`
	ConcurrentRequests int    `yaml:"concurrent_requests"`
	UserAgent          string `yaml:"user_agent"`
}

type MCacheConfig struct {
	TTLSeconds   int                 `yaml:"ttl_seconds"`
	MaxMemoryMB  int                 `yaml:"max_memory_mb"` // 0 = recommended limit
	Invalidation MInvalidationConfig `yaml:"invalidation"`
}

type MInvalidationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type MFetchConfig struct {
	DayTimeoutSeconds int      `yaml:"day_timeout_seconds"`
	MaxParallelDays   int      `yaml:"max_parallel_days"`
	DefaultLimit      int      `yaml:"default_limit"`
	LookbackDays      int      `yaml:"lookback_days"`
	WeekdaysOnly      bool     `yaml:"weekdays_only"`
	AnchorDates       []string `yaml:"anchor_dates"`
	FallbackNodes     []string `yaml:"fallback_nodes"`
}

type MAnalysisConfig struct {
	PointBudget           int                      `yaml:"point_budget"`
	SampleIntervalSeconds int                      `yaml:"sample_interval_seconds"`
	Calendar              string                   `yaml:"calendar"` // MIC code, e.g. "xnys"
	Interruption          MInterruptionConfig      `yaml:"interruption"`
	Thresholds            map[string]MThresholdSet `yaml:"thresholds"`
}

type MInterruptionConfig struct {
	VoltageThreshold   float64 `yaml:"voltage_threshold"`
	MinDurationSeconds float64 `yaml:"min_duration_seconds"`
}

type MClassifierConfig struct {
	ModelPath string `yaml:"model_path"`
}
