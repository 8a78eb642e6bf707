package domain

// Config holds the complete Heron configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// CatalogPath is the JSON rule catalog loaded at startup. When empty
	// the catalog is loaded from the repository instead.
	CatalogPath string `json:"catalogPath"`

	// Thresholds holds the persona-aware financial defaults injected into
	// every evaluation context.
	Thresholds Thresholds `json:"thresholds"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"

	// TierEnterprise includes multi-node, SSO, etc.
	TierEnterprise Tier = "enterprise"
)

// Thresholds carries the configurable financial limits that the evaluation
// context exposes to catalog expressions. Persona-keyed maps fall back to
// their "default" entry.
type Thresholds struct {
	Currency string `json:"currency"`

	PersonaMinSavings   map[string]float64 `json:"personaMinSavings"`
	VolatilityThreshold map[string]float64 `json:"volatilityThreshold"`
	EmergencyFundMonths map[string]float64 `json:"emergencyFundMonths"`
	BufferMonthsWarning map[string]float64 `json:"bufferMonthsWarning"`

	StabilityLow  float64 `json:"stabilityLow"`
	StabilityHigh float64 `json:"stabilityHigh"`

	OverspendLow  float64 `json:"overspendLow"`
	OverspendMed  float64 `json:"overspendMed"`
	OverspendHigh float64 `json:"overspendHigh"`

	DiscretionaryRatioLow float64 `json:"discretionaryRatioLow"`
	DiscretionaryRatioMed float64 `json:"discretionaryRatioMed"`

	DeficitLow float64 `json:"deficitLow"`
	DeficitMed float64 `json:"deficitMed"`

	RentIncomeRatioMax       float64 `json:"rentIncomeRatioMax"`
	WeeklySpikeThreshold     float64 `json:"weeklySpikeThreshold"`
	ConsecutiveDeficitMonths float64 `json:"consecutiveDeficitMonths"`
	SavingsDepletionRate     float64 `json:"savingsDepletionRate"`
	CashflowVarianceHigh     float64 `json:"cashflowVarianceHigh"`
	IncomeDropThreshold      float64 `json:"incomeDropThreshold"`
	LargeTransactionRatio    float64 `json:"largeTransactionRatio"`
	ZeroIncomeDaysMax        float64 `json:"zeroIncomeDaysMax"`
	CategorySpikeThreshold   float64 `json:"categorySpikeThreshold"`
	FoodIncomeRatioMax       float64 `json:"foodIncomeRatioMax"`
	TransportIncomeRatioMax  float64 `json:"transportIncomeRatioMax"`
	CashWithdrawalSpike      float64 `json:"cashWithdrawalSpike"`
	LoanEMIIncomeRatioMax    float64 `json:"loanEmiIncomeRatioMax"`
	ForecastDeficitThreshold float64 `json:"forecastDeficitThreshold"`
	ForecastSurplusThreshold float64 `json:"forecastSurplusThreshold"`
	ForecastConfidenceMin    float64 `json:"forecastConfidenceMin"`

	CategoryThresholds map[string]float64 `json:"categoryThresholds"`
}

// PersonaValue looks up m by persona, falling back to the "default" entry,
// then zero.
func PersonaValue(m map[string]float64, persona string) float64 {
	if v, ok := m[persona]; ok {
		return v
	}
	return m["default"]
}

// DefaultThresholds returns the stock financial limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Currency: "₹",
		PersonaMinSavings: map[string]float64{
			"gig_worker": 0.25,
			"salaried":   0.20,
			"default":    0.20,
		},
		VolatilityThreshold: map[string]float64{
			"gig_worker": 0.30,
			"salaried":   0.20,
			"default":    0.25,
		},
		EmergencyFundMonths: map[string]float64{
			"gig_worker": 6,
			"salaried":   3,
			"default":    3,
		},
		BufferMonthsWarning: map[string]float64{
			"gig_worker": 4,
			"salaried":   2,
			"default":    2,
		},
		StabilityLow:  0.8,
		StabilityHigh: 0.6,

		OverspendLow:  0.10,
		OverspendMed:  0.20,
		OverspendHigh: 0.35,

		DiscretionaryRatioLow: 0.25,
		DiscretionaryRatioMed: 0.35,

		DeficitLow: 0.05,
		DeficitMed: 0.15,

		RentIncomeRatioMax:       0.35,
		WeeklySpikeThreshold:     1.5,
		ConsecutiveDeficitMonths: 2,
		SavingsDepletionRate:     0.20,
		CashflowVarianceHigh:     0.30,
		IncomeDropThreshold:      0.25,
		LargeTransactionRatio:    0.15,
		ZeroIncomeDaysMax:        5,
		CategorySpikeThreshold:   0.40,
		FoodIncomeRatioMax:       0.25,
		TransportIncomeRatioMax:  0.15,
		CashWithdrawalSpike:      0.50,
		LoanEMIIncomeRatioMax:    0.40,
		ForecastDeficitThreshold: 0.10,
		ForecastSurplusThreshold: 0.10,
		ForecastConfidenceMin:    0.70,

		CategoryThresholds: map[string]float64{
			"food":          0.30,
			"transport":     0.20,
			"entertainment": 0.15,
			"utilities":     0.12,
		},
	}
}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:        TierCommunity,
		CatalogPath: "./config/rules.json",
		Thresholds:  DefaultThresholds(),
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./heron.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     300, // 5 minutes
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "heron",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "heron",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
