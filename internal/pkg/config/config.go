package config

import "time"

type Config struct {
	GatewayCfg *GatewayConfig
	AgentCfg   *AgentConfig
	LogLevel   string
}

type MqttConfig struct {
	Host     string `env:"MQTT_HOST"`
	Username string `env:"MQTT_USER"`
	Password string `env:"MQTT_PASS"`
}

// GatewayConfig drives the backend session registry and reconciliation
// sweeps.
type GatewayConfig struct {
	ListenAddr       string        `env:"LISTEN_ADDR" envDefault:"0.0.0.0:3001"`
	DatabaseURL      string        `env:"DATABASE_URL"`
	MigrationsFolder string        `env:"MIGRATIONS_FOLDER"`
	InsecureMode     bool          `env:"INSECURE_MODE"`
	RequireSignature bool          `env:"REQUIRE_SIGNATURE"`
	LivenessTimeout  time.Duration `env:"LIVENESS_TIMEOUT" envDefault:"2m"`
	// state_update flood protection, per session.
	StateUpdateWindow time.Duration `env:"STATE_UPDATE_WINDOW" envDefault:"1s"`
	StateUpdateMax    int           `env:"STATE_UPDATE_MAX" envDefault:"5"`
}

// AgentConfig drives the device-side control loop. Defaults mirror the
// shipped controller firmware.
type AgentConfig struct {
	GatewayURL string `env:"GATEWAY_URL"`
	Identity   string `env:"DEVICE_IDENTITY"`
	Secret     string `env:"DEVICE_SECRET"`
	Ssl        bool   `env:"GATEWAY_SSL"`

	GpioChip  string `env:"GPIO_CHIP" envDefault:"gpiochip0"`
	StateFile string `env:"STATE_FILE" envDefault:"/var/lib/relaygate/state.json"`

	TickInterval      time.Duration `env:"TICK_INTERVAL" envDefault:"20ms"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"30s"`
	IdentifyRetry     time.Duration `env:"IDENTIFY_RETRY" envDefault:"10s"`
	ReconnectFloor    time.Duration `env:"RECONNECT_FLOOR" envDefault:"1s"`
	ReconnectCeiling  time.Duration `env:"RECONNECT_CEILING" envDefault:"60s"`
	ResyncInterval    time.Duration `env:"RESYNC_INTERVAL" envDefault:"60s"`

	QueueCapacity  int           `env:"QUEUE_CAPACITY" envDefault:"16"`
	DrainBatch     int           `env:"DRAIN_BATCH" envDefault:"4"`
	DrainInterval  time.Duration `env:"DRAIN_INTERVAL" envDefault:"100ms"`
	RateCapacity   int           `env:"RATE_CAPACITY" envDefault:"5"`
	RateRefillEach time.Duration `env:"RATE_REFILL_EACH" envDefault:"200ms"`

	DebounceInterval  time.Duration `env:"DEBOUNCE_INTERVAL" envDefault:"80ms"`
	RepeatSuppression time.Duration `env:"REPEAT_SUPPRESSION" envDefault:"200ms"`
	ManualPriority    time.Duration `env:"MANUAL_PRIORITY" envDefault:"5s"`

	NightStartHour int           `env:"NIGHT_START_HOUR" envDefault:"22"`
	NightEndHour   int           `env:"NIGHT_END_HOUR" envDefault:"6"`
	PendingTTL     time.Duration `env:"PENDING_TTL" envDefault:"12h"`
	NightSweepEach time.Duration `env:"NIGHT_SWEEP_EACH" envDefault:"10m"`

	WatchdogTimeout  time.Duration `env:"WATCHDOG_TIMEOUT" envDefault:"30s"`
	MemorySoftLimit  uint64        `env:"MEMORY_SOFT_LIMIT" envDefault:"67108864"`
	MemoryHardLimit  uint64        `env:"MEMORY_HARD_LIMIT" envDefault:"134217728"`
	HealthCheckEvery time.Duration `env:"HEALTH_CHECK_EVERY" envDefault:"15s"`
}
