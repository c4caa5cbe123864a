package config

const (
	// EnvPrefix is handed to envconfig; every field carries its full variable name.
	EnvPrefix = "ENGAGE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "ENGAGE_APP_ENV"
	EnvPort       = "ENGAGE_APP_PORT"
	EnvLogLevel   = "ENGAGE_LOG_LEVEL"
	EnvDBDSN      = "ENGAGE_DB_DSN"
	EnvRedisURL   = "ENGAGE_REDIS_URL"
	EnvAPIURL     = "ENGAGE_API_URL"
	EnvAPITimeout = "ENGAGE_API_TIMEOUT"
	EnvBatchSize  = "ENGAGE_MOCK_BATCH_SIZE"
)
