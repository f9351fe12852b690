package config

const (
	EnvPrefix = "FASHIONMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FASHIONMARKET_APP_ENV"
	EnvPort     = "FASHIONMARKET_APP_PORT"
	EnvLogLevel = "FASHIONMARKET_LOG_LEVEL"

	EnvDBDSN  = "FASHIONMARKET_DB_DSN"
	EnvDBHost = "FASHIONMARKET_DB_HOST"
	EnvDBUser = "FASHIONMARKET_DB_USER"
	EnvDBName = "FASHIONMARKET_DB_NAME"

	EnvRedisURL = "FASHIONMARKET_REDIS_URL"

	EnvJWTSecret = "FASHIONMARKET_JWT_SECRET"
	EnvJWTIssuer = "FASHIONMARKET_JWT_ISSUER"

	EnvStoreTaxRate      = "FASHIONMARKET_STORE_TAX_RATE_PERCENT"
	EnvStoreFreeShipping = "FASHIONMARKET_STORE_FREE_SHIPPING_THRESHOLD_CENTS"
	EnvStoreShipping     = "FASHIONMARKET_STORE_STANDARD_SHIPPING_CENTS"
	EnvStoreReturnWindow = "FASHIONMARKET_STORE_RETURN_WINDOW_DAYS"

	EnvStripeAPIKey = "FASHIONMARKET_STRIPE_API_KEY"
	EnvStripeSecret = "FASHIONMARKET_STRIPE_SECRET"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
