// Package config loads worker and producer settings with viper.
//
// Values come from defaults, an optional config.yaml, and environment
// variables prefixed with EnvPrefix. The unprefixed names used by existing
// deployments (DATABASE_URL, UPSTASH_REDIS_REST_URL and the rest of
// legacyEnv) are still honoured. Load validates the result with struct tags.
package config
