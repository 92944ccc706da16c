package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	APIConfig
	CookieConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	API
	Cookies
	Cors
}

// New loads an optional .env file and returns the environment backed config.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
