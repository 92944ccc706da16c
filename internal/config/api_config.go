package config

import (
	"strconv"
	"time"
)

const (
	apiBaseURLVar = "API_BASE_URL"
	apiTimeoutVar = "API_TIMEOUT"
	fakeAPIVar    = "FAKE_API"
)

// APIConfig describes how the front-end reaches the auth API
type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	// GetFakeAPI runs an in-process API with a demo account instead of API_BASE_URL
	GetFakeAPI() bool
}

type API struct{}

var _ APIConfig = API{}

func (API) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "http://localhost:3333")
}

func (API) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv(apiTimeoutVar, "10s"))
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func (API) GetFakeAPI() bool {
	fake, err := strconv.ParseBool(GetEnv(fakeAPIVar, "false"))
	return err == nil && fake
}
