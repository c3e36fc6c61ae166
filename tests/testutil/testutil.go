package testutil

import (
	"os"
	"testing"

	"github.com/sevenfour/order-workflow-api/config"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// Suites that reset tables call it first so a misconfigured shell never points them at real data.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// TestConfig returns a configuration for router tests without reading the environment.
// Auth0 points at an unroutable tenant and manifest storage is off.
func TestConfig() *config.Config {
	return &config.Config{
		DatabaseURL:    "sqlite://memory",
		DBMaxOpenConns: 1,
		DBMaxIdleConns: 1,
		Port:           "8080",
		GoEnv:          "test",
		Auth0Domain:    "test.auth0.com",
		Auth0Audience:  "https://api.test.com",
		CORSOrigins:    []string{"http://localhost:3000"},
		AWSRegion:      "us-east-1",
		LogLevel:       "error",
	}
}
