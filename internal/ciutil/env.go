package ciutil

import (
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// Common environment variable names used across the codebase.
const (
	// CI environment detection variables
	EnvCI            = "CI"
	EnvGitHubActions = "GITHUB_ACTIONS"
	EnvGitHubRunID   = "GITHUB_RUN_ID"
	EnvGitHubSHA     = "GITHUB_SHA"
	EnvGitLabCI      = "GITLAB_CI"
	EnvGitLabJobID   = "CI_JOB_ID"
	EnvGitLabSHA     = "CI_COMMIT_SHA"
	EnvJenkinsURL    = "JENKINS_URL"
	EnvCircleCI      = "CIRCLECI"

	// Database connection environment variables, in order of preference
	EnvDatabaseURL         = "DATABASE_URL"
	EnvCareloopTestDBURL   = "CARELOOP_TEST_DB_URL"
	EnvCareloopDatabaseURL = "CARELOOP_DATABASE_URL"
)

// Provider names returned by Provider.
const (
	ProviderNone    = ""
	ProviderGitHub  = "github-actions"
	ProviderGitLab  = "gitlab-ci"
	ProviderJenkins = "jenkins"
	ProviderCircle  = "circleci"
	ProviderGeneric = "generic"
)

// IsCI returns true if the current environment is a CI environment.
func IsCI() bool {
	return Provider() != ProviderNone
}

// Provider names the CI system the process runs under, or ProviderNone.
func Provider() string {
	switch {
	case os.Getenv(EnvGitHubActions) != "":
		return ProviderGitHub
	case os.Getenv(EnvGitLabCI) != "":
		return ProviderGitLab
	case os.Getenv(EnvJenkinsURL) != "":
		return ProviderJenkins
	case os.Getenv(EnvCircleCI) != "":
		return ProviderCircle
	case os.Getenv(EnvCI) != "":
		return ProviderGeneric
	default:
		return ProviderNone
	}
}

// Attrs returns log attributes identifying the CI run. It is empty outside CI.
func Attrs() []slog.Attr {
	provider := Provider()
	if provider == ProviderNone {
		return nil
	}
	attrs := []slog.Attr{slog.String("ci_provider", provider)}
	var runID, sha string
	switch provider {
	case ProviderGitHub:
		runID, sha = os.Getenv(EnvGitHubRunID), os.Getenv(EnvGitHubSHA)
	case ProviderGitLab:
		runID, sha = os.Getenv(EnvGitLabJobID), os.Getenv(EnvGitLabSHA)
	}
	if runID != "" {
		attrs = append(attrs, slog.String("ci_run_id", runID))
	}
	if sha != "" {
		attrs = append(attrs, slog.String("ci_commit", sha))
	}
	return attrs
}

// GetEnvWithFallbacks returns the value of the first non-empty environment variable
// from the provided list. If no environment variables are set, it returns the defaultValue.
func GetEnvWithFallbacks(envVars []string, defaultValue string, logger *slog.Logger) string {
	for i, envVar := range envVars {
		if val := os.Getenv(envVar); val != "" {
			if i > 0 && logger != nil {
				logger.Warn("using fallback environment variable",
					"used_var", envVar,
					"preferred_var", envVars[0],
					"value", MaskSensitiveValue(val))
			}
			return val
		}
	}
	return defaultValue
}

// TestDatabaseURL returns the integration test database URL, or "" when none
// is configured.
func TestDatabaseURL(logger *slog.Logger) string {
	return GetEnvWithFallbacks([]string{EnvDatabaseURL, EnvCareloopTestDBURL, EnvCareloopDatabaseURL}, "", logger)
}

// MaskSensitiveValue masks credentials in database URLs and long
// secret-looking values so they can be logged.
func MaskSensitiveValue(value string) string {
	if strings.HasPrefix(value, "postgres://") || strings.HasPrefix(value, "postgresql://") {
		u, err := url.Parse(value)
		if err != nil {
			return "invalid-url"
		}
		if u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.User(u.User.Username())
				user := u.User.String() + "@"
				return strings.Replace(u.String(), user, u.User.String()+":****@", 1)
			}
		}
		return u.String()
	}

	lower := strings.ToLower(value)
	if len(value) > 8 && (strings.Contains(lower, "key") ||
		strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret")) {
		return value[:4] + "****" + value[len(value)-4:]
	}
	return value
}
