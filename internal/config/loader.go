package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on images without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks an environment variable whose value is an SSM path.
// DATABASE_URL_SSM_PARAM=/prod/airwatch/database_url fills DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// prodEnv is the APP_ENV value that enables the production checks.
const prodEnv = "prod"

// ssmResolveTimeout bounds the whole SSM round trip at startup.
const ssmResolveTimeout = 30 * time.Second

// loaderDeps holds the injectable dependencies for the loader so tests do not
// have to mutate the process environment.
type loaderDeps struct {
	lookupEnv func(key string) (string, bool)
	setEnv    func(key, value string) error
	environ   func() []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the configuration.
//
//  1. Sets the process timezone to UTC.
//  2. Loads a .env file if present.
//  3. Outside APP_ENV=local, resolves _SSM_PARAM pointers through provider.
//  4. Processes envconfig tags and fills Build.
//  5. Validates struct tags, TIMEZONE and the production requirements.
//
// provider may be nil for local runs or when no _SSM_PARAM variables exist.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	time.Local = time.UTC

	// Does not override variables already present in the environment.
	_ = godotenv.Load()

	if appEnv, _ := deps.lookupEnv("APP_ENV"); appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("TIMEZONE %q is not a known location", cfg.Timezone),
			Err:     err,
		}
	}
	cfg.Location = loc

	if err := checkProduction(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// checkProduction enforces the settings a prod deployment cannot run without.
// The FCM checks also apply to every non-local environment that selected FCM,
// since the push sender cannot be built otherwise.
func checkProduction(cfg *Config) error {
	var missing []string

	if cfg.Environment == prodEnv && !cfg.Server.APIKeyHash.IsSet() {
		missing = append(missing, "API_KEY_HASH")
	}

	if cfg.Environment != localEnv && cfg.Push.Provider == PushProviderFCM {
		if cfg.Push.FCMProjectID == "" {
			missing = append(missing, "FCM_PROJECT_ID")
		}
		if !cfg.Push.FCMCredentialsJSON.IsSet() {
			missing = append(missing, "FCM_CREDENTIALS_JSON")
		}
	}

	if len(missing) == 0 {
		return nil
	}
	return &ConfigError{
		Type:    ErrMissingEnv,
		Message: fmt.Sprintf("%s requires: %s", cfg.Environment, strings.Join(missing, ", ")),
	}
}

// ResolveSecrets runs only the SSM step, for entry points that read a few
// variables directly instead of calling LoadConfig. It is a no-op for
// APP_ENV=local.
func ResolveSecrets(provider SecretProvider) error {
	if appEnv, _ := os.LookupEnv("APP_ENV"); appEnv == localEnv {
		return nil
	}
	return resolveSSMParams(provider, defaultDeps())
}

// ssmBinding ties an SSM path to the variable it fills.
type ssmBinding struct {
	target string
	path   string
}

// collectSSMBindings finds every X_SSM_PARAM=path pair whose X is not set
// yet. Variables already set win over SSM. The result is sorted by target so
// error messages are stable.
func collectSSMBindings(deps loaderDeps) []ssmBinding {
	var bindings []ssmBinding
	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		bindings = append(bindings, ssmBinding{target: target, path: path})
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].target < bindings[j].target })
	return bindings
}

// resolveSSMParams fetches the values behind every pending _SSM_PARAM
// pointer and writes them back into the environment for envconfig.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	bindings := collectSSMBindings(deps)
	if len(bindings) == 0 {
		return nil
	}

	targets := make([]string, 0, len(bindings))
	paths := make([]string, 0, len(bindings))
	for _, b := range bindings {
		targets = append(targets, b.target)
		paths = append(paths, b.path)
	}

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, b := range bindings {
		value, ok := resolved[b.path]
		if !ok {
			missing = append(missing, b.target)
			continue
		}
		if err := deps.setEnv(b.target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", b.target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
