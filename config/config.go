package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// ProfileKeycloak switches on OIDC login against Keycloak. Without it the
// gateway runs without any security.
const ProfileKeycloak = "keycloak"

// Config represents the complete application configuration
type Config struct {
	Profiles      []string
	ListenAddress string `validate:"required"`
	UpstreamURL   string `validate:"omitempty,url"`
	Keycloak      KeycloakConfig
}

// KeycloakConfig holds the client registration and provider endpoints.
// Endpoints left empty are discovered from IssuerURI.
type KeycloakConfig struct {
	IssuerURI         string `validate:"required,url"`
	AuthorizationURI  string `validate:"omitempty,url"`
	TokenURI          string `validate:"omitempty,url"`
	UserInfoURI       string `validate:"omitempty,url"`
	JWKSetURI         string `validate:"omitempty,url"`
	LogoutURI         string `validate:"omitempty,url"`
	ClientID          string `validate:"required"`
	ClientSecret      string
	Scopes            []string
	UserNameAttribute string
	BaseURL           string        `validate:"omitempty,url"`
	SessionTTL        time.Duration `validate:"gte=0"`

	// only honored without BaseURL
	TrustForwardedHeaders bool
}

var validate = validator.New()

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	sessionTTL, err := getEnvAsDuration("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	trustForwarded, err := getEnvAsBool("TRUST_FORWARDED_HEADERS", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Profiles:      getEnvAsList("ACTIVE_PROFILES", nil),
		ListenAddress: getEnv("LISTEN_ADDRESS", ":8080"),
		UpstreamURL:   getEnv("UPSTREAM_URL", ""),
		Keycloak: KeycloakConfig{
			IssuerURI:         getEnv("KEYCLOAK_ISSUER_URI", ""),
			AuthorizationURI:  getEnv("KEYCLOAK_AUTHORIZATION_URI", ""),
			TokenURI:          getEnv("KEYCLOAK_TOKEN_URI", ""),
			UserInfoURI:       getEnv("KEYCLOAK_USER_INFO_URI", ""),
			JWKSetURI:         getEnv("KEYCLOAK_JWK_SET_URI", ""),
			LogoutURI:         getEnv("KEYCLOAK_LOGOUT_URI", ""),
			ClientID:          getEnv("KEYCLOAK_CLIENT_ID", ""),
			ClientSecret:      getEnv("KEYCLOAK_CLIENT_SECRET", ""),
			Scopes:            getEnvAsList("KEYCLOAK_SCOPES", []string{"openid", "profile", "email"}),
			UserNameAttribute: getEnv("KEYCLOAK_USER_NAME_ATTRIBUTE", ""),
			BaseURL:           getEnv("BASE_URL", ""),
			SessionTTL:        sessionTTL,

			TrustForwardedHeaders: trustForwarded,
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields which are needed by the active profiles
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		// the keycloak section only matters when its profile is active
		fields := []string{}
		for _, fieldErr := range validationErrors {
			if !c.KeycloakEnabled() && strings.HasPrefix(fieldErr.Namespace(), "Config.Keycloak.") {
				continue
			}
			fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
		}
		if len(fields) > 0 {
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
	}
	return nil
}

// KeycloakEnabled returns true if the keycloak profile is active
func (c *Config) KeycloakEnabled() bool {
	for _, profile := range c.Profiles {
		if profile == ProfileKeycloak {
			return true
		}
	}
	return false
}

// Upstream returns the parsed upstream url, nil when none is configured
func (c *Config) Upstream() (*url.URL, error) {
	if c.UpstreamURL == "" {
		return nil, nil
	}
	return url.Parse(c.UpstreamURL)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma or space separated value
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid %s (%w)", key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (%w)", key, err)
	}
	return value, nil
}
