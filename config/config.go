package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ellogroup/ello-golang-orgrouter/audit"
	"github.com/ellogroup/ello-golang-orgrouter/decision"
	"github.com/ellogroup/ello-golang-orgrouter/googledrive"
	"github.com/ellogroup/ello-golang-orgrouter/salesforce"
)

// EnvPrefix is prepended to every environment variable read by Load
const EnvPrefix = "ORGROUTER_"

type Config struct {
	DecisionUrl          string `yaml:"decisionUrl" json:"decisionUrl" validate:"required,url"`
	WebhookUrl           string `yaml:"webhookUrl" json:"webhookUrl" validate:"required,url"`
	DriveUploadUrl       string `yaml:"driveUploadUrl" json:"driveUploadUrl" validate:"required,url"`
	SalesforceApiVersion int    `yaml:"salesforceApiVersion" json:"salesforceApiVersion" validate:"gt=0"`
	// DecisionSigningKey enables HS256 signed decision requests
	DecisionSigningKey string `yaml:"decisionSigningKey" json:"decisionSigningKey"`
	DecisionIssuer     string `yaml:"decisionIssuer" json:"decisionIssuer" validate:"required_with=DecisionSigningKey"`
	// DecisionMaxRetries of 0 means the decision service is called once
	DecisionMaxRetries uint64 `yaml:"decisionMaxRetries" json:"decisionMaxRetries"`
	AuditBestEffort    bool   `yaml:"auditBestEffort" json:"auditBestEffort"`
	ListenAddr         string `yaml:"listenAddr" json:"listenAddr" validate:"required"`
}

func Default() Config {
	return Config{
		DecisionUrl:          decision.DefaultUrl,
		WebhookUrl:           audit.DefaultUrl,
		DriveUploadUrl:       googledrive.DefaultUploadUrl,
		SalesforceApiVersion: salesforce.DefaultApiVersion,
		DecisionIssuer:       "orgrouter",
		ListenAddr:           ":8080",
	}
}

type SecretsGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type LoadOptions struct {
	// File is an optional yaml file
	File string
	// EnvFile is an optional .env file; variables already set in the environment win
	EnvFile string
	// SecretsKey names a secrets manager secret holding a json object of Config fields
	SecretsKey string
	Secrets    SecretsGetter
	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

// Load builds a Config from defaults, then File, then the environment (EnvFile included),
// then the secrets manager secret, each source overriding the previous one
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.File != "" {
		raw, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if opts.EnvFile != "" {
		fileEnv, err := godotenv.Read(opts.EnvFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read env file: %w", err)
		}
		lookup = withFallback(lookup, fileEnv)
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}

	if opts.SecretsKey != "" {
		if err := applySecret(ctx, &cfg, opts.Secrets, opts.SecretsKey); err != nil {
			return nil, err
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func withFallback(lookup func(string) (string, bool), fallback map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := fallback[key]
		return v, ok
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("DECISION_URL", &cfg.DecisionUrl)
	str("WEBHOOK_URL", &cfg.WebhookUrl)
	str("DRIVE_UPLOAD_URL", &cfg.DriveUploadUrl)
	str("DECISION_SIGNING_KEY", &cfg.DecisionSigningKey)
	str("DECISION_ISSUER", &cfg.DecisionIssuer)
	str("LISTEN_ADDR", &cfg.ListenAddr)

	if v, ok := lookup(EnvPrefix + "SALESFORCE_API_VERSION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sSALESFORCE_API_VERSION: %w", EnvPrefix, err)
		}
		cfg.SalesforceApiVersion = n
	}
	if v, ok := lookup(EnvPrefix + "DECISION_MAX_RETRIES"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sDECISION_MAX_RETRIES: %w", EnvPrefix, err)
		}
		cfg.DecisionMaxRetries = n
	}
	if v, ok := lookup(EnvPrefix + "AUDIT_BEST_EFFORT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sAUDIT_BEST_EFFORT: %w", EnvPrefix, err)
		}
		cfg.AuditBestEffort = b
	}
	return nil
}

func applySecret(ctx context.Context, cfg *Config, sm SecretsGetter, key string) error {
	if sm == nil {
		return fmt.Errorf("secrets manager client needs to be provided to read %q", key)
	}
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("unable to fetch config from secrets manager: %w", err)
	}
	if out.SecretString == nil {
		return fmt.Errorf("secret %q has no string value", key)
	}
	if err := json.Unmarshal([]byte(*out.SecretString), cfg); err != nil {
		return fmt.Errorf("unable to parse config from secrets manager: %w", err)
	}
	return nil
}
