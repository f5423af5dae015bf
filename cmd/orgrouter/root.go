package main

import (
	"context"
	"fmt"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ellogroup/ello-golang-orgrouter/audit"
	"github.com/ellogroup/ello-golang-orgrouter/config"
	"github.com/ellogroup/ello-golang-orgrouter/decision"
	"github.com/ellogroup/ello-golang-orgrouter/dispatch"
)

const version = "0.1.0"

var (
	configFile string
	envFile    string
	secretsKey string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:          "orgrouter",
	Short:        "Route Salesforce queries and Google Drive uploads through a decision service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a yaml config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file with ORGROUTER_* variables")
	rootCmd.PersistentFlags().StringVar(&secretsKey, "secrets-key", "", "AWS Secrets Manager secret holding json config overrides")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "development logging")
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	opts := config.LoadOptions{File: configFile, EnvFile: envFile, SecretsKey: secretsKey}
	if secretsKey != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load aws config: %w", err)
		}
		opts.Secrets = secretsmanager.NewFromConfig(awsCfg)
	}
	return config.Load(ctx, opts)
}

// newDispatcher wires the collaborators described by cfg
func newDispatcher(cfg *config.Config, log *zap.Logger) (*dispatch.ActionDispatcher, error) {
	client := http.DefaultClient

	p := decision.Params{HttpClient: client, Url: cfg.DecisionUrl, Log: log}
	if cfg.DecisionSigningKey != "" {
		signer, err := decision.NewSigner([]byte(cfg.DecisionSigningKey), cfg.DecisionIssuer)
		if err != nil {
			return nil, err
		}
		p.Signer = signer
	}
	if cfg.DecisionMaxRetries > 0 {
		p.NewBackOff = decision.ExponentialBackOff(cfg.DecisionMaxRetries)
	}
	decider, err := decision.NewClient(p)
	if err != nil {
		return nil, fmt.Errorf("unable to create decision client: %w", err)
	}

	notifier, err := audit.NewNotifier(client, cfg.WebhookUrl)
	if err != nil {
		return nil, fmt.Errorf("unable to create webhook notifier: %w", err)
	}

	return dispatch.NewActionDispatcher(dispatch.Params{
		HttpClient:           client,
		Decider:              decider,
		Notifier:             notifier,
		SalesforceApiVersion: cfg.SalesforceApiVersion,
		DriveUploadUrl:       cfg.DriveUploadUrl,
		AuditBestEffort:      cfg.AuditBestEffort,
		Log:                  log,
	})
}
