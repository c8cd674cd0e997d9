package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/basekick-labs/scalebench/internal/config"
	"github.com/basekick-labs/scalebench/internal/storage"
)

// Version is set at build time
var Version = "dev"

// rootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func rootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "scalebench",
		Short:         "scalebench measures query scalability over sample sizes and parallelism levels.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("input", "", "Dataset URI (s3://, azure://, file:// or a local path)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Int64("seed", config.DefaultSeed, "Sampling seed")
	mustBind(v.BindPFlag("experiment.input_uri", flags.Lookup("input")))
	mustBind(v.BindPFlag("log.level", flags.Lookup("log-level")))
	mustBind(v.BindPFlag("experiment.seed", flags.Lookup("seed")))

	cmd.AddCommand(
		runCmd(v),
		inspectCmd(v),
		versionCmd(),
	)

	return cmd
}

func mustBind(err error) {
	if err != nil {
		panic(err)
	}
}

// loadConfig reads file, env and flag values in that order of precedence
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.LoadWith(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func storageConfig(cfg config.StorageConfig) *storage.Config {
	return &storage.Config{
		S3: storage.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PathStyle: cfg.S3PathStyle,
		},
		Azure: storage.AzureBlobConfig{
			ConnectionString:   cfg.AzureConnectionString,
			AccountName:        cfg.AzureAccountName,
			AccountKey:         cfg.AzureAccountKey,
			SASToken:           cfg.AzureSASToken,
			UseManagedIdentity: cfg.AzureUseManagedIdentity,
			Endpoint:           cfg.AzureEndpoint,
		},
	}
}
