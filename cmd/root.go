package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgketchum/openet-ptjpl/internal/config"
	"github.com/dgketchum/openet-ptjpl/internal/registry"
	"github.com/dgketchum/openet-ptjpl/pkg/compute"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ptjpl",
	Short: "PT-JPL ET-fraction collection builder and exporter",
	Long:  "Builds per-pixel ET-fraction scene collections over Landsat, interpolates them to daily, monthly or custom dates on the remote compute service, and submits asset exports.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// newComputeClient builds the compute client. Tests swap it for an
// in-memory engine.
var newComputeClient = func(c *config.Config) compute.Client {
	timeout := time.Duration(c.Compute.TimeoutSecs) * time.Second
	return compute.NewClient(c.Compute.Project, c.Compute.Token,
		compute.WithBaseURL(c.Compute.BaseURL),
		compute.WithRateLimit(c.Compute.RateLimit, c.Compute.Burst),
		compute.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
}

// loadRegistry returns the built-in collections, overridden by the
// configured registry file when one is set.
func loadRegistry(c *config.Config) (*registry.Registry, error) {
	if c.Collection.RegistryFile == "" {
		return registry.Default(), nil
	}
	reg, err := registry.LoadFile(c.Collection.RegistryFile)
	if err != nil {
		return nil, err
	}
	zap.L().Info("registry: loaded overrides",
		zap.String("file", c.Collection.RegistryFile),
		zap.Int("collections", reg.Count()),
	)
	return reg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
