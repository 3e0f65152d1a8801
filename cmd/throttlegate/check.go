package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shengyanli1982/throttlegate/internal/constants"
	"github.com/shengyanli1982/throttlegate/internal/profile"
)

// effectiveView 代表 check 子命令输出的生效配置摘要
type effectiveView struct {
	Store          string            `yaml:"store"`
	FailurePolicy  string            `yaml:"failurePolicy"`
	Load           string            `yaml:"load"`
	DefaultProfile string            `yaml:"defaultProfile"`
	Routes         map[string]string `yaml:"routes,omitempty"`
	Profiles       []profileView     `yaml:"profiles"`
}

type profileView struct {
	Name              string  `yaml:"name"`
	RequestsPerMinute int     `yaml:"requestsPerMinute"`
	RequestsPerHour   int     `yaml:"requestsPerHour"`
	BurstAllowance    int     `yaml:"burstAllowance"`
	Adaptive          bool    `yaml:"adaptive"`
	BucketSize        int     `yaml:"bucketSize"`
	RefillRate        float64 `yaml:"refillRatePerSecond"`
}

// newCheckCommand 创建配置校验子命令，校验通过后输出补全默认值后的限流配置
func newCheckCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file and print the effective limiter profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := initConfig(configPath)
			if err != nil {
				return err
			}

			registry, err := profile.NewRegistryFromConfig(&cfg.Limiter)
			if err != nil {
				return fmt.Errorf("invalid limiter profiles: %w", err)
			}

			view := effectiveView{
				Store:          cfg.Store.Type,
				FailurePolicy:  cfg.Store.FailurePolicy,
				Load:           cfg.Limiter.Load.Type,
				DefaultProfile: registry.Default(),
			}
			if len(cfg.Limiter.Routes) > 0 {
				view.Routes = make(map[string]string, len(cfg.Limiter.Routes))
				for _, r := range cfg.Limiter.Routes {
					view.Routes[r.Prefix] = r.Profile
				}
			}
			for _, p := range registry.All() {
				view.Profiles = append(view.Profiles, profileView{
					Name:              p.Name,
					RequestsPerMinute: p.RequestsPerMinute,
					RequestsPerHour:   p.RequestsPerHour,
					BurstAllowance:    p.BurstAllowance,
					Adaptive:          p.AdaptiveEnabled,
					BucketSize:        p.BucketSize,
					RefillRate:        p.RefillRatePerSecond,
				})
			}

			out, err := yaml.Marshal(&view)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, constants.FlagConfig, constants.FlagConfigShort, constants.DefaultConfigPath, "Path to configuration file")
	return cmd
}
