package configcmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"iapgate/internal/infrastructure/config"
	"iapgate/internal/interfaces/cli/bootstrap"
)

const masked = "********"

var showSecrets bool

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration tools",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long:  `Print the configuration after defaults, config file and IAPGATE_* environment variables are applied.`,
		RunE:  runShow,
	}
	show.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secrets instead of masking them")

	cmd.AddCommand(show)
	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString(bootstrap.ConfigFlag)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out, err := Render(*cfg, showSecrets)
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// Render encodes cfg as YAML, masking secrets unless reveal is set.
func Render(cfg config.Config, reveal bool) ([]byte, error) {
	if !reveal {
		if cfg.Validator.AuthSecret != "" {
			cfg.Validator.AuthSecret = masked
		}
		if cfg.Redis.Password != "" {
			cfg.Redis.Password = masked
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}
