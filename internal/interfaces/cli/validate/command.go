package validate

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"iapgate/internal/domain/purchase"
	"iapgate/internal/infrastructure/validation"
	"iapgate/internal/interfaces/cli/bootstrap"
)

func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <receipt>",
		Short: "Validate a receipt against the configured endpoint",
		Long: `Submit a receipt to validator.endpoint with the configured timeouts
and retries, then print the classified outcome and the raw result.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	client := validation.NewClient(cfg.Validator, log)
	result, err := client.Validate(cmd.Context(), args[0])
	if err != nil {
		log.Errorw("validation failed", "endpoint", cfg.Validator.Endpoint, "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	raw, err := json.Marshal(purchase.ValidationEnvelope{Result: result})
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Outcome: %s\n", result.Classify())
	fmt.Fprintf(out, "Result:  %s\n", raw)
	return nil
}
