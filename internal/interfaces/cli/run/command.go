package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"iapgate/internal/application/purchaseflow"
	"iapgate/internal/application/receipt"
	"iapgate/internal/domain/purchase"
	"iapgate/internal/infrastructure/metrics"
	"iapgate/internal/infrastructure/sandboxstore"
	"iapgate/internal/infrastructure/validation"
	"iapgate/internal/interfaces/cli/bootstrap"
	"iapgate/internal/interfaces/console"
	"iapgate/internal/shared/i18n"
)

var (
	policy         string
	locale         string
	nextOutcome    string
	localValidator bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interactive subscription demo",
		Long: `Start the purchase flow against the sandbox store and show the
fetching, paywall and unlocked screens in the terminal.`,
		RunE: run,
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Unlock policy (optimistic, confirm); overrides flow.unlock_policy")
	cmd.Flags().StringVar(&locale, "locale", "", "UI locale; overrides ui.locale")
	cmd.Flags().StringVar(&nextOutcome, "next-outcome", string(sandboxstore.OutcomeSuccess), "How the first sandbox purchase ends (success, cancel, fail)")
	cmd.Flags().BoolVar(&localValidator, "local-validator", false, "Validate receipts against the local ledger instead of validator.endpoint")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	if policy != "" {
		cfg.Flow.UnlockPolicy = policy
	}
	unlockPolicy, err := purchase.ParseUnlockPolicy(cfg.Flow.UnlockPolicy)
	if err != nil {
		return fmt.Errorf("invalid unlock policy %q: %w", cfg.Flow.UnlockPolicy, err)
	}
	outcome, err := sandboxstore.ParseOutcome(nextOutcome)
	if err != nil {
		return err
	}
	if locale != "" {
		cfg.UI.Locale = locale
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.NewRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.Store.SetNextOutcome(outcome)

	var validator receipt.Validator = validation.NewClient(cfg.Validator, log)
	if localValidator {
		validator = rt.Store
	}

	ui := console.New(os.Stdout, i18n.DetectLang(cfg.UI.Locale), log)
	controller := purchaseflow.NewController(
		rt.Store,
		validator,
		ui,
		purchaseflow.Config{
			ProductIDs:         cfg.Store.ProductIDs(),
			Policy:             unlockPolicy,
			CancelResponseCode: cfg.Store.CancelResponseCode,
		},
		log,
		purchaseflow.WithRecorder(metrics.New()),
		purchaseflow.WithOnChange(ui.Render),
	)

	log.Infow("starting purchase flow",
		"platform", cfg.Store.Platform,
		"products", cfg.Store.ProductIDs(),
		"policy", unlockPolicy,
		"local_validator", localValidator,
	)

	ui.Render(controller.Snapshot())
	controller.Activate(ctx)

	runErr := ui.Run(ctx, os.Stdin, controller)

	stop()
	controller.Deactivate(context.Background())
	controller.Wait()
	ui.Wait()

	log.Infow("purchase flow stopped", "entitled", controller.Snapshot().Entitled)
	return runErr
}
