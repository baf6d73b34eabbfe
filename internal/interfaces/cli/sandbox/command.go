package sandbox

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"iapgate/internal/domain/purchase"
	"iapgate/internal/infrastructure/database"
	"iapgate/internal/infrastructure/repository"
	"iapgate/internal/infrastructure/sandboxstore"
	"iapgate/internal/interfaces/cli/bootstrap"
)

var (
	expired        bool
	withoutReceipt bool
	errorCode      string
	responseCode   string
	unfinishedOnly bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Drive the sandbox store",
		Long: `Complete, fail or cancel sandbox purchases and inspect the ledger.
With redis.enabled the events reach a running "iapgate run" at once;
otherwise unfinished purchases are redelivered on its next start.`,
	}

	cmd.AddCommand(
		newPurchaseCommand(),
		newFailCommand(),
		newCancelCommand(),
		newHistoryCommand(),
		newProductsCommand(),
	)

	return cmd
}

func newPurchaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchase <product-id>",
		Short: "Complete a purchase",
		Args:  cobra.ExactArgs(1),
		RunE:  runPurchase,
	}

	cmd.Flags().BoolVar(&expired, "expired", false, "Record the subscription as already lapsed")
	cmd.Flags().BoolVar(&withoutReceipt, "no-receipt", false, "Deliver the transaction without a receipt")

	return cmd
}

func newFailCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fail <product-id>",
		Short: "Report a purchase failure",
		Args:  cobra.ExactArgs(1),
		RunE:  runFail,
	}

	cmd.Flags().StringVar(&errorCode, "code", "E_UNKNOWN", "Store error code")
	cmd.Flags().StringVar(&responseCode, "response-code", sandboxstore.ResponseCodeError, "Platform response code")

	return cmd
}

func newCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <product-id>",
		Short: "Report a user cancellation",
		Args:  cobra.ExactArgs(1),
		RunE:  runCancel,
	}
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List ledger transactions",
		RunE:  runHistory,
	}

	cmd.Flags().BoolVar(&unfinishedOnly, "unfinished", false, "Only list transactions not yet finished")

	return cmd
}

func newProductsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the products the sandbox sells",
		RunE:  runProducts,
	}
}

func runPurchase(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	rt, err := bootstrap.NewRuntime(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	tx, err := rt.Store.Purchase(cmd.Context(), args[0], sandboxstore.PurchaseOptions{
		Expired:        expired,
		WithoutReceipt: withoutReceipt,
	})
	if err != nil {
		return fmt.Errorf("sandbox purchase failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Transaction: %s\n", tx.TransactionID)
	fmt.Fprintf(out, "Product:     %s\n", tx.ProductID)
	fmt.Fprintf(out, "Receipt:     %s\n", tx.Receipt)
	return nil
}

func runFail(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	rt, err := bootstrap.NewRuntime(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Store.Fail(cmd.Context(), args[0], errorCode, responseCode)
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	rt, err := bootstrap.NewRuntime(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Store.Cancel(cmd.Context(), args[0])
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	db, err := bootstrap.OpenLedger(cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	ledger := repository.NewSandboxTransactionRepository(db, log)
	entries, err := ledger.History(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-20s  %-20s  %-20s  %s\n", "TRANSACTION", "PRODUCT", "PURCHASED", "EXPIRES", "STATE")
	now := time.Now()
	for _, e := range entries {
		if e.Finished && unfinishedOnly {
			continue
		}

		expires := "-"
		if e.ExpiresAt != nil {
			expires = e.ExpiresAt.Local().Format(time.DateTime)
		}
		state := "active"
		if !e.ActiveAt(now) {
			state = "expired"
		}
		if !e.Finished {
			state += ",unfinished"
		}

		fmt.Fprintf(out, "%-36s  %-20s  %-20s  %-20s  %s\n",
			e.TransactionID, e.ProductID, e.PurchasedAt.Local().Format(time.DateTime), expires, state)
	}
	return nil
}

func runProducts(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}

	rt, err := bootstrap.NewRuntime(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	renderCatalog(cmd.OutOrStdout(), rt.Store.Catalog())
	return nil
}

func renderCatalog(out io.Writer, products []purchase.Product) {
	fmt.Fprintf(out, "%-24s  %-10s  %-8s  %s\n", "PRODUCT", "PRICE", "PERIOD", "TITLE")
	for _, p := range products {
		period := "-"
		if p.Period > 0 {
			period = p.Period.String()
		}
		fmt.Fprintf(out, "%-24s  %-10s  %-8s  %s\n", p.ID, p.Price, period, p.Title)
	}
}
