// Package console is the terminal presentation layer: it renders the view
// projected from the controller snapshot, shows notices until dismissed and
// turns typed choices into purchase intents.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"iapgate/internal/application/purchaseflow"
	"iapgate/internal/shared/goroutine"
	"iapgate/internal/shared/i18n"
	"iapgate/internal/shared/logger"
)

// Purchaser receives purchase intents.
type Purchaser interface {
	RequestPurchase(ctx context.Context, productID string)
}

type Console struct {
	out    io.Writer
	lang   i18n.Lang
	logger logger.Interface

	mu   sync.Mutex
	last purchaseflow.Snapshot
	// open holds one channel per notice waiting for dismissal, oldest first.
	open []chan struct{}

	wg sync.WaitGroup
}

func New(out io.Writer, lang i18n.Lang, log logger.Interface) *Console {
	return &Console{
		out:    out,
		lang:   lang,
		logger: log.Named("console"),
		last:   purchaseflow.Snapshot{View: purchaseflow.ViewFetching},
	}
}

// Render draws the screen for snap. It is safe to use as the controller's
// change callback.
func (c *Console) Render(snap purchaseflow.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = snap
	switch snap.View {
	case purchaseflow.ViewUnlocked:
		fmt.Fprintf(c.out, "\n%s\n", i18n.MsgUnlocked(c.lang))
	case purchaseflow.ViewPaywall:
		fmt.Fprintf(c.out, "\n%s\n%s\n", i18n.MsgPaywallTitle(c.lang), i18n.MsgPaywallBody(c.lang))
		for i, p := range snap.Products {
			label := i18n.MsgPurchaseButton(c.lang, p.Title)
			if p.Price != "" {
				label += " (" + p.Price + ")"
			}
			fmt.Fprintf(c.out, "  [%d] %s\n", i+1, label)
		}
		fmt.Fprintf(c.out, "%s\n", i18n.MsgChoosePrompt(c.lang))
	default:
		fmt.Fprintf(c.out, "\n%s\n", i18n.MsgFetching(c.lang))
	}
}

// Notify prints n and blocks until the user presses enter in Run or ctx is
// done.
func (c *Console) Notify(ctx context.Context, n purchaseflow.Notice) {
	title, message := n.Text(c.lang)

	done := make(chan struct{})

	c.mu.Lock()
	c.open = append(c.open, done)
	fmt.Fprintf(c.out, "\n*** %s ***\n%s\n(%s)\n", title, message, i18n.MsgDismiss(c.lang))
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		c.mu.Lock()
		for i, ch := range c.open {
			if ch == done {
				c.open = append(c.open[:i], c.open[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
	}
}

// dismissOldest closes the oldest open notice, if any.
func (c *Console) dismissOldest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.open) == 0 {
		return false
	}
	close(c.open[0])
	c.open = c.open[1:]
	return true
}

// Wait blocks until purchase intents started by Run have returned.
func (c *Console) Wait() {
	c.wg.Wait()
}

// Run reads lines from in until ctx is done, the input ends or the user
// quits. A line dismisses the oldest open notice first; otherwise on the
// paywall it selects a product by number or id.
func (c *Console) Run(ctx context.Context, in io.Reader, purchaser Purchaser) error {
	lines := make(chan string)
	errs := make(chan error, 1)

	goroutine.SafeGo(c.logger, nil, "console-reader", func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		case line := <-lines:
			if c.dismissOldest() {
				continue
			}

			choice := strings.TrimSpace(line)
			if choice == "q" || choice == "quit" {
				return nil
			}
			if choice == "" {
				continue
			}

			productID, ok := c.resolve(choice)
			if !ok {
				c.mu.Lock()
				fmt.Fprintf(c.out, "%s\n", i18n.MsgUnknownChoice(c.lang, choice))
				c.mu.Unlock()
				continue
			}

			goroutine.SafeGo(c.logger, &c.wg, "console-purchase", func() {
				purchaser.RequestPurchase(ctx, productID)
			})
		}
	}
}

// resolve maps a choice to a product id of the current paywall.
func (c *Console) resolve(choice string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last.View != purchaseflow.ViewPaywall {
		return "", false
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(c.last.Products) {
			return "", false
		}
		return c.last.Products[n-1].ID, true
	}
	for _, p := range c.last.Products {
		if p.ID == choice {
			return p.ID, true
		}
	}
	return "", false
}
