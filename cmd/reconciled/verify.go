package main

import (
	"context"
	"encoding/json"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-reconcile/adapters/gocommand"
	"github.com/goliatone/go-reconcile/command"
	"github.com/goliatone/go-reconcile/core"
)

type VerifyOptions struct {
	*RootOptions
	ExternalRef string
	ActorID     string
}

type verifyReport struct {
	OrderRef    string `json:"order_ref"`
	ExternalRef string `json:"external_ref"`
	Remote      string `json:"remote_status"`
	Mapped      string `json:"mapped_status"`
	Applied     bool   `json:"applied"`
	Status      string `json:"order_status"`
	Implication string `json:"delivery"`
	Deliverable bool   `json:"deliverable"`
}

func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <order-ref>",
		Short: "Verify an order against the remote payment API",
		Long: `Fetch the remote payment status for an order, record the payment
event and verification check, and update the order status.

Without --ref the external reference of the latest payment event is used.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx, opts.RootOptions)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg)

			app, err := buildStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := app.Close(); closeErr != nil {
					logger.Error("error closing database", "error", closeErr)
				}
			}()

			outcome, err := dispatchManualVerify(ctx, app, core.VerifyRequest{
				OrderRef:    args[0],
				ExternalRef: opts.ExternalRef,
				ActorID:     opts.ActorID,
			})
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(verifyReport{
				OrderRef:    outcome.Order.Ref,
				ExternalRef: outcome.ExternalRef,
				Remote:      outcome.Result.Status,
				Mapped:      string(outcome.Mapped),
				Applied:     outcome.Applied,
				Status:      string(outcome.Order.Status),
				Implication: string(outcome.Implication),
				Deliverable: outcome.Deliverable,
			})
		},
	}

	cmd.Flags().StringVar(&opts.ExternalRef, "ref", "", "external order reference at the payment processor")
	cmd.Flags().StringVar(&opts.ActorID, "actor", core.SystemActor, "actor id recorded on the verification check")

	return cmd
}

// dispatchManualVerify runs the request through the registered go-command
// handler and reads the outcome back from the result collector.
func dispatchManualVerify(ctx context.Context, app *stack, req core.VerifyRequest) (core.VerifyOutcome, error) {
	subscription, err := gocommand.RegisterAndSubscribe(
		gocommand.NewRegistryAdapter(nil),
		command.NewManualVerifyCommand(app.service),
	)
	if err != nil {
		return core.VerifyOutcome{}, err
	}
	defer subscription.Unsubscribe()

	collector := gocmd.NewResult[core.VerifyOutcome]()
	if err := gocommand.Dispatch(gocmd.ContextWithResult(ctx, collector), command.ManualVerifyMessage{Request: req}); err != nil {
		return core.VerifyOutcome{}, err
	}
	outcome, ok := collector.Load()
	if !ok {
		return core.VerifyOutcome{}, core.NewError("manual verify returned no outcome", goerrors.CategoryInternal, core.ErrorInternal, map[string]any{"order_ref": req.OrderRef})
	}
	return outcome, nil
}
