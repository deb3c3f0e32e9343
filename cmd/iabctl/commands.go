package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bivex/iab-client/internal/application/dto"
	"github.com/bivex/iab-client/internal/billing/launch"
	"github.com/bivex/iab-client/internal/domain/valueobject"
	"github.com/bivex/iab-client/internal/infrastructure/external/playservice"
	httpapi "github.com/bivex/iab-client/internal/interfaces/http"
	"github.com/bivex/iab-client/internal/interfaces/http/handlers"
)

type appKey struct{}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "iabctl",
		Short:         "Talk to the in-app billing service",
		Long:          `iabctl queries products and purchases, runs purchase flows and consumes or acknowledges purchases through a local billing daemon.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
				a.close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an env file (default: .env lookup)")

	cmd.AddCommand(
		newSupportedCommand(),
		newProductsCommand(),
		newPurchasesCommand(),
		newBuyCommand(),
		newConsumeCommand(),
		newAckCommand(),
	)
	return cmd
}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

// runE prints the command's result, or the error as JSON on stderr. The
// app is closed here as well since PersistentPostRun is skipped on error.
func runE(fn func(cmd *cobra.Command, a *app, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		result, err := fn(cmd, a, args)
		if err != nil {
			a.close()
			_ = printJSON(cmd.ErrOrStderr(), dto.NewErrorResponse(err))
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseKind(s string) (valueobject.ProductKind, error) {
	kind, err := valueobject.NewProductKind(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q (want inapp or subs)", err, s)
	}
	return kind, nil
}

func newSupportedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "supported <inapp|subs>",
		Short: "Check whether billing is supported for a product kind",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) (any, error) {
			kind, err := parseKind(args[0])
			if err != nil {
				return nil, err
			}
			if err := a.processor.IsBillingSupported(cmd.Context(), kind); err != nil {
				return nil, err
			}
			return dto.StatusResponse{Command: "supported", OK: true}, nil
		}),
	}
}

func newProductsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "products <inapp|subs> <id>...",
		Short: "List product details",
		Args:  cobra.MinimumNArgs(2),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) (any, error) {
			kind, err := parseKind(args[0])
			if err != nil {
				return nil, err
			}
			products, err := a.processor.FetchProducts(cmd.Context(), kind, args[1:])
			if err != nil {
				return nil, err
			}
			return dto.NewProductsResponse(products), nil
		}),
	}
}

func newPurchasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purchases <inapp|subs>",
		Short: "List owned purchases",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) (any, error) {
			kind, err := parseKind(args[0])
			if err != nil {
				return nil, err
			}
			purchases, err := a.processor.FetchPurchases(cmd.Context(), kind)
			if err != nil {
				return nil, err
			}
			return dto.NewPurchasesResponse(purchases), nil
		}),
	}
}

func newBuyCommand() *cobra.Command {
	var (
		replace []string
		payload string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "buy <inapp|subs> <id>",
		Short: "Run a purchase flow and wait for its result",
		Args:  cobra.ExactArgs(2),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) (any, error) {
			kind, err := parseKind(args[0])
			if err != nil {
				return nil, err
			}

			stop, err := startCallbackServer(a)
			if err != nil {
				return nil, err
			}
			defer stop()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			ui := playservice.NewConfirmationUI(a.client, "http://"+a.cfg.Callback.Addr+httpapi.PathResults)
			purchase, err := a.processor.Purchase(ctx, ui, launch.Request{
				Kind:             kind,
				Sku:              args[1],
				PreviousSkus:     replace,
				DeveloperPayload: payload,
			})
			if err != nil {
				return nil, err
			}
			return dto.NewPurchaseResponse(purchase), nil
		}),
	}
	cmd.Flags().StringSliceVar(&replace, "replace", nil, "subscription ids replaced by this purchase")
	cmd.Flags().StringVar(&payload, "payload", "", "developer payload (default: random)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the confirmation result")
	return cmd
}

// startCallbackServer serves the confirmation callbacks until stop is called.
func startCallbackServer(a *app) (stop func(), err error) {
	listener, err := net.Listen("tcp", a.cfg.Callback.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", a.cfg.Callback.Addr, err)
	}

	router := httpapi.NewRouter(handlers.NewCallbackHandler(a.processor), a.logger)
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.logger.Info("Callback server listening", zap.String("addr", listener.Addr().String()))
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Callback server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("Callback server shutdown failed", zap.Error(err))
		}
	}, nil
}

func newConsumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consume <purchase-token>",
		Short: "Consume a one-time purchase",
		Args:  cobra.ExactArgs(1),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) (any, error) {
			if err := a.processor.Consume(cmd.Context(), args[0]); err != nil {
				return nil, err
			}
			return dto.StatusResponse{Command: "consume", OK: true}, nil
		}),
	}
}

func newAckCommand() *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "ack <inapp|subs> <id> <purchase-token>",
		Short: "Acknowledge a purchase through the Play Developer API",
		Args:  cobra.ExactArgs(3),
		RunE: runE(func(cmd *cobra.Command, a *app, args []string) (any, error) {
			kind, err := parseKind(args[0])
			if err != nil {
				return nil, err
			}
			if err := a.processor.Acknowledge(cmd.Context(), kind, args[1], args[2], payload); err != nil {
				return nil, err
			}
			return dto.StatusResponse{Command: "ack", OK: true}, nil
		}),
	}
	cmd.Flags().StringVar(&payload, "payload", "", "developer payload stored with the acknowledgement")
	return cmd
}
