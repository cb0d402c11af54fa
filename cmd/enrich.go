package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
)

var enrichLead model.Lead

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrichment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		enriched, err := env.Enricher.Enrich(ctx, enrichLead)
		if err != nil {
			return eris.Wrap(err, "enrich lead")
		}

		if err := env.Store.SaveEnrichedLead(ctx, enriched); err != nil {
			zap.L().Warn("persist enriched lead failed", zap.Error(err))
		}

		out, err := json.MarshalIndent(enriched, "", "  ")
		if err != nil {
			return eris.Wrap(err, "marshal result")
		}
		fmt.Fprintln(os.Stdout, string(out))

		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichLead.CompanyName, "company", "", "company name (required)")
	enrichCmd.Flags().StringVar(&enrichLead.Email, "email", "", "contact email (required)")
	enrichCmd.Flags().StringVar(&enrichLead.Name, "name", "", "contact name")
	enrichCmd.Flags().StringVar(&enrichLead.Phone, "phone", "", "contact phone")
	enrichCmd.Flags().StringVar(&enrichLead.City, "city", "", "company city")
	enrichCmd.Flags().StringVar(&enrichLead.Country, "country", "", "company country")
	_ = enrichCmd.MarkFlagRequired("company")
	_ = enrichCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(enrichCmd)
}
