package main

import (
	"encoding/csv"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
)

var (
	batchFile  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Batch enrich leads from a CSV file",
	Long:  "Reads leads from a CSV with a header row (name, company_name, email, phone, city, country) and enriches them concurrently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(batchFile)
		if err != nil {
			return eris.Wrapf(err, "open %s", batchFile)
		}
		defer f.Close()

		leads, err := readLeadsCSV(f)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(leads) > batchLimit {
			leads = leads[:batchLimit]
		}
		if len(leads) == 0 {
			zap.L().Info("no leads to process")
			return nil
		}

		env, err := initEnrichment(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results := env.Enricher.EnrichBatch(ctx, leads, cfg.Batch.MaxConcurrentLeads)

		var enriched, rejected, matched int
		for _, r := range results {
			if r.Err != nil {
				rejected++
				continue
			}
			enriched++
			if r.Enriched.Match.Matched() {
				matched++
			}
			if err := env.Store.SaveEnrichedLead(ctx, r.Enriched); err != nil {
				zap.L().Warn("persist enriched lead failed",
					zap.String("id", r.Enriched.ID),
					zap.Error(err),
				)
			}
		}

		zap.L().Info("batch complete",
			zap.Int("total", len(leads)),
			zap.Int("enriched", enriched),
			zap.Int("matched", matched),
			zap.Int("rejected", rejected),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "CSV file of leads (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of leads to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// readLeadsCSV parses leads from CSV. The header row names the columns;
// unknown columns are ignored.
func readLeadsCSV(r io.Reader) ([]model.Lead, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read csv header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["company_name"]; !ok {
		return nil, eris.New("csv missing company_name column")
	}
	if _, ok := col["email"]; !ok {
		return nil, eris.New("csv missing email column")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var leads []model.Lead
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read csv record")
		}
		leads = append(leads, model.Lead{
			Name:        field(record, "name"),
			CompanyName: field(record, "company_name"),
			Email:       field(record, "email"),
			Phone:       field(record, "phone"),
			City:        field(record, "city"),
			Country:     field(record, "country"),
		})
	}
	return leads, nil
}
