package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/reporting"
	"github.com/ahmetk3436/markops/internal/storage/memory"
)

type fileRow struct {
	CampaignID      string  `json:"campaign_id"`
	Date            string  `json:"date"`
	Spend           float64 `json:"spend"`
	Conversions     float64 `json:"conversions"`
	ConversionValue float64 `json:"conversion_value"`
	Clicks          int64   `json:"clicks"`
	Impressions     int64   `json:"impressions"`
	Status          string  `json:"status"`
	ServingStatus   string  `json:"serving_status"`
}

func newKPICmd() *cobra.Command {
	var (
		file         string
		targetType   string
		target       float64
		tolerance    float64
		margin       float64
		end          string
		disapprovals int
		merchantPct  float64
	)
	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Score a metrics file against a KPI target",
		Long: `Reads a JSON array of daily campaign rows and evaluates the seven days
before --end against the previous seven days.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			endDay := time.Now().UTC().Truncate(24 * time.Hour)
			if end != "" {
				d, err := time.Parse(time.DateOnly, end)
				if err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				endDay = d
			}

			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var rows []fileRow
			if err := json.Unmarshal(raw, &rows); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}

			store := memory.New()
			client := &models.Client{
				Name:            "cli",
				KPITargetType:   targetType,
				KPITargetValue:  target,
				KPITolerancePct: tolerance,
			}
			if cmd.Flags().Changed("margin") {
				client.ProfitMarginPct = &margin
			}
			if err := store.CreateClient(ctx, client); err != nil {
				return err
			}
			if disapprovals > 0 || merchantPct > 0 {
				issues := &models.AccountIssues{ClientID: client.ID, Disapprovals: disapprovals, MerchantDisapprovalPct: merchantPct, RecordedAt: time.Now().UTC()}
				if err := store.SaveAccountIssues(ctx, issues); err != nil {
					return err
				}
			}

			metrics := make([]models.CampaignMetric, 0, len(rows))
			for i, r := range rows {
				date, err := time.Parse(time.DateOnly, r.Date)
				if err != nil {
					return fmt.Errorf("row %d: invalid date %q", i, r.Date)
				}
				metrics = append(metrics, models.CampaignMetric{
					ClientID:        client.ID,
					CampaignID:      r.CampaignID,
					Date:            date,
					Spend:           r.Spend,
					Conversions:     r.Conversions,
					ConversionValue: r.ConversionValue,
					Clicks:          r.Clicks,
					Impressions:     r.Impressions,
					Status:          r.Status,
					ServingStatus:   r.ServingStatus,
				})
			}
			if err := store.UpsertMetrics(ctx, metrics); err != nil {
				return err
			}

			_, res, err := reporting.NewService(store, store, 1).Evaluate(ctx, client.ID, endDay)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with daily campaign rows")
	cmd.Flags().StringVar(&targetType, "target-type", "CPA", "CPA, ROAS or POAS")
	cmd.Flags().Float64Var(&target, "target", 0, "Target value")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 15, "Tolerance in percent")
	cmd.Flags().Float64Var(&margin, "margin", 100, "Profit margin in percent (POAS)")
	cmd.Flags().StringVar(&end, "end", "", "Exclusive end date YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&disapprovals, "disapprovals", 0, "Disapproved ads")
	cmd.Flags().Float64Var(&merchantPct, "merchant-disapproval-pct", 0, "Disapproved merchant products in percent")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
