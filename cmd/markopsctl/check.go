package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/datatypes"

	"github.com/ahmetk3436/markops/internal/incident"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/monitor"
	"github.com/ahmetk3436/markops/internal/notify"
	"github.com/ahmetk3436/markops/internal/probe"
	"github.com/ahmetk3436/markops/internal/storage"
	"github.com/ahmetk3436/markops/internal/storage/memory"
)

// newCheckCmd runs the full uptime check pipeline against an in-memory
// store, so incidents and notifications can be inspected without side
// effects. No alerts are sent.
func newCheckCmd() *cobra.Command {
	var (
		pages []string
		ssl   bool
	)
	cmd := &cobra.Command{
		Use:   "check URL",
		Short: "Dry-run an uptime check including incident and notification handling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := models.DomainConfig{
				URL:            args[0],
				Checks:         models.DomainChecks{Uptime: true, SSL: ssl},
				MonitoredPages: pages,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			raw, err := json.Marshal(cfg)
			if err != nil {
				return err
			}

			store := memory.New()
			client := &models.Client{Name: "dry-run", KPITargetType: "CPA"}
			if err := store.CreateClient(ctx, client); err != nil {
				return err
			}
			target := &models.DataSource{
				ClientID: client.ID,
				Type:     models.SourceDomain,
				Name:     cfg.Host(),
				Config:   datatypes.JSON(raw),
				Active:   true,
			}
			if err := store.CreateTarget(ctx, target); err != nil {
				return err
			}

			m := monitor.New(monitor.Deps{
				Targets:   store,
				Checks:    store,
				HTTP:      probe.NewHTTPProber(probe.DefaultHTTPTimeout),
				TLS:       probe.NewTLSProber(probe.DefaultTLSTimeout),
				Notifier:  notify.NewDeduplicator(store, notify.DefaultWindow),
				Incidents: incident.NewManager(store, store, nil),
			})
			report, err := m.PerformUptimeCheck(ctx, target.ID)
			if report == nil {
				return fmt.Errorf("check failed: %w", err)
			}

			incidents, lerr := store.ListIncidents(ctx, storage.IncidentFilter{})
			if lerr != nil {
				return lerr
			}
			notifications, lerr := store.ListNotifications(ctx, storage.NotificationFilter{})
			if lerr != nil {
				return lerr
			}
			out := map[string]any{
				"report":        report,
				"incidents":     incidents,
				"notifications": notifications,
			}
			if err != nil {
				out["warning"] = err.Error()
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringSliceVar(&pages, "page", nil, "Additional page URL to check (repeatable)")
	cmd.Flags().BoolVar(&ssl, "ssl", false, "Inspect the TLS certificate")
	return cmd
}
