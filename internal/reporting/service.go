// Package reporting turns stored campaign metrics into KPI reports.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ahmetk3436/markops/internal/kpi"
	"github.com/ahmetk3436/markops/internal/models"
	"github.com/ahmetk3436/markops/internal/storage"
)

// Period is the length of one reporting window. The previous window is the
// one immediately before it.
const Period = 7 * 24 * time.Hour

type Service struct {
	clients     storage.ClientStore
	metrics     storage.MetricStore
	concurrency int
	now         func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func NewService(clients storage.ClientStore, metrics storage.MetricStore, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		clients:     clients,
		metrics:     metrics,
		concurrency: concurrency,
		now:         time.Now,
		done:        make(chan struct{}),
	}
}

// ToRows converts stored metrics into aggregator input, keeping their order.
func ToRows(ms []models.CampaignMetric) []kpi.MetricRow {
	rows := make([]kpi.MetricRow, len(ms))
	for i, m := range ms {
		rows[i] = kpi.MetricRow{
			CampaignID:      m.CampaignID,
			Date:            m.Date,
			Spend:           m.Spend,
			Conversions:     m.Conversions,
			ConversionValue: m.ConversionValue,
			Clicks:          m.Clicks,
			Impressions:     m.Impressions,
			Status:          m.Status,
			ServingStatus:   m.ServingStatus,
		}
	}
	return rows
}

// Evaluate computes the KPI result for a client over [end-Period, end)
// without storing it.
func (s *Service) Evaluate(ctx context.Context, clientID uuid.UUID, end time.Time) (*models.Client, kpi.Result, error) {
	client, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		return nil, kpi.Result{}, fmt.Errorf("load client: %w", err)
	}
	targetType, err := kpi.ParseTargetType(client.KPITargetType)
	if err != nil {
		return nil, kpi.Result{}, err
	}

	start, prevStart := end.Add(-Period), end.Add(-2*Period)
	cur, err := s.metrics.ListMetrics(ctx, clientID, start, end)
	if err != nil {
		return nil, kpi.Result{}, fmt.Errorf("load current metrics: %w", err)
	}
	prev, err := s.metrics.ListMetrics(ctx, clientID, prevStart, start)
	if err != nil {
		return nil, kpi.Result{}, fmt.Errorf("load previous metrics: %w", err)
	}

	in := kpi.Input{
		TargetType:      targetType,
		TargetValue:     client.KPITargetValue,
		TolerancePct:    client.KPITolerancePct,
		Current:         kpi.AggregateCampaigns(ToRows(cur)),
		Previous:        kpi.AggregateCampaigns(ToRows(prev)),
		ProfitMarginPct: client.ProfitMarginPct,
	}
	in.ServingIssues = kpi.ServingIssues(in.Current)

	issues, err := s.clients.LatestAccountIssues(ctx, clientID)
	switch {
	case err == nil:
		in.Disapprovals = issues.Disapprovals
		in.MerchantDisapprovalPct = issues.MerchantDisapprovalPct
	case !errors.Is(err, storage.ErrNotFound):
		return nil, kpi.Result{}, fmt.Errorf("load account issues: %w", err)
	}

	res, err := kpi.CalculateKPI(in)
	if err != nil {
		return nil, kpi.Result{}, err
	}
	return client, res, nil
}

// Generate evaluates and stores a report for the window ending at end.
func (s *Service) Generate(ctx context.Context, clientID uuid.UUID, end time.Time) (*models.KPIReport, error) {
	_, res, err := s.Evaluate(ctx, clientID, end)
	if err != nil {
		return nil, err
	}
	breakdown, err := json.Marshal(res.HealthBreakdown)
	if err != nil {
		return nil, err
	}
	full, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}

	report := &models.KPIReport{
		ClientID:        clientID,
		PeriodStart:     end.Add(-Period),
		PeriodEnd:       end,
		TargetType:      string(res.TargetType),
		TargetValue:     res.TargetValue,
		BlendedKPI:      res.BlendedKPI,
		TargetDeviation: res.TargetDeviation,
		TargetStatus:    string(res.TargetStatus),
		HealthScore:     res.HealthScore,
		TrendDirection:  string(res.TrendDirection),
		Breakdown:       breakdown,
		Result:          full,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.metrics.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

// GenerateAll generates reports for every client with a KPI target in
// parallel. A failing client is logged and skipped; the count of stored
// reports is returned.
func (s *Service) GenerateAll(ctx context.Context, end time.Time) (int, error) {
	clients, err := s.clients.ListClients(ctx)
	if err != nil {
		return 0, fmt.Errorf("list clients: %w", err)
	}

	var stored atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, c := range clients {
		id := c.ID
		if strings.TrimSpace(c.KPITargetType) == "" {
			slog.Debug("Skipping KPI report, no target configured", "client_id", id)
			continue
		}
		g.Go(func() error {
			if _, err := s.Generate(gctx, id, end); err != nil {
				slog.Error("KPI report failed", "client_id", id, "error", err)
				return nil
			}
			stored.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(stored.Load()), nil
}

// Start regenerates all reports every interval, for the window ending at
// the most recent UTC midnight.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				end := s.now().UTC().Truncate(24 * time.Hour)
				n, err := s.GenerateAll(ctx, end)
				if err != nil {
					slog.Error("KPI report run failed", "error", err)
					continue
				}
				slog.Info("KPI reports generated", "count", n, "period_end", end)
			case <-ctx.Done():
				return
			}
		}
	}()
	slog.Info("KPI reporter started", "interval", interval)
}

func (s *Service) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}
