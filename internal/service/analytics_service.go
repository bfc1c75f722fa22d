package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/hims-api/internal/dto"
	"github.com/noah-isme/hims-api/internal/models"
	appErrors "github.com/noah-isme/hims-api/pkg/errors"
)

const defaultTrendDays = 7

// AnalyticsRepository describes the read-only queries AnalyticsService needs.
type AnalyticsRepository interface {
	CountClients(ctx context.Context) (int, error)
	CountPrograms(ctx context.Context) (int, error)
	CountEnrollments(ctx context.Context) (int, error)
	EnrollmentsPerProgram(ctx context.Context) ([]models.ProgramEnrollmentCount, error)
	DailyEnrollments(ctx context.Context, since time.Time) ([]models.DailyCount, error)
	GenderDistribution(ctx context.Context) ([]models.LabelCount, error)
	StatusBreakdown(ctx context.Context) ([]models.LabelCount, error)
}

// AnalyticsService computes dashboard statistics. Results are recomputed on
// every call.
type AnalyticsService struct {
	repo      AnalyticsRepository
	metrics   *MetricsService
	logger    *zap.Logger
	trendDays int
	now       func() time.Time
}

// NewAnalyticsService constructs an analytics service. trendDays <= 0 selects
// a seven day window.
func NewAnalyticsService(repo AnalyticsRepository, metrics *MetricsService, logger *zap.Logger, trendDays int) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if trendDays <= 0 {
		trendDays = defaultTrendDays
	}
	return &AnalyticsService{repo: repo, metrics: metrics, logger: logger, trendDays: trendDays, now: time.Now}
}

// Dashboard runs the aggregate queries concurrently and assembles the payload.
// The first failing query cancels the rest.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*dto.DashboardStats, error) {
	now := s.now().UTC()
	since := trendStart(now, s.trendDays)
	stats := &dto.DashboardStats{GeneratedAt: now}

	var daily []models.DailyCount
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.observe("analytics_total_clients", func() (err error) {
			stats.TotalClients, err = s.repo.CountClients(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.observe("analytics_total_programs", func() (err error) {
			stats.TotalPrograms, err = s.repo.CountPrograms(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.observe("analytics_total_enrollments", func() (err error) {
			stats.TotalEnrollments, err = s.repo.CountEnrollments(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.observe("analytics_per_program", func() (err error) {
			stats.EnrollmentsPerProgram, err = s.repo.EnrollmentsPerProgram(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.observe("analytics_daily_enrollments", func() (err error) {
			daily, err = s.repo.DailyEnrollments(ctx, since)
			return err
		})
	})
	g.Go(func() error {
		return s.observe("analytics_gender", func() (err error) {
			stats.GenderDistribution, err = s.repo.GenderDistribution(ctx)
			return err
		})
	})
	g.Go(func() error {
		return s.observe("analytics_status", func() (err error) {
			stats.StatusBreakdown, err = s.repo.StatusBreakdown(ctx)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute analytics")
	}

	if stats.EnrollmentsPerProgram == nil {
		stats.EnrollmentsPerProgram = []models.ProgramEnrollmentCount{}
	}
	stats.MostPopularProgram = MostPopular(stats.EnrollmentsPerProgram)
	stats.EnrollmentTrend = fillTrend(daily, since, s.trendDays)
	stats.GenderDistribution = fillLabels(stats.GenderDistribution, []string{string(models.GenderMale), string(models.GenderFemale), string(models.GenderOther)})
	statuses := make([]string, len(models.EnrollmentStatuses))
	for i, st := range models.EnrollmentStatuses {
		statuses[i] = string(st)
	}
	stats.StatusBreakdown = fillLabels(stats.StatusBreakdown, statuses)
	return stats, nil
}

func (s *AnalyticsService) observe(label string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveDBQuery(label, time.Since(start))
	if err != nil {
		s.logger.Warn("analytics query failed", zap.String("query", label), zap.Error(err))
	}
	return err
}

// MostPopular returns the entry with the highest count. Ties keep the entry
// seen first; an empty input yields nil.
func MostPopular(counts []models.ProgramEnrollmentCount) *models.ProgramEnrollmentCount {
	var best *models.ProgramEnrollmentCount
	for i := range counts {
		if best == nil || counts[i].Count > best.Count {
			best = &counts[i]
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func trendStart(now time.Time, days int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
}

// fillTrend returns one bucket per day from since, zero-filling gaps.
func fillTrend(daily []models.DailyCount, since time.Time, days int) []models.DailyCount {
	byDay := make(map[string]int, len(daily))
	for _, d := range daily {
		byDay[d.Date] = d.Count
	}
	out := make([]models.DailyCount, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		out[i] = models.DailyCount{Date: day, Count: byDay[day]}
	}
	return out
}

// fillLabels orders buckets by labels, adding zero buckets for absent labels
// and keeping unknown labels at the end.
func fillLabels(counts []models.LabelCount, labels []string) []models.LabelCount {
	byLabel := make(map[string]int, len(counts))
	for _, c := range counts {
		byLabel[c.Label] = c.Count
	}
	out := make([]models.LabelCount, 0, len(labels)+len(counts))
	known := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		known[l] = struct{}{}
		out = append(out, models.LabelCount{Label: l, Count: byLabel[l]})
	}
	for _, c := range counts {
		if _, ok := known[c.Label]; !ok {
			out = append(out, c)
		}
	}
	return out
}
