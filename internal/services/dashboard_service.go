package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	dbm "timelens/internal/models/db_models"
	resp "timelens/internal/models/response_models"
	"timelens/internal/repositories"
	"timelens/pkg/utils"
)

const (
	IntervalDay   = "day"
	IntervalWeek  = "week"
	IntervalMonth = "month"

	recentPaymentsLimit = 10
	defaultRangeDays    = 30
)

type DashboardService interface {
	BuildDashboard(ctx context.Context, rng resp.TimeRange, currency string) (*resp.DashboardReport, error)
}

type dashboardService struct {
	repo  repositories.DashboardRepository
	plans PlanServiceInterface
	clock *utils.DayClock
}

func NewDashboardService(repo repositories.DashboardRepository, plans PlanServiceInterface, clock *utils.DayClock) DashboardService {
	return &dashboardService{repo: repo, plans: plans, clock: clock}
}

func ValidInterval(s string) bool {
	switch s {
	case IntervalDay, IntervalWeek, IntervalMonth:
		return true
	default:
		return false
	}
}

// normalizeRange ensures sane defaults and ordering
func (s *dashboardService) normalizeRange(r resp.TimeRange) resp.TimeRange {
	out := r
	if out.Interval == "" {
		out.Interval = IntervalDay
	}
	if out.Timezone == "" {
		out.Timezone = s.clock.Location().String()
	}
	if out.End.IsZero() {
		out.End = s.clock.Now()
	}
	if out.Start.IsZero() {
		out.Start = out.End.AddDate(0, 0, -defaultRangeDays)
	}
	if out.Start.After(out.End) {
		out.Start, out.End = out.End, out.Start
	}
	return out
}

// bucketStart truncates t to the start of its interval in loc. Weeks start
// on Monday.
func bucketStart(t time.Time, interval string, loc *time.Location) time.Time {
	t = t.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	switch interval {
	case IntervalWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case IntervalMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return day
	}
}

func (s *dashboardService) BuildDashboard(ctx context.Context, rng resp.TimeRange, currency string) (*resp.DashboardReport, error) {
	rng = s.normalizeRange(rng)
	if !ValidInterval(rng.Interval) {
		return nil, utils.InvalidRequest("interval must be one of: day, week, month")
	}
	loc, err := time.LoadLocation(rng.Timezone)
	if err != nil {
		return nil, utils.InvalidRequest(fmt.Sprintf("unknown timezone %q", rng.Timezone))
	}

	report := &resp.DashboardReport{Range: rng}
	var (
		planRows, statusRows, subRows, billable []repositories.GroupCount
		paidRows, refundedRows, failed          []repositories.AmountRow
		recentRows                              []repositories.RecentPaymentRow
	)

	// ---------- Independent reads ----------
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		report.KPIs.TotalUsers, err = s.repo.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		report.KPIs.NewUsers, err = s.repo.CountUsersCreatedBetween(gctx, rng.Start, rng.End)
		return err
	})
	g.Go(func() (err error) {
		report.KPIs.TransformsInRange, err = s.repo.CountTransformsBetween(gctx, rng.Start, rng.End)
		return err
	})
	g.Go(func() (err error) {
		planRows, err = s.repo.UsersByPlan(gctx)
		return err
	})
	g.Go(func() (err error) {
		statusRows, err = s.repo.UsersByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		subRows, err = s.repo.SubscriptionsByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		billable, err = s.repo.BillablePlans(gctx)
		return err
	})
	g.Go(func() (err error) {
		paidRows, err = s.repo.TransactionsBetween(gctx, dbm.TxnStatusPaid, rng.Start, rng.End)
		return err
	})
	g.Go(func() (err error) {
		refundedRows, err = s.repo.TransactionsBetween(gctx, dbm.TxnStatusRefunded, rng.Start, rng.End)
		return err
	})
	g.Go(func() (err error) {
		failed, err = s.repo.TransactionsBetween(gctx, dbm.TxnStatusFailed, rng.Start, rng.End)
		return err
	})
	g.Go(func() (err error) {
		recentRows, err = s.repo.RecentPaidTransactions(gctx, recentPaymentsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: dashboard: %v", utils.ErrDatabaseError, err)
	}

	// ---------- Revenue series ----------
	buckets := make(map[time.Time]int64)
	for _, r := range paidRows {
		b := bucketStart(time.Unix(r.CreatedAt, 0), rng.Interval, loc)
		buckets[b] += r.AmountCents
		report.Revenue.TotalCents += r.AmountCents
	}
	report.Revenue.Currency = currency
	report.Revenue.Points = make([]resp.SeriesPoint, 0, len(buckets))
	for b, v := range buckets {
		report.Revenue.Points = append(report.Revenue.Points, resp.SeriesPoint{Bucket: b, Value: v})
	}
	sort.Slice(report.Revenue.Points, func(i, j int) bool {
		return report.Revenue.Points[i].Bucket.Before(report.Revenue.Points[j].Bucket)
	})

	for _, r := range refundedRows {
		report.KPIs.RefundedCents += r.AmountCents
	}
	report.KPIs.FailedTransactions = int64(len(failed))

	// ---------- Financials: MRR/ARR/ARPU ----------
	for _, r := range billable {
		report.KPIs.PayingUsers += r.Count
		report.KPIs.MRRCents += r.Count * s.plans.PriceCents(dbm.PlanType(r.Key))
	}
	report.KPIs.ARRCents = report.KPIs.MRRCents * 12
	if report.KPIs.PayingUsers > 0 {
		report.KPIs.ARPUCents = report.KPIs.MRRCents / report.KPIs.PayingUsers
	}
	for _, r := range statusRows {
		if dbm.SubscriptionStatus(r.Key) == dbm.SubStatusPastDue {
			report.KPIs.PastDueUsers = r.Count
		}
	}

	// ---------- Plan mix ----------
	var totalUsers int64
	for _, r := range planRows {
		totalUsers += r.Count
	}
	report.PlanMix = make([]resp.PlanMixItem, 0, len(planRows))
	for _, r := range planRows {
		var pct float64
		if totalUsers > 0 {
			pct = float64(r.Count) * 100.0 / float64(totalUsers)
		}
		report.PlanMix = append(report.PlanMix, resp.PlanMixItem{Plan: r.Key, Count: r.Count, Percent: pct})
	}

	report.Subscriptions = make([]resp.StatusCount, 0, len(subRows))
	for _, r := range subRows {
		report.Subscriptions = append(report.Subscriptions, resp.StatusCount{Status: r.Key, Count: r.Count})
	}

	// ---------- Recent payments ----------
	report.RecentPayments = make([]resp.RecentPayment, 0, len(recentRows))
	for _, r := range recentRows {
		report.RecentPayments = append(report.RecentPayments, resp.RecentPayment{
			ID:              r.ID,
			PaidAt:          r.CreatedAt,
			AmountCents:     r.AmountCents,
			Currency:        r.Currency,
			TransactionType: r.TransactionType,
			UserEmail:       r.Email,
		})
	}

	return report, nil
}
