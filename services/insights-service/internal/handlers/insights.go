package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/salonpulse/salonpulse/libs/httpx"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/cache"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/forecast"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/insights"
	"github.com/salonpulse/salonpulse/services/insights-service/internal/storage"
)

const (
	defaultForecastMonths = 6
	maxForecastMonths     = 24
)

type Handler struct {
	agg    *insights.Aggregator
	engine *forecast.Engine
	orders *storage.OrderRepository
	memo   *cache.Cache
	ttl    time.Duration
	logger *slog.Logger

	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
}

type Config struct {
	CacheTTL               time.Duration
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration
}

func New(agg *insights.Aggregator, engine *forecast.Engine, orders *storage.OrderRepository, memo *cache.Cache, logger *slog.Logger, cfg Config) *Handler {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.StripeWebhookTolerance <= 0 {
		cfg.StripeWebhookTolerance = 5 * time.Minute
	}
	return &Handler{
		agg:                    agg,
		engine:                 engine,
		orders:                 orders,
		memo:                   memo,
		ttl:                    cfg.CacheTTL,
		logger:                 logger,
		stripeWebhookSecret:    cfg.StripeWebhookSecret,
		stripeWebhookTolerance: cfg.StripeWebhookTolerance,
	}
}

// Overview answers GET /api/v1/insights/overview. Results are memoized per
// parameter set for the configured TTL so dashboard refreshes do not
// recompute the whole report.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	params := insights.OverviewParams{
		CompanyID: strings.TrimSpace(q.Get("company_id")),
		UnitID:    strings.TrimSpace(q.Get("unit_id")),
		StaffID:   strings.TrimSpace(q.Get("staff_id")),
		ServiceID: strings.TrimSpace(q.Get("service_id")),
		GroupBy:   strings.TrimSpace(q.Get("group_by")),
	}
	var err error
	params.From, params.To, err = parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := cache.Key("overview", map[string]any{
		"company": params.CompanyID,
		"unit":    params.UnitID,
		"staff":   params.StaffID,
		"service": params.ServiceID,
		"from":    params.From.Format(time.RFC3339),
		"to":      params.To.Format(time.RFC3339),
		"group":   params.GroupBy,
	})
	report, err := cache.Wrap(r.Context(), h.memo, key, h.ttl, func(ctx context.Context) (insights.OverviewReport, error) {
		return h.agg.PerformanceOverview(ctx, params)
	})
	if err != nil {
		h.writeInsightsError(w, err, "overview failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

// Staff answers GET /api/v1/insights/staff with the revenue-ranked staff
// breakdown.
func (h *Handler) Staff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	params := insights.BreakdownParams{
		CompanyID: strings.TrimSpace(q.Get("company_id")),
		UnitID:    strings.TrimSpace(q.Get("unit_id")),
	}
	var err error
	params.From, params.To, err = parseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := cache.Key("staff", map[string]any{
		"company": params.CompanyID,
		"unit":    params.UnitID,
		"from":    params.From.Format(time.RFC3339),
		"to":      params.To.Format(time.RFC3339),
	})
	rows, err := cache.Wrap(r.Context(), h.memo, key, h.ttl, func(ctx context.Context) ([]insights.StaffRow, error) {
		return h.agg.StaffBreakdown(ctx, params)
	})
	if err != nil {
		h.writeInsightsError(w, err, "staff breakdown failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rows)
}

// Forecast answers GET /api/v1/insights/forecast with the revenue
// projection for the next N months.
func (h *Handler) Forecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	companyID := strings.TrimSpace(q.Get("company_id"))
	if companyID == "" {
		http.Error(w, "company_id required", http.StatusBadRequest)
		return
	}
	unitID := strings.TrimSpace(q.Get("unit_id"))
	staffID := strings.TrimSpace(q.Get("staff_id"))

	months := defaultForecastMonths
	if raw := strings.TrimSpace(q.Get("months")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxForecastMonths {
			http.Error(w, "months must be between 1 and 24", http.StatusBadRequest)
			return
		}
		months = n
	}

	asOf := time.Now().UTC()
	key := cache.Key("forecast", map[string]any{
		"company": companyID,
		"unit":    unitID,
		"staff":   staffID,
		"months":  months,
		"as_of":   asOf.Format("2006-01"),
	})
	projection, err := cache.Wrap(r.Context(), h.memo, key, h.ttl, func(ctx context.Context) (forecast.Projection, error) {
		return h.engine.RevenueProjection(ctx, companyID, unitID, staffID, months, asOf)
	})
	if err != nil {
		if errors.Is(err, forecast.ErrInvalidMonths) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("forecast failed", "err", err)
		http.Error(w, "failed to compute forecast", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, projection)
}

func (h *Handler) writeInsightsError(w http.ResponseWriter, err error, logMsg string) {
	if errors.Is(err, insights.ErrInvalidRange) || errors.Is(err, insights.ErrInvalidParameter) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error(logMsg, "err", err)
	http.Error(w, "failed to compute report", http.StatusInternalServerError)
}

// parseRange reads YYYY-MM-DD bounds; the upper bound is inclusive through
// end of day. Both empty defers defaulting to the aggregator.
func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	fromRaw = strings.TrimSpace(fromRaw)
	toRaw = strings.TrimSpace(toRaw)
	if fromRaw == "" && toRaw == "" {
		return time.Time{}, time.Time{}, nil
	}
	from, err := time.ParseInLocation("2006-01-02", fromRaw, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("from must be YYYY-MM-DD")
	}
	to, err := time.ParseInLocation("2006-01-02", toRaw, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("to must be YYYY-MM-DD")
	}
	return from, to.Add(24*time.Hour - time.Second), nil
}
