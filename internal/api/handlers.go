package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/shopledger/payoutrecon/internal/domain"
	"github.com/shopledger/payoutrecon/internal/ingestion"
	"github.com/shopledger/payoutrecon/internal/reconciliation"
	"github.com/shopledger/payoutrecon/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	payoutRepo   *repository.PayoutRepo
	orderRepo    *repository.OrderRepo
	runRepo      *repository.RunRepo
	discRepo     *repository.DiscrepancyRepo
	ingestionSvc *ingestion.Service
	reconSvc     *reconciliation.Service
	log          logrus.FieldLogger
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Error("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(domain.DateLayout, s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// runFor resolves the run a read endpoint reports on: the run_id query
// parameter when present, otherwise the latest run. ok is false when there
// is no run yet.
func (h *Handlers) runFor(ctx context.Context, r *http.Request) (run *domain.Run, ok bool, err error) {
	if id := r.URL.Query().Get("run_id"); id != "" {
		run, err = h.runRepo.GetByID(ctx, id)
	} else {
		run, err = h.runRepo.Latest(ctx)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return run, true, nil
}

// --- Imports ---

func (h *Handlers) ImportPayouts(w http.ResponseWriter, r *http.Request) {
	h.importFile(w, r, h.ingestionSvc.IngestPayouts)
}

func (h *Handlers) ImportOrders(w http.ResponseWriter, r *http.Request) {
	h.importFile(w, r, h.ingestionSvc.IngestOrders)
}

type ingestFunc func(ctx context.Context, data []byte, format string) (*ingestion.IngestResult, error)

func (h *Handlers) importFile(w http.ResponseWriter, r *http.Request, ingest ingestFunc) {
	// Accept multipart form.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = r.FormValue("format")
	}
	if format == "" {
		h.writeError(w, http.StatusBadRequest, "format is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := ingest(r.Context(), data, format)
	switch {
	case errors.Is(err, ingestion.ErrUnsupportedFormat):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ingestion.ErrMalformedFile):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		h.writeJSON(w, http.StatusOK, result)
	}
}

// --- Reconciliations ---

type reconciliationRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handlers) CreateReconciliation(w http.ResponseWriter, r *http.Request) {
	var req reconciliationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	from, err := time.Parse(domain.DateLayout, req.From)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(domain.DateLayout, req.To)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	run, res, err := h.reconSvc.Run(r.Context(), from, to)
	if errors.Is(err, reconciliation.ErrInvalidRange) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"run":           run,
		"payouts":       res.Payouts,
		"discrepancies": len(res.Discrepancies),
		"skipped":       res.Skipped,
	})
}

func (h *Handlers) ListReconciliations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := parseIntDefault(q.Get("page"), 1)
	limit := parseIntDefault(q.Get("limit"), 50)

	runs, total, err := h.runRepo.List(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"reconciliations": runs,
		"total":           total,
		"page":            page,
		"limit":           limit,
	})
}

func (h *Handlers) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.runRepo.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "reconciliation not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payouts, err := h.runRepo.PayoutResults(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	discSummary, err := h.discRepo.GetSummary(r.Context(), id)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"run":           run,
		"payouts":       payouts,
		"discrepancies": discSummary,
	})
}

// --- Payouts and orders ---

func (h *Handlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.PayoutFilter{
		Currency: q.Get("currency"),
		From:     parseTime(q.Get("from")),
		To:       parseTime(q.Get("to")),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	payouts, total, err := h.payoutRepo.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"payouts": payouts,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

// GetPayoutOrders returns a payout with the orders a run attributed to it.
func (h *Handlers) GetPayoutOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	payout, err := h.payoutRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "payout not found")
		return
	}
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{
		"payout":         payout,
		"fee_rate":       payout.FeeRatePercent(),
		"mappings":       []domain.PayoutOrderMapping{},
		"discrepancies":  []domain.Discrepancy{},
		"reconciliation": nil,
	}

	run, ok, err := h.runFor(ctx, r)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ok {
		mappings, err := h.runRepo.Mappings(ctx, run.ID, id)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		discs, err := h.discRepo.GetByPayoutID(ctx, run.ID, id)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		results, err := h.runRepo.PayoutResults(ctx, run.ID)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp["run_id"] = run.ID
		if mappings != nil {
			resp["mappings"] = mappings
		}
		if discs != nil {
			resp["discrepancies"] = discs
		}
		for _, pr := range results {
			if pr.PayoutID == id {
				resp["reconciliation"] = pr
			}
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.OrderFilter{
		PayoutID: q.Get("payout_id"),
		Unmapped: q.Get("unmapped") == "true",
		From:     parseTime(q.Get("from")),
		To:       parseTime(q.Get("to")),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	orders, total, err := h.orderRepo.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

// --- Discrepancies ---

func (h *Handlers) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DiscrepancyFilter{
		Type:     q.Get("type"),
		Severity: q.Get("severity"),
		PayoutID: q.Get("payout_id"),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	run, ok, err := h.runFor(r.Context(), r)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]any{
			"discrepancies": []domain.Discrepancy{},
			"total":         0,
			"page":          filter.Page,
			"limit":         filter.Limit,
		})
		return
	}
	filter.RunID = run.ID

	discs, total, err := h.discRepo.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Calculate total impact for the result set.
	totalImpact := decimal.Zero
	for _, d := range discs {
		totalImpact = totalImpact.Add(d.Difference.Abs())
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":        run.ID,
		"discrepancies": discs,
		"total":         total,
		"page":          filter.Page,
		"limit":         filter.Limit,
		"total_impact":  totalImpact.Round(2),
	})
}

func (h *Handlers) GetDiscrepancySummary(w http.ResponseWriter, r *http.Request) {
	run, ok, err := h.runFor(r.Context(), r)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "no reconciliation runs")
		return
	}

	summary, err := h.discRepo.GetSummary(r.Context(), run.ID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// --- GetDashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payoutCount, err := h.payoutRepo.Count(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	orderCount, err := h.orderRepo.Count(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	dashboard := map[string]any{
		"stored": map[string]int{
			"payouts": payoutCount,
			"orders":  orderCount,
		},
		"latest_run": nil,
	}

	run, ok, err := h.runFor(ctx, r)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ok {
		discSummary, err := h.discRepo.GetSummary(ctx, run.ID)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		dashboard["latest_run"] = map[string]any{
			"id":           run.ID,
			"completed_at": run.CompletedAt,
			"strategy":     run.Strategy,
			"exclusive":    run.Exclusive,
		}
		dashboard["summary"] = run.Summary
		dashboard["currency_metrics"] = run.Metrics
		dashboard["discrepancies"] = map[string]any{
			"total":        discSummary.TotalCount,
			"critical":     discSummary.BySeverity[string(domain.SeverityCritical)],
			"high":         discSummary.BySeverity[string(domain.SeverityHigh)],
			"medium":       discSummary.BySeverity[string(domain.SeverityMedium)],
			"low":          discSummary.BySeverity[string(domain.SeverityLow)],
			"by_type":      discSummary.ByType,
			"total_impact": discSummary.TotalImpact.Round(2),
		}
	}

	h.writeJSON(w, http.StatusOK, dashboard)
}
