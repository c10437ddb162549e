package funds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Report is the assembled single-fund analysis document.
type Report struct {
	ReportID      string           `json:"report_id"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Fund          *FundInfo        `json:"fund"`
	PeriodReturns map[string]Value `json:"period_returns"`
	Risk          RiskResult       `json:"risk"`
	Concentration *Concentration   `json:"concentration,omitempty"`
	Score         ScoreResult      `json:"score"`
}

// ReportService assembles the full fund report from the other services.
// Sections fail independently: a missing holdings table, for example,
// leaves the concentration section empty without losing the rest.
type ReportService struct {
	service *Service
	log     zerolog.Logger
}

// NewReportService creates a new report service
func NewReportService(service *Service, log zerolog.Logger) *ReportService {
	return &ReportService{
		service: service,
		log:     log.With().Str("component", "report").Logger(),
	}
}

// Generate builds the report for one fund. Unknown funds return nil.
func (r *ReportService) Generate(ctx context.Context, fundCode string) (*Report, error) {
	info, err := r.service.navRepo.GetFundInfo(ctx, fundCode)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}

	report := &Report{
		ReportID:    uuid.New().String(),
		GeneratedAt: r.service.NowFn(),
		Fund:        info,
	}

	if ladder, err := r.service.PeriodReturns(ctx, fundCode); err != nil {
		r.log.Warn().Err(err).Str("fund", fundCode).Msg("Report: period returns failed")
	} else {
		report.PeriodReturns = ladder
	}

	if risk, err := r.service.RiskMetrics(ctx, fundCode, 365); err != nil {
		r.log.Warn().Err(err).Str("fund", fundCode).Msg("Report: risk metrics failed")
	} else {
		report.Risk = risk
	}

	if conc, err := r.service.HoldingsConcentration(ctx, fundCode); err != nil {
		r.log.Warn().Err(err).Str("fund", fundCode).Msg("Report: concentration failed")
	} else {
		report.Concentration = conc
	}

	if score, err := r.service.FundScore(ctx, fundCode); err != nil {
		r.log.Warn().Err(err).Str("fund", fundCode).Msg("Report: scoring failed")
	} else {
		report.Score = score
	}

	return report, nil
}
