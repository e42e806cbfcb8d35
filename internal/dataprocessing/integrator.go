package dataprocessing

import (
	"context"
	"log/slog"
	"sort"

	"sbscli/pkg/contracts/domain"
)

// IntegrationStats describes one integration run.
type IntegrationStats struct {
	Rows                     int `json:"rows"`
	WithTurnover             int `json:"with_turnover"`
	WithoutRegistry          int `json:"without_registry"`
	DuplicateEmployment      int `json:"duplicate_employment"`
	DuplicateTurnover        int `json:"duplicate_turnover"`
	DuplicateFirms           int `json:"duplicate_firms"`
	ClassificationFromSource int `json:"classification_from_employment"`
}

// Integrator joins the cleaned sources into the firm-month panel. It holds no
// per-call state and may be shared between goroutines.
type Integrator struct {
	logger *slog.Logger
}

// NewIntegrator creates a panel integrator
func NewIntegrator(logger *slog.Logger) *Integrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Integrator{logger: logger}
}

// Integrate left-joins employment (the anchor) with turnover on (firm, month)
// and with registry attributes on firm. The panel holds exactly one row per
// distinct employment key, ordered by firm and month. Registry sector and
// region take precedence; the employment source fills them when the firm is
// not registered or the registry value is empty. For duplicated keys the
// first occurrence wins.
func (in *Integrator) Integrate(ctx context.Context, firms []domain.Firm, employment, turnover domain.Series) ([]domain.PanelRecord, error) {
	panel, _, err := in.IntegrateWithStats(ctx, firms, employment, turnover)
	return panel, err
}

// IntegrateWithStats is Integrate that also returns the join statistics of
// this call.
func (in *Integrator) IntegrateWithStats(ctx context.Context, firms []domain.Firm, employment, turnover domain.Series) ([]domain.PanelRecord, IntegrationStats, error) {
	var stats IntegrationStats

	registry := make(map[string]domain.Firm, len(firms))
	for _, f := range firms {
		if _, dup := registry[f.FirmID]; dup {
			stats.DuplicateFirms++
			continue
		}
		registry[f.FirmID] = f
	}

	sales := make(map[domain.FirmMonth]*float64, len(turnover.Observations))
	for _, obs := range turnover.Observations {
		k := obs.Key()
		if _, dup := sales[k]; dup {
			stats.DuplicateTurnover++
			continue
		}
		sales[k] = obs.Value
	}

	if err := ctx.Err(); err != nil {
		return nil, IntegrationStats{}, err
	}

	seen := make(map[domain.FirmMonth]struct{}, len(employment.Observations))
	panel := make([]domain.PanelRecord, 0, len(employment.Observations))
	for _, obs := range employment.Observations {
		k := obs.Key()
		if _, dup := seen[k]; dup {
			stats.DuplicateEmployment++
			continue
		}
		seen[k] = struct{}{}

		rec := domain.PanelRecord{
			FirmID:           obs.FirmID,
			Month:            k.Month,
			EmployeesMonthly: domain.CopyFloat(obs.Value),
			SectorCode:       obs.SectorCode,
			RegionCode:       obs.RegionCode,
		}

		if v, ok := sales[k]; ok {
			rec.TurnoverMonthly = domain.CopyFloat(v)
		}
		if rec.TurnoverMonthly != nil {
			stats.WithTurnover++
		}

		if f, ok := registry[obs.FirmID]; ok {
			rec.EmployeesFirm = domain.CopyInt(f.EmployeesRegistered)
			rec.LegalForm = f.LegalForm
			rec.FoundationYear = domain.CopyInt(f.FoundationYear)
			fromSource := false
			if f.SectorCode != "" {
				rec.SectorCode = f.SectorCode
			} else {
				fromSource = rec.SectorCode != ""
			}
			if f.RegionCode != "" {
				rec.RegionCode = f.RegionCode
			} else {
				fromSource = fromSource || rec.RegionCode != ""
			}
			if fromSource {
				stats.ClassificationFromSource++
			}
		} else {
			stats.WithoutRegistry++
		}

		panel = append(panel, rec)
	}

	sort.SliceStable(panel, func(i, j int) bool { return domain.PanelLess(panel[i], panel[j]) })
	stats.Rows = len(panel)

	in.logger.InfoContext(ctx, "Panel integrated",
		slog.Int("rows", stats.Rows),
		slog.Int("with_turnover", stats.WithTurnover),
		slog.Int("without_registry", stats.WithoutRegistry),
		slog.Int("classification_from_employment", stats.ClassificationFromSource))
	if stats.DuplicateEmployment+stats.DuplicateTurnover+stats.DuplicateFirms > 0 {
		in.logger.WarnContext(ctx, "Duplicate keys ignored during integration",
			slog.Int("employment", stats.DuplicateEmployment),
			slog.Int("turnover", stats.DuplicateTurnover),
			slog.Int("registry", stats.DuplicateFirms))
	}
	return panel, stats, nil
}
