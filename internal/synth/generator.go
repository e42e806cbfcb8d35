// Package synth generates synthetic registry, employment and turnover tables
// with controllable defects, for demos and end-to-end tests of the pipeline.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"sbscli/internal/exporter"
	"sbscli/pkg/contracts/domain"
)

// OrphanFirmID appears in the monthly sources but never in the registry.
const OrphanFirmID = "F99999"

var (
	sectors    = []string{"C10", "C25", "F41", "G46", "G47", "H49", "I56", "J62", "M69", "N81"}
	regions    = []string{"R1", "R2", "R3", "R4", "R5"}
	legalForms = []string{"GmbH", "AG", "KG", "OHG", "UG", "EK"}
)

// Options controls size, randomness and defect injection.
type Options struct {
	Firms      int
	Months     int
	Start      time.Time
	Seed       int64
	NullRate   float64 // share of monthly values blanked out
	Orphans    bool    // add observations for OrphanFirmID
	Duplicates int     // registry rows repeated verbatim
	// DefectRate is the share of firms with a negative revenue, an
	// implausible foundation year or a missing head count.
	DefectRate float64
}

// DefaultOptions returns a small dataset with every kind of defect present.
func DefaultOptions() Options {
	return Options{
		Firms:      500,
		Months:     24,
		Start:      time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC),
		Seed:       42,
		NullRate:   0.05,
		Orphans:    true,
		Duplicates: 2,
		DefectRate: 0.03,
	}
}

// Dataset is one generated set of source tables.
type Dataset struct {
	Firms      []domain.Firm
	Employment domain.Series
	Turnover   domain.Series
}

// Generator produces datasets. The same seed always yields the same dataset.
type Generator struct {
	opts   Options
	faker  *gofakeit.Faker
	logger *slog.Logger
}

// NewGenerator creates a generator
func NewGenerator(opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Start.IsZero() {
		opts.Start = DefaultOptions().Start
	}
	opts.Start = domain.MonthStart(opts.Start)
	return &Generator{
		opts:   opts,
		faker:  gofakeit.New(opts.Seed),
		logger: logger,
	}
}

// Generate builds the registry and both monthly sources.
func (g *Generator) Generate() Dataset {
	ds := Dataset{
		Employment: domain.Series{Measure: domain.MeasureEmployment},
		Turnover:   domain.Series{Measure: domain.MeasureTurnover},
	}

	for i := 0; i < g.opts.Firms; i++ {
		firm := g.firm(i + 1)
		ds.Firms = append(ds.Firms, firm)
		g.monthly(&ds, firm)
	}

	for i := 0; i < g.opts.Duplicates && i < len(ds.Firms); i++ {
		ds.Firms = append(ds.Firms, ds.Firms[g.faker.Number(0, g.opts.Firms-1)])
	}

	if g.opts.Orphans {
		g.monthly(&ds, domain.Firm{
			FirmID:     OrphanFirmID,
			SectorCode: g.faker.RandomString(sectors),
			RegionCode: g.faker.RandomString(regions),
		})
	}

	g.logger.Info("Synthetic dataset generated",
		slog.Int("firms", len(ds.Firms)),
		slog.Int("months", g.opts.Months),
		slog.Int("employment_rows", len(ds.Employment.Observations)),
		slog.Int("turnover_rows", len(ds.Turnover.Observations)),
		slog.Int64("seed", g.opts.Seed))
	return ds
}

func (g *Generator) firm(n int) domain.Firm {
	employees := g.faker.Number(1, 250)
	revenue := float64(employees) * g.faker.Float64Range(40_000, 180_000)
	f := domain.Firm{
		FirmID:              fmt.Sprintf("F%05d", n),
		RegionCode:          g.faker.RandomString(regions),
		SectorCode:          g.faker.RandomString(sectors),
		LegalForm:           g.faker.RandomString(legalForms),
		EmployeesRegistered: domain.Int(employees),
		FoundationYear:      domain.Int(g.faker.Number(1950, g.opts.Start.Year())),
		RevenueLastYear:     domain.Float(math.Round(revenue)),
	}

	if g.faker.Float64() < g.opts.DefectRate {
		switch g.faker.Number(0, 2) {
		case 0:
			f.RevenueLastYear = domain.Float(-*f.RevenueLastYear)
		case 1:
			f.FoundationYear = domain.Int(g.faker.RandomInt([]int{1066, 1850, g.opts.Start.Year() + 15}))
		default:
			f.EmployeesRegistered = nil
		}
	}
	return f
}

// monthly appends one observation per month for firm to both sources. Head
// count drifts slowly; turnover follows head count with a seasonal swing.
func (g *Generator) monthly(ds *Dataset, firm domain.Firm) {
	base := 10.0
	if firm.EmployeesRegistered != nil {
		base = float64(*firm.EmployeesRegistered)
	}
	perHead := g.faker.Float64Range(3_000, 15_000)
	amplitude := g.faker.Float64Range(0, 0.3)

	employees := base
	for m := 0; m < g.opts.Months; m++ {
		month := g.opts.Start.AddDate(0, m, 0)
		employees = math.Max(1, employees+g.faker.Float64Range(-0.03, 0.03)*employees)
		season := 1 + amplitude*math.Sin(2*math.Pi*float64(month.Month()-1)/12)
		turnover := employees * perHead * season * g.faker.Float64Range(0.9, 1.1)

		ds.Employment.Observations = append(ds.Employment.Observations, domain.MonthlyObservation{
			FirmID:     firm.FirmID,
			Month:      month,
			Value:      g.maybeNull(math.Round(employees)),
			SectorCode: firm.SectorCode,
			RegionCode: firm.RegionCode,
		})
		ds.Turnover.Observations = append(ds.Turnover.Observations, domain.MonthlyObservation{
			FirmID:     firm.FirmID,
			Month:      month,
			Value:      g.maybeNull(math.Round(turnover*100) / 100),
			SectorCode: firm.SectorCode,
			RegionCode: firm.RegionCode,
		})
	}
}

func (g *Generator) maybeNull(v float64) *float64 {
	if g.faker.Float64() < g.opts.NullRate {
		return nil
	}
	return domain.Float(v)
}

// Files names the written source files.
type Files struct {
	Registry   string
	Employment string
	Turnover   string
}

// Write writes ds as firms.csv, employment.csv and turnover.csv into dir.
func Write(ctx context.Context, dir string, ds Dataset, logger *slog.Logger) (Files, error) {
	files := Files{
		Registry:   filepath.Join(dir, "firms.csv"),
		Employment: filepath.Join(dir, "employment.csv"),
		Turnover:   filepath.Join(dir, "turnover.csv"),
	}
	w := exporter.NewCSVWriter(nil, logger)

	if err := w.WriteRegistry(files.Registry, ds.Firms); err != nil {
		return files, err
	}
	if err := ctx.Err(); err != nil {
		return files, err
	}
	if err := w.WriteSeries(files.Employment, ds.Employment); err != nil {
		return files, err
	}
	if err := ctx.Err(); err != nil {
		return files, err
	}
	if err := w.WriteSeries(files.Turnover, ds.Turnover); err != nil {
		return files, err
	}
	return files, nil
}
