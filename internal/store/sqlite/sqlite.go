package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sbscli/internal/config"
	"sbscli/internal/errors"
	"sbscli/internal/store"
	"sbscli/pkg/contracts/domain"
)

// Store is the SQLite result store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the database at path and applies the schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewConfigError("sqlite: path is required", nil)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStorageError("sqlite: open failed", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError("sqlite: migration failed", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRun inserts or replaces the metadata of a run.
func (s *Store) SaveRun(ctx context.Context, run domain.RunRecord) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return errors.NewStorageError("sqlite: encode stages", err)
	}
	outputs, err := json.Marshal(run.Outputs)
	if err != nil {
		return errors.NewStorageError("sqlite: encode outputs", err)
	}

	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, status, started_at, finished_at, duration_ms,
			panel_rows, summary_rows, issue_count, error, outputs, stages
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			finished_at = excluded.finished_at,
			duration_ms = excluded.duration_ms,
			panel_rows = excluded.panel_rows,
			summary_rows = excluded.summary_rows,
			issue_count = excluded.issue_count,
			error = excluded.error,
			outputs = excluded.outputs,
			stages = excluded.stages
	`,
		run.RunID,
		string(run.Status),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		finished,
		run.DurationMS,
		run.PanelRows,
		run.SummaryRows,
		run.IssueCount,
		run.Error,
		string(outputs),
		string(stages),
	)
	if err != nil {
		return errors.NewStorageError("sqlite: save run", err).WithContext("run_id", run.RunID)
	}
	return nil
}

// LatestRun returns the most recently started run, or a NOT_FOUND error.
func (s *Store) LatestRun(ctx context.Context) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, status, started_at, finished_at, duration_ms,
			panel_rows, summary_rows, issue_count, error, outputs, stages
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1
	`)

	var (
		run               domain.RunRecord
		status, started   string
		finished          *string
		outputs, stageDoc string
	)
	err := row.Scan(&run.RunID, &status, &started, &finished, &run.DurationMS,
		&run.PanelRows, &run.SummaryRows, &run.IssueCount, &run.Error, &outputs, &stageDoc)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("run")
	}
	if err != nil {
		return nil, errors.NewStorageError("sqlite: load latest run", err)
	}

	run.Status = domain.RunStatus(status)
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, errors.NewStorageError("sqlite: decode started_at", err)
	}
	if finished != nil {
		t, err := time.Parse(time.RFC3339Nano, *finished)
		if err != nil {
			return nil, errors.NewStorageError("sqlite: decode finished_at", err)
		}
		run.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(outputs), &run.Outputs); err != nil {
		return nil, errors.NewStorageError("sqlite: decode outputs", err)
	}
	if err := json.Unmarshal([]byte(stageDoc), &run.Stages); err != nil {
		return nil, errors.NewStorageError("sqlite: decode stages", err)
	}
	return &run, nil
}

// SavePanel replaces the stored panel with the given one in a single transaction.
func (s *Store) SavePanel(ctx context.Context, runID string, panel []domain.PanelRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("sqlite: begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM panel`); err != nil {
		return errors.NewStorageError("sqlite: clear panel", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO panel (
			firm_id, month, run_id, employees_monthly, turnover_monthly, employees_firm,
			sector_code, region_code, legal_form, foundation_year,
			turnover_yoy, emp_growth, productivity, seasonal_index, month_num, year
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(firm_id, month) DO UPDATE SET
			run_id = excluded.run_id,
			employees_monthly = excluded.employees_monthly,
			turnover_monthly = excluded.turnover_monthly,
			employees_firm = excluded.employees_firm,
			sector_code = excluded.sector_code,
			region_code = excluded.region_code,
			legal_form = excluded.legal_form,
			foundation_year = excluded.foundation_year,
			turnover_yoy = excluded.turnover_yoy,
			emp_growth = excluded.emp_growth,
			productivity = excluded.productivity,
			seasonal_index = excluded.seasonal_index,
			month_num = excluded.month_num,
			year = excluded.year
	`)
	if err != nil {
		return errors.NewStorageError("sqlite: prepare panel insert", err)
	}
	defer stmt.Close()

	for i := range panel {
		r := panel[i]
		_, err = stmt.ExecContext(ctx,
			r.FirmID,
			r.Month.Format(config.DateLayout),
			runID,
			nullFloat(r.EmployeesMonthly),
			nullFloat(r.TurnoverMonthly),
			nullInt(r.EmployeesFirm),
			r.SectorCode,
			r.RegionCode,
			r.LegalForm,
			nullInt(r.FoundationYear),
			nullFloat(r.TurnoverYoY),
			nullFloat(r.EmpGrowth),
			nullFloat(r.Productivity),
			nullFloat(r.SeasonalIndex),
			r.MonthNum,
			r.Year,
		)
		if err != nil {
			return errors.NewStorageError("sqlite: insert panel row", err).
				WithContext("firm_id", r.FirmID).
				WithContext("month", r.Month.Format(config.MonthLayout))
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("sqlite: commit panel", err)
	}
	return nil
}

// FirmPanel returns the stored panel rows of one firm ordered by month.
func (s *Store) FirmPanel(ctx context.Context, firmID string) ([]domain.PanelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT firm_id, month, employees_monthly, turnover_monthly, employees_firm,
			sector_code, region_code, legal_form, foundation_year,
			turnover_yoy, emp_growth, productivity, seasonal_index, month_num, year
		FROM panel
		WHERE firm_id = ?
		ORDER BY month
	`, firmID)
	if err != nil {
		return nil, errors.NewStorageError("sqlite: query firm panel", err)
	}
	defer rows.Close()

	var out []domain.PanelRecord
	for rows.Next() {
		var (
			r     domain.PanelRecord
			month string
		)
		if err := rows.Scan(&r.FirmID, &month, &r.EmployeesMonthly, &r.TurnoverMonthly, &r.EmployeesFirm,
			&r.SectorCode, &r.RegionCode, &r.LegalForm, &r.FoundationYear,
			&r.TurnoverYoY, &r.EmpGrowth, &r.Productivity, &r.SeasonalIndex, &r.MonthNum, &r.Year); err != nil {
			return nil, errors.NewStorageError("sqlite: scan panel row", err)
		}
		if r.Month, err = time.Parse(config.DateLayout, month); err != nil {
			return nil, errors.NewStorageError("sqlite: decode month", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("sqlite: iterate panel", err)
	}
	return out, nil
}

// SaveSummaries replaces the stored summaries of every level present in tables.
func (s *Store) SaveSummaries(ctx context.Context, runID string, tables map[domain.AggregationLevel][]domain.IndicatorSummary) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("sqlite: begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indicator_summaries (
			level, year, sector_code, region_code, run_id, n_obs, n_firms,
			total_turnover, avg_turnover_per_firm, total_employees, avg_employees_per_firm,
			mean_productivity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(level, year, sector_code, region_code) DO UPDATE SET
			run_id = excluded.run_id,
			n_obs = excluded.n_obs,
			n_firms = excluded.n_firms,
			total_turnover = excluded.total_turnover,
			avg_turnover_per_firm = excluded.avg_turnover_per_firm,
			total_employees = excluded.total_employees,
			avg_employees_per_firm = excluded.avg_employees_per_firm,
			mean_productivity = excluded.mean_productivity
	`)
	if err != nil {
		return errors.NewStorageError("sqlite: prepare summary insert", err)
	}
	defer stmt.Close()

	for _, level := range domain.AllLevels() {
		rows, ok := tables[level]
		if !ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM indicator_summaries WHERE level = ?`, string(level)); err != nil {
			return errors.NewStorageError("sqlite: clear summaries", err).WithContext("level", string(level))
		}
		for _, sm := range rows {
			_, err = stmt.ExecContext(ctx,
				string(level),
				sm.Year,
				sm.SectorCode,
				sm.RegionCode,
				runID,
				sm.NObs,
				sm.NFirms,
				sm.TotalTurnover,
				sm.AvgTurnoverPerFirm,
				sm.TotalEmployees,
				sm.AvgEmployeesPerFirm,
				nullFloat(sm.MeanProductivity),
			)
			if err != nil {
				return errors.NewStorageError("sqlite: insert summary", err).WithContext("level", string(level))
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.NewStorageError("sqlite: commit summaries", err)
	}
	return nil
}

// ListSummaries returns the summaries matching filter ordered by year, sector and region.
func (s *Store) ListSummaries(ctx context.Context, filter store.SummaryFilter) ([]domain.IndicatorSummary, error) {
	where := []string{"level = ?"}
	args := []any{string(filter.Level)}
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	if filter.SectorCode != "" {
		where = append(where, "sector_code = ?")
		args = append(args, filter.SectorCode)
	}
	if filter.RegionCode != "" {
		where = append(where, "region_code = ?")
		args = append(args, filter.RegionCode)
	}

	query := fmt.Sprintf(`
		SELECT level, year, sector_code, region_code, n_obs, n_firms,
			total_turnover, avg_turnover_per_firm, total_employees, avg_employees_per_firm,
			mean_productivity
		FROM indicator_summaries
		WHERE %s
		ORDER BY year, sector_code, region_code
	`, strings.Join(where, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageError("sqlite: query summaries", err)
	}
	defer rows.Close()

	out := make([]domain.IndicatorSummary, 0)
	for rows.Next() {
		var (
			sm    domain.IndicatorSummary
			level string
		)
		if err := rows.Scan(&level, &sm.Year, &sm.SectorCode, &sm.RegionCode, &sm.NObs, &sm.NFirms,
			&sm.TotalTurnover, &sm.AvgTurnoverPerFirm, &sm.TotalEmployees, &sm.AvgEmployeesPerFirm,
			&sm.MeanProductivity); err != nil {
			return nil, errors.NewStorageError("sqlite: scan summary", err)
		}
		sm.Level = domain.AggregationLevel(level)
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("sqlite: iterate summaries", err)
	}
	return out, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			panel_rows INTEGER NOT NULL DEFAULT 0,
			summary_rows INTEGER NOT NULL DEFAULT 0,
			issue_count INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			outputs TEXT NOT NULL DEFAULT 'null',
			stages TEXT NOT NULL DEFAULT 'null'
		);`,
		`CREATE TABLE IF NOT EXISTS panel (
			firm_id TEXT NOT NULL,
			month TEXT NOT NULL,
			run_id TEXT NOT NULL,
			employees_monthly REAL,
			turnover_monthly REAL,
			employees_firm INTEGER,
			sector_code TEXT NOT NULL DEFAULT '',
			region_code TEXT NOT NULL DEFAULT '',
			legal_form TEXT NOT NULL DEFAULT '',
			foundation_year INTEGER,
			turnover_yoy REAL,
			emp_growth REAL,
			productivity REAL,
			seasonal_index REAL,
			month_num INTEGER NOT NULL,
			year INTEGER NOT NULL,
			PRIMARY KEY (firm_id, month)
		);`,
		`CREATE TABLE IF NOT EXISTS indicator_summaries (
			level TEXT NOT NULL,
			year INTEGER NOT NULL,
			sector_code TEXT NOT NULL DEFAULT '',
			region_code TEXT NOT NULL DEFAULT '',
			run_id TEXT NOT NULL,
			n_obs INTEGER NOT NULL,
			n_firms INTEGER NOT NULL,
			total_turnover REAL NOT NULL,
			avg_turnover_per_firm REAL NOT NULL,
			total_employees REAL NOT NULL,
			avg_employees_per_firm REAL NOT NULL,
			mean_productivity REAL,
			PRIMARY KEY (level, year, sector_code, region_code)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

// nullFloat and nullInt map missing values to SQL NULL.
func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}
