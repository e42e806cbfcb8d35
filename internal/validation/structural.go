package validation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"sbscli/internal/errors"
	"sbscli/pkg/contracts/domain"
)

// StageName identifies structural validation in reports and manifests.
const StageName = "validate"

// maxLoggedKeys bounds how many offending keys are written to a single log line.
const maxLoggedKeys = 20

// StructuralValidator checks key uniqueness of the registry and referential
// integrity of the monthly sources against it.
type StructuralValidator struct {
	logger *slog.Logger
	policy domain.Policy
}

// NewStructuralValidator creates a validator. An empty policy means warn.
func NewStructuralValidator(logger *slog.Logger, policy domain.Policy) *StructuralValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = domain.PolicyWarn
	}
	return &StructuralValidator{
		logger: logger,
		policy: policy,
	}
}

// Validate runs every structural check. The report is always returned; under
// the abort policy a non-empty report is also returned as a STRUCTURAL error.
func (v *StructuralValidator) Validate(ctx context.Context, firms []domain.Firm, sources ...domain.Series) (domain.Report, error) {
	report := domain.Report{Stage: StageName}

	registry, duplicates := indexRegistry(firms)
	if len(duplicates) > 0 {
		report.Add(domain.Issue{
			Kind:    domain.IssueStructural,
			Code:    domain.CodeDuplicateKey,
			Source:  "registry",
			Message: fmt.Sprintf("registry contains %d duplicated firm_id values", len(duplicates)),
			Count:   len(duplicates),
			Keys:    duplicates,
		})
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if orphans := orphanFirms(src, registry); len(orphans) > 0 {
			report.Add(domain.Issue{
				Kind:    domain.IssueStructural,
				Code:    domain.CodeOrphanKey,
				Source:  string(src.Measure),
				Message: fmt.Sprintf("%s source references %d firms missing from the registry", src.Measure, len(orphans)),
				Count:   len(orphans),
				Keys:    orphans,
			})
		}

		if dups := duplicateObservations(src); len(dups) > 0 {
			report.Add(domain.Issue{
				Kind:    domain.IssueStructural,
				Code:    domain.CodeDuplicateObservation,
				Source:  string(src.Measure),
				Message: fmt.Sprintf("%s source contains %d duplicated (firm_id, month) keys", src.Measure, len(dups)),
				Count:   len(dups),
				Keys:    dups,
			})
		}
	}

	for _, issue := range report.Issues {
		v.logger.WarnContext(ctx, "Structural violation",
			slog.String("code", issue.Code),
			slog.String("source", issue.Source),
			slog.Int("count", issue.Count),
			slog.Any("keys", truncateKeys(issue.Keys)))
	}

	v.logger.InfoContext(ctx, "Structural validation completed",
		slog.Int("firms", len(firms)),
		slog.Int("sources", len(sources)),
		slog.Int("issues", len(report.Issues)),
		slog.String("policy", string(v.policy)))

	if v.policy == domain.PolicyAbort && len(report.Issues) > 0 {
		return report, errors.NewStructuralError(
			fmt.Sprintf("structural validation found %d violations", len(report.Issues)),
			len(report.Issues))
	}
	return report, nil
}

// indexRegistry returns the set of registry IDs and the sorted IDs that occur more than once.
func indexRegistry(firms []domain.Firm) (map[string]struct{}, []string) {
	seen := make(map[string]int, len(firms))
	for _, f := range firms {
		seen[f.FirmID]++
	}

	ids := make(map[string]struct{}, len(seen))
	var duplicates []string
	for id, n := range seen {
		ids[id] = struct{}{}
		if n > 1 {
			duplicates = append(duplicates, id)
		}
	}
	sort.Strings(duplicates)
	return ids, duplicates
}

func orphanFirms(src domain.Series, registry map[string]struct{}) []string {
	var orphans []string
	for _, id := range src.FirmIDs() {
		if _, ok := registry[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return orphans
}

func duplicateObservations(src domain.Series) []string {
	seen := make(map[domain.FirmMonth]int, len(src.Observations))
	for _, obs := range src.Observations {
		seen[obs.Key()]++
	}

	var keys []string
	for k, n := range seen {
		if n > 1 {
			keys = append(keys, FormatKey(k))
		}
	}
	sort.Strings(keys)
	return keys
}

// FormatKey renders a firm-month key as "firm_id@YYYY-MM".
func FormatKey(k domain.FirmMonth) string {
	return k.FirmID + "@" + k.Month.Format("2006-01")
}

func truncateKeys(keys []string) []string {
	if len(keys) <= maxLoggedKeys {
		return keys
	}
	return keys[:maxLoggedKeys]
}
