package dataprocessing

import (
	"fmt"
	"strconv"
	"time"

	"pangandash/pkg/contracts/domain"
)

// Metric card keys in display order.
const (
	CardTotalHouseholds = "total_rumah_tangga"
	CardSufficiency     = "kemandirian_tinggi"
	CardLatestData      = "data_terbaru"
)

// Summarize builds the dashboard overview from whatever tables the context
// holds. Every card falls back to domain.NoDataLabel.
func Summarize(dc *domain.DashboardContext) domain.Summary {
	s := domain.Summary{
		SessionID: dc.SessionID,
		UpdatedAt: dc.UpdatedAt,
	}

	households := domain.MetricCard{Key: CardTotalHouseholds, Title: "Total Rumah Tangga", Value: domain.NoDataLabel}
	if lt, ok := dc.Household.Get(); ok {
		households.Value = strconv.Itoa(lt.Table.Len())
		households.Available = true
	}

	sufficiency := domain.MetricCard{Key: CardSufficiency, Title: "Kemandirian Tinggi", Value: domain.NoDataLabel}
	if lt, ok := dc.HouseholdSufficiency.Get(); ok {
		value, warn := meanPercentage(lt.Table, ColumnKemandirian)
		if v, ok := value.Get(); ok {
			sufficiency.Value = v
			sufficiency.Available = true
		}
		s.Warnings = append(s.Warnings, warn...)
	}

	latest := domain.MetricCard{Key: CardLatestData, Title: "Data Terbaru", Value: domain.NoDataLabel}
	if lt, ok := dc.HamletSufficiency.Get(); ok {
		value, warn := latestValue(lt.Table, ColumnTahun)
		if v, ok := value.Get(); ok {
			latest.Value = v
			latest.Available = true
		}
		s.Warnings = append(s.Warnings, warn...)
	}

	s.Cards = []domain.MetricCard{households, sufficiency, latest}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	return s
}

func meanPercentage(t *domain.Table, column string) (domain.Option[string], []domain.Warning) {
	ref, ok := t.Lookup(column).Get()
	if !ok {
		return domain.None[string](), []domain.Warning{domain.MissingColumnWarning(column)}
	}
	nums := t.Numbers(ref)
	if len(nums) == 0 {
		return domain.None[string](), []domain.Warning{domain.NoNumericValuesWarning(column)}
	}
	return domain.Some(fmt.Sprintf("%.2f%%", mean(nums))), nil
}

// latestValue returns the largest number in column, or the largest text when
// the column holds no numbers at all.
func latestValue(t *domain.Table, column string) (domain.Option[string], []domain.Warning) {
	ref, ok := t.Lookup(column).Get()
	if !ok {
		return domain.None[string](), []domain.Warning{domain.MissingColumnWarning(column)}
	}
	if nums := t.Numbers(ref); len(nums) > 0 {
		return domain.Some(strconv.FormatFloat(maximum(nums), 'f', -1, 64)), nil
	}

	best := ""
	for _, v := range t.Values(ref) {
		if v.Kind == domain.ValueText && v.Text > best {
			best = v.Text
		}
	}
	if best == "" {
		return domain.None[string](), []domain.Warning{domain.NoNumericValuesWarning(column)}
	}
	return domain.Some(best), nil
}
