package domain

import (
	"fmt"
	"time"
)

// NoDataLabel is shown on a metric card until its table has been uploaded.
const NoDataLabel = "Belum ada data"

// LoadedTable is a normalized table together with where it came from.
type LoadedTable struct {
	Table    *Table              `json:"table"`
	Source   string              `json:"source"`
	Digest   string              `json:"digest,omitempty"`
	LoadedAt time.Time           `json:"loaded_at"`
	Report   NormalizationReport `json:"report"`
	Warnings []Warning           `json:"warnings,omitempty"`
}

// DashboardContext carries the last table of each kind for one dashboard
// session. It is passed explicitly to the summary view.
type DashboardContext struct {
	SessionID            string               `json:"session_id"`
	Household            Option[*LoadedTable] `json:"household"`
	HouseholdSufficiency Option[*LoadedTable] `json:"household_sufficiency"`
	HamletSufficiency    Option[*LoadedTable] `json:"hamlet_sufficiency"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// NewDashboardContext returns an empty context for a session.
func NewDashboardContext(sessionID string, now time.Time) *DashboardContext {
	return &DashboardContext{
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Table returns the slot for kind.
func (c *DashboardContext) Table(kind TableKind) Option[*LoadedTable] {
	switch kind {
	case KindHousehold:
		return c.Household
	case KindHouseholdSufficiency:
		return c.HouseholdSufficiency
	case KindHamletSufficiency:
		return c.HamletSufficiency
	}
	return None[*LoadedTable]()
}

// SetTable replaces the slot for kind.
func (c *DashboardContext) SetTable(kind TableKind, t *LoadedTable, now time.Time) error {
	slot := Some(t)
	switch kind {
	case KindHousehold:
		c.Household = slot
	case KindHouseholdSufficiency:
		c.HouseholdSufficiency = slot
	case KindHamletSufficiency:
		c.HamletSufficiency = slot
	default:
		return fmt.Errorf("unknown table kind %q", kind)
	}
	c.UpdatedAt = now
	return nil
}

// MetricCard is one number on the dashboard overview.
type MetricCard struct {
	Key       string `json:"key"`
	Title     string `json:"title"`
	Value     string `json:"value"`
	Available bool   `json:"available"`
}

// Summary is the dashboard overview for a session.
type Summary struct {
	SessionID string       `json:"session_id"`
	Cards     []MetricCard `json:"cards"`
	Warnings  []Warning    `json:"warnings,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Card returns the card with the given key.
func (s Summary) Card(key string) Option[MetricCard] {
	for _, c := range s.Cards {
		if c.Key == key {
			return Some(c)
		}
	}
	return None[MetricCard]()
}
