package session

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pangandash/pkg/contracts/domain"
)

func TestRedisStoreKey(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { rdb.Close() })

	s := NewRedisStoreWithClient(rdb, RedisOptions{Prefix: "pangandash:session:", TTL: time.Hour}, nil)
	assert.Equal(t, "pangandash:session:abc", s.Key("abc"))

	bare := NewRedisStoreWithClient(rdb, RedisOptions{}, nil)
	assert.Equal(t, "abc", bare.Key("abc"))
}

func TestNewRedisStoreRequiresAddress(t *testing.T) {
	_, err := NewRedisStore(context.Background(), RedisOptions{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing redis address")
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, RedisOptions{Addr: "127.0.0.1:1"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestContextEncodingRoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	loaded := created.Add(5 * time.Minute)

	household := domain.NewTable("rt.csv", domain.KindHousehold, []string{"Nama Kepala Keluarga", "Tahun", "Pendapatan per Bulan (Rp)"})
	household.AppendRow([]domain.Value{domain.Text("Budi"), domain.Text("2023"), domain.Number(1500000)})
	household.AppendRow([]domain.Value{domain.Text("Siti"), domain.Number(2023), domain.Missing()})

	hamlet := domain.NewTable("dusun.xlsx", domain.KindHamletSufficiency, []string{"Dusun", "Tahun"})
	hamlet.AppendRow([]domain.Value{domain.Text("Krajan")})

	dc := domain.NewDashboardContext("s1", created)
	require.NoError(t, dc.SetTable(domain.KindHousehold, &domain.LoadedTable{
		Table:    household,
		Source:   "rt.csv",
		Digest:   "abc123",
		LoadedAt: loaded,
		Report: domain.NormalizationReport{
			Normalized: []string{"Nama Kepala Keluarga", "Pendapatan per Bulan (Rp)"},
			Absent:     []string{"Dusun"},
			Coerced:    map[string]int{"Pendapatan per Bulan (Rp)": 1},
		},
		Warnings: []domain.Warning{{Code: domain.WarnMissingColumn, Column: "Dusun", Message: "Kolom 'Dusun' tidak ditemukan dalam data."}},
	}, loaded))
	require.NoError(t, dc.SetTable(domain.KindHamletSufficiency, &domain.LoadedTable{
		Table:    hamlet,
		Source:   "dusun.xlsx",
		LoadedAt: loaded,
		Report:   domain.NormalizationReport{Normalized: []string{}, Absent: []string{}, Coerced: map[string]int{}},
	}, loaded))

	raw, err := encodeContext(dc)
	require.NoError(t, err)
	decoded, err := decodeContext("s1", raw)
	require.NoError(t, err)

	assert.Equal(t, dc, decoded)
	assert.False(t, decoded.HouseholdSufficiency.IsPresent(), "empty slots stay absent")

	got, ok := decoded.Household.Get()
	require.True(t, ok)
	assert.Equal(t, domain.Text("2023"), got.Table.Rows[0][1], "numeric-looking text keeps its kind")
	assert.Equal(t, domain.Number(2023), got.Table.Rows[1][1])
	assert.True(t, got.Table.Rows[1][2].IsMissing())

	dusun, ok := decoded.HamletSufficiency.Get()
	require.True(t, ok)
	assert.True(t, dusun.Table.Rows[0][1].IsMissing(), "padded cells decode as missing")
}

func TestDecodeContextRejectsBadCells(t *testing.T) {
	_, err := decodeContext("s1", []byte(`{"session_id":"s1","household":{"table":{"rows":[[true]]}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode session s1")
}
