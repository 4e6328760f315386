package wip

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute, nil), mr
}

func fiscalQuery(month string) Query {
	return Query{
		ClientCode: "ACME",
		Period:     PeriodFilter{Mode: "fiscal", FiscalYear: "2024", FiscalMonth: month},
	}
}

func TestReportKeyDeterministic(t *testing.T) {
	a := reportKeyParts(fiscalQuery("November"), StrategyTransactions, true)
	b := reportKeyParts(fiscalQuery("November"), StrategyTransactions, true)
	assert.Equal(t, a, b)
}

func TestReportKeyVariesByEveryDimension(t *testing.T) {
	base := reportKeyParts(fiscalQuery("November"), StrategyTransactions, true)

	variants := []struct {
		name  string
		parts []string
	}{
		{"fiscalMonth", reportKeyParts(fiscalQuery("October"), StrategyTransactions, true)},
		{"client", reportKeyParts(Query{ClientCode: "OTHER", Period: fiscalQuery("November").Period}, StrategyTransactions, true)},
		{"strategy", reportKeyParts(fiscalQuery("November"), StrategyStoredAgg, true)},
		{"convention", reportKeyParts(fiscalQuery("November"), StrategyTransactions, false)},
		{"subGroup", reportKeyParts(Query{ClientCode: "ACME", Period: fiscalQuery("November").Period, SubGroup: "SG1"}, StrategyTransactions, true)},
	}
	for _, v := range variants {
		assert.NotEqual(t, base, v.parts, "dimension %s must produce a distinct key", v.name)
	}
}

func TestFetchJSONCachesValue(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	key := c.BuildKey(ctx, "wip", "report", "acme")

	calls := 0
	loader := func(context.Context) (interface{}, error) {
		calls++
		return map[string]string{"status": "computed"}, nil
	}

	var first, second map[string]string
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))

	assert.Equal(t, 1, calls, "second fetch must come from cache")
	assert.Equal(t, first, second)
}

func TestFetchJSONTreatsReadFailureAsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := c.BuildKey(ctx, "wip", "report", "acme")
	mr.Close()

	calls := 0
	var out map[string]string
	err := c.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		calls++
		return map[string]string{"status": "computed"}, nil
	})

	require.NoError(t, err, "cache outage must degrade to compute")
	assert.Equal(t, 1, calls)
	assert.Equal(t, "computed", out["status"])
}

func TestFetchJSONNilClientComputes(t *testing.T) {
	c := NewCache(nil, time.Minute, nil)

	var out map[string]string
	err := c.FetchJSON(context.Background(), "any", &out, func(context.Context) (interface{}, error) {
		return map[string]string{"status": "computed"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "computed", out["status"])
}

func TestBumpInvalidatesKeys(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	before := c.BuildKey(ctx, "wip", "report", "acme")
	require.NoError(t, c.Bump(ctx))
	after := c.BuildKey(ctx, "wip", "report", "acme")

	assert.NotEqual(t, before, after)
}
