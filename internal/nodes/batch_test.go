package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/runtime/internal/record"
)

func TestAccumulateFixedSize(t *testing.T) {
	in := closedChan(record.Number(1), record.Number(2), record.Number(3))
	results := runNode(t, Accumulate{BatchSize: 2}, []In{in}, 1)
	require.Len(t, results[0], 2)
	first, _ := results[0][0].Slice()
	assert.Equal(t, []record.Record{record.Number(1), record.Number(2)}, first)
	second, _ := results[0][1].Slice()
	assert.Equal(t, []record.Record{record.Number(3)}, second)
}

func TestAccumulateUnboundedEmitsOneBatch(t *testing.T) {
	in := closedChan(record.Number(1), record.Number(2))
	results := runNode(t, Accumulate{}, []In{in}, 1)
	require.Len(t, results[0], 1)
	all, _ := results[0][0].Slice()
	assert.Equal(t, []record.Record{record.Number(1), record.Number(2)}, all)
}

func TestDedupeByDefaultJSONKey(t *testing.T) {
	in := closedChan(record.Number(1), record.Number(1), record.Number(2))
	results := runNode(t, Dedupe{}, []In{in}, 1)
	assert.Equal(t, []record.Record{record.Number(1), record.Number(2)}, results[0])
}

func TestDedupeByKeyPath(t *testing.T) {
	a := record.Map(map[string]record.Record{"id": record.Number(1), "v": record.String("a")})
	b := record.Map(map[string]record.Record{"id": record.Number(1), "v": record.String("b")})
	c := record.Map(map[string]record.Record{"id": record.Number(2), "v": record.String("c")})
	in := closedChan(a, b, c)
	results := runNode(t, Dedupe{Key: "id"}, []In{in}, 1)
	require.Len(t, results[0], 2)
}

func TestGroupBySumAndCount(t *testing.T) {
	rows := []record.Record{
		record.Map(map[string]record.Record{"region": record.String("east"), "amount": record.Number(10)}),
		record.Map(map[string]record.Record{"region": record.String("east"), "amount": record.Number(5)}),
		record.Map(map[string]record.Record{"region": record.String("west"), "amount": record.Number(3)}),
	}
	in := closedChan(rows...)
	node := GroupBy{
		Keys: []string{"region"},
		Aggregations: []GroupAggregation{
			{Column: "amount", Func: "sum", Alias: "total"},
			{Column: "amount", Func: "count", Alias: "n"},
		},
	}
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 2)

	totals := map[string]float64{}
	for _, r := range results[0] {
		m, _ := r.Map()
		region, _ := m["region"].StringValue()
		total, _ := m["total"].Number()
		totals[region] = total
	}
	assert.Equal(t, 15.0, totals["east"])
	assert.Equal(t, 3.0, totals["west"])
}

func TestStatsNestedPerColumnPerOperation(t *testing.T) {
	rows := []record.Record{
		record.Map(map[string]record.Record{"amount": record.Number(10)}),
		record.Map(map[string]record.Record{"amount": record.Number(20)}),
	}
	in := closedChan(rows...)
	node := Stats{Columns: []string{"amount"}, Operations: []string{"count", "sum", "avg"}}
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)

	out, _ := results[0][0].Map()
	amountStats, ok := out["amount"].Map()
	require.True(t, ok)

	count, _ := amountStats["count"].Number()
	sum, _ := amountStats["sum"].Number()
	avg, _ := amountStats["avg"].Number()
	assert.Equal(t, 2.0, count)
	assert.Equal(t, 30.0, sum)
	assert.Equal(t, 15.0, avg)
}

func TestStatsColumnWithNoNumericValuesIsNull(t *testing.T) {
	rows := []record.Record{
		record.Map(map[string]record.Record{"amount": record.String("n/a")}),
	}
	in := closedChan(rows...)
	node := Stats{Columns: []string{"amount"}, Operations: []string{"sum"}}
	results := runNode(t, node, []In{in}, 1)
	require.Len(t, results[0], 1)

	out, _ := results[0][0].Map()
	assert.True(t, out["amount"].IsNull())
}
