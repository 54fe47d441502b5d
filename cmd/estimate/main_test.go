package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asmit27rai/cardsight/internal/experiment"
	"github.com/asmit27rai/cardsight/pkg/estimates"
)

func TestParseFlags(t *testing.T) {
	ints, err := parseInts("1000, 20000,5")
	require.NoError(t, err)
	assert.Equal(t, []int{1000, 20000, 5}, ints)

	_, err = parseInts("10,x")
	assert.Error(t, err)

	exps, err := parseExponents("4,8, 16")
	require.NoError(t, err)
	assert.Equal(t, []uint8{4, 8, 16}, exps)

	_, err = parseExponents("300")
	assert.Error(t, err)
}

func TestPrintTables(t *testing.T) {
	results := []experiment.Result{
		{Size: 100, Exponent: 3, Algorithm: estimates.HyperLogLog, Exact: 90, Err: "bucket exponent out of range"},
		{Size: 100, Exponent: 8, Algorithm: estimates.HyperLogLog, Exact: 90, Estimate: 91.5, RelativeError: 0.0167, Duration: time.Millisecond},
	}

	var out bytes.Buffer
	printResults(&out, results)
	assert.Contains(t, out.String(), "algorithm")
	assert.Contains(t, out.String(), "bucket exponent out of range")
	assert.Contains(t, out.String(), "91.5")
	assert.Contains(t, out.String(), "1.67")

	out.Reset()
	printSummary(&out, experiment.Summarize(results))
	assert.Contains(t, out.String(), "hyperloglog")
	assert.Contains(t, out.String(), "1.67")
}
