package filtercheck

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libregraph/filterkit/pkg/ldapfilter"
)

var logger = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: &logrus.TextFormatter{},
	Level:     logrus.InfoLevel,
}

const checkInput = "# sample filters\n" +
	"(cn=a)\n" +
	"\n" +
	"(&)\n" +
	"(cn=a\r\n" +
	"(objectClass>=z*) \n"

func TestCheck(t *testing.T) {
	c := New(logger)

	result := c.Check("(cn=Babs Jensen)")
	assert.True(t, result.Valid())
	assert.Equal(t, "(cn=Babs Jensen)", result.Model.String())

	result = c.Check("(cn=a")
	assert.False(t, result.Valid())
	assert.Equal(t, ldapfilter.Truncated, result.Model.State())

	stats := c.Stats.Clone()
	assert.Equal(t, uint64(2), stats.Parsed)
	assert.Equal(t, uint64(1), stats.Valid)
	assert.Equal(t, uint64(1), stats.Invalid)
	assert.Equal(t, uint64(1), stats.Truncated)
	assert.Equal(t, map[ldapfilter.ErrorKind]uint64{ldapfilter.UnbalancedParenthesis: 1}, stats.Diagnostics)
}

func TestCheckReader(t *testing.T) {
	c := New(logger)

	results, err := c.CheckReader(context.Background(), strings.NewReader(checkInput))
	require.NoError(t, err)
	require.Len(t, results, 4)

	lines := []int{}
	valid := []bool{}
	for _, result := range results {
		lines = append(lines, result.Line)
		valid = append(valid, result.Valid())
	}
	assert.Equal(t, []int{2, 4, 5, 6}, lines)
	assert.Equal(t, []bool{true, false, false, false}, valid)
	assert.Equal(t, "(objectClass>=z*) ", results[3].Model.UserProvidedString())

	stats := c.Stats.Clone()
	assert.Equal(t, uint64(4), stats.Parsed)
	assert.Equal(t, uint64(1), stats.Valid)
	assert.Equal(t, uint64(3), stats.Invalid)
	assert.Equal(t, uint64(1), stats.Truncated)
	assert.Equal(t, map[ldapfilter.ErrorKind]uint64{
		ldapfilter.EmptyFilterList:       1,
		ldapfilter.UnbalancedParenthesis: 1,
		ldapfilter.UnexpectedToken:       1,
		ldapfilter.TrailingContent:       1,
	}, stats.Diagnostics)
}

func TestCheckReaderCanceled(t *testing.T) {
	c := New(logger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := c.CheckReader(ctx, strings.NewReader(checkInput))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestCheckConcurrent(t *testing.T) {
	c := New(logger)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.Check("(&(objectClass=person)(cn=*))")
				c.Check("(|)")
			}
		}()
	}
	wg.Wait()

	stats := c.Stats.Clone()
	assert.Equal(t, uint64(800), stats.Parsed)
	assert.Equal(t, uint64(400), stats.Valid)
	assert.Equal(t, uint64(400), stats.Diagnostics[ldapfilter.EmptyFilterList])
}

func TestNilStats(t *testing.T) {
	var stats *Stats
	stats.countModel(ldapfilter.Parse("(cn=a)"))
	assert.Nil(t, stats.Clone())
}

func TestCollector(t *testing.T) {
	c := New(logger)
	_, err := c.CheckReader(context.Background(), strings.NewReader(checkInput))
	require.NoError(t, err)

	collector := NewCollector(c.Stats)
	assert.Equal(t, 4+len(ldapfilter.ErrorKinds), testutil.CollectAndCount(collector))

	expected := `
# HELP filtercheck_filters_total Total number of checked filters
# TYPE filtercheck_filters_total counter
filtercheck_filters_total 4
# HELP filtercheck_invalid_filters_total Total number of invalid filters
# TYPE filtercheck_invalid_filters_total counter
filtercheck_invalid_filters_total 3
`
	err = testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"filtercheck_filters_total", "filtercheck_invalid_filters_total")
	assert.NoError(t, err)
}

func TestWriteToTextfile(t *testing.T) {
	c := New(logger)
	c.Check("(cn=a)")
	c.Check("(cn=a)x")

	fn := filepath.Join(t.TempDir(), "filtercheck.prom")
	require.NoError(t, WriteToTextfile(fn, c.Stats))

	data, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Contains(t, string(data), "filtercheck_filters_total 2")
	assert.Contains(t, string(data), `filtercheck_diagnostics_total{kind="TrailingContent"} 1`)
	assert.Contains(t, string(data), `filtercheck_diagnostics_total{kind="InvalidEscapeSequence"} 0`)
}
