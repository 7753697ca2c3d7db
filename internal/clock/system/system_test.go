package system

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/eu-innovation-monitor/internal/document"
	"github.com/JakeFAU/eu-innovation-monitor/internal/shard"
)

func TestClockSatisfiesDocumentClock(t *testing.T) {
	t.Parallel()

	var clk document.Clock = New()
	require.NotNil(t, clk)

	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.After(before) && got.Before(after), "expected %v within [%v, %v]", got, before, after)
}

func TestClockFeedsRecordTimestampsAndShardNames(t *testing.T) {
	t.Parallel()

	now := Clock{}.Now()

	stamp := document.FormatTime(now)
	assert.True(t, strings.HasSuffix(stamp, "Z"), "fetch_time %q should be UTC", stamp)

	year, week := now.ISOWeek()
	want := shard.WeekPath("outputs/docs", time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(week-1)))
	assert.Equal(t, want, shard.WeekPath("outputs/docs", now))
}
