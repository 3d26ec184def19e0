package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingNeverNegative(t *testing.T) {
	for limit := 0; limit <= 25; limit++ {
		for usage := 0; usage <= 40; usage++ {
			want := limit - usage
			if want < 0 {
				want = 0
			}
			if got := Remaining(usage, limit); got != want {
				t.Fatalf("Remaining(%d, %d) = %d, want %d", usage, limit, got, want)
			}
		}
	}
	assert.Equal(t, Unlimited, Remaining(100, Unlimited))
}

func TestYearMonth(t *testing.T) {
	ym := MonthOf(time.Date(2026, time.December, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-12", ym.String())
	assert.Equal(t, "2027-01", ym.AddMonths(1).String())
	assert.Equal(t, "2026-09", ym.AddMonths(-3).String())
	assert.True(t, ym.AddMonths(-1).Before(ym))
	assert.False(t, ym.Before(ym))
	assert.Equal(t, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), ym.Start())

	parsed, err := ParseYearMonth("2025-02")
	require.NoError(t, err)
	assert.Equal(t, YearMonth{Year: 2025, Month: time.February}, parsed)

	_, err = ParseYearMonth("2025/02")
	assert.Error(t, err)
}

func TestSnapshotUsageFor(t *testing.T) {
	var nilSnap *SubscriptionSnapshot
	_, ok := nilSnap.UsageFor(MeterAssessment)
	assert.False(t, ok)
	assert.Nil(t, nilSnap.Clone())

	snap := &SubscriptionSnapshot{Usage: []ServerUsage{{Feature: MeterCareerView, Limit: Unlimited}}}
	item, ok := snap.UsageFor(MeterCareerView)
	require.True(t, ok)
	assert.True(t, item.Unlimited())
}

func TestPaymentStatusTerminal(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentSuccess, PaymentFailed, PaymentCancelled} {
		assert.Truef(t, s.Terminal(), "expected %s to be terminal", s)
	}
	assert.False(t, PaymentPending.Terminal())
	assert.False(t, PaymentStatus("processing").Terminal())
}
