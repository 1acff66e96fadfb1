package entity

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStatus(t *testing.T) {
	cases := []struct {
		name   string
		usage  int
		max    int
		stored LicenseStatus
		want   LicenseStatus
	}{
		{"empty", 0, 1, LicenseAvailable, LicenseAvailable},
		{"partial", 3, 10, LicenseAvailable, LicensePartiallyUsed},
		{"full single seat", 1, 1, LicenseAvailable, LicenseUsed},
		{"full batch seat", 10, 10, LicensePartiallyUsed, LicenseUsed},
		{"expired overrides empty", 0, 1, LicenseExpired, LicenseExpired},
		{"expired overrides full", 1, 1, LicenseExpired, LicenseExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &License{UsageCount: tc.usage, MaxUsers: tc.max, Status: tc.stored}
			assert.Equal(t, tc.want, l.ComputeStatus())
		})
	}
}

func TestAttachDetach(t *testing.T) {
	now := time.Now().UTC()
	l := NewLicense("seller-1", 49.90, now)
	l.MaxUsers = 2

	require.NoError(t, l.Attach("student-1", now))
	assert.Equal(t, 1, l.UsageCount)
	assert.Len(t, l.Learners, l.UsageCount)
	assert.Equal(t, LicensePartiallyUsed, l.Status)

	require.NoError(t, l.Attach("student-2", now))
	assert.Equal(t, 2, l.UsageCount)
	assert.Len(t, l.Learners, l.UsageCount)
	assert.Equal(t, LicenseUsed, l.Status)

	err := l.Attach("student-3", now)
	require.Error(t, err)
	assert.Equal(t, 2, l.UsageCount)

	assert.True(t, l.Detach("student-1"))
	assert.Equal(t, 1, l.UsageCount)
	assert.Len(t, l.Learners, l.UsageCount)
	assert.Equal(t, LicensePartiallyUsed, l.Status)

	assert.True(t, l.Detach("student-2"))
	assert.Equal(t, 0, l.UsageCount)
	assert.Equal(t, LicenseAvailable, l.Status)

	assert.False(t, l.Detach("student-2"), "second detach finds no seat")
}

func TestAttachExpired(t *testing.T) {
	l := NewLicense("seller-1", 0, time.Now().UTC())
	l.Status = LicenseExpired
	require.Error(t, l.Attach("student-1", time.Now().UTC()))
	l.Refresh()
	assert.Equal(t, LicenseExpired, l.Status, "expired is sticky")
}

func TestLicenseKeyFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^MATC-\d{4}-WELCOME-[A-Z0-9]{6}-[1-9]\d*$`)
	key := LicenseKey(2026, 3)
	assert.Regexp(t, pattern, key)
	assert.Contains(t, key, "MATC-2026-WELCOME-")
}

func TestCountStatuses(t *testing.T) {
	licenses := []*License{
		{Status: LicenseAvailable},
		{Status: LicenseAvailable},
		{Status: LicensePartiallyUsed},
		{Status: LicenseUsed},
		{Status: LicenseExpired},
	}
	stats := CountStatuses(licenses)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Available)
	assert.Equal(t, 1, stats.Used)
	assert.Equal(t, 1, stats.Expired)
}
