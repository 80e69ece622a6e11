package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAlertQualifies(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name  string
		alert Alert
		want  bool
	}{
		{"signed active unexpired", Alert{Signed: true, Active: true, ExpiresAt: now.Add(time.Hour)}, true},
		{"unsigned", Alert{Signed: false, Active: true, ExpiresAt: now.Add(time.Hour)}, false},
		{"inactive", Alert{Signed: true, Active: false, ExpiresAt: now.Add(time.Hour)}, false},
		{"expired", Alert{Signed: true, Active: true, ExpiresAt: now.Add(-time.Hour)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.alert.Qualifies(now))
		})
	}
}

func TestAlertMatches(t *testing.T) {
	cases := []struct {
		name    string
		alert   Alert
		symbol  string
		apy     float64
		matches bool
	}{
		{"exact asset, apy above min", Alert{Asset: "USDC", MinAPY: 5}, "USDC", 6, true},
		{"exact asset, apy below min", Alert{Asset: "USDC", MinAPY: 5}, "USDC", 4, false},
		{"different asset", Alert{Asset: "USDC", MinAPY: 5}, "DAI", 10, false},
		{"ALL asset matches any symbol", Alert{Asset: AssetAll, MinAPY: 5}, "DAI", 5, true},
		{"apy exactly at min qualifies", Alert{Asset: AssetAll, MinAPY: 5}, "DAI", 5, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.matches, tc.alert.Matches(tc.symbol, tc.apy))
		})
	}
}
