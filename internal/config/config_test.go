package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("AIRTABLE_API_KEY", "key")
	t.Setenv("AIRTABLE_BASE_ID", "app123")
	t.Setenv("GOOGLE_API_KEY", "g")

	c, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "Vacants", c.AirtableTable)
	require.Equal(t, "0906", c.ParcelRegion)
	require.Equal(t, "115998", c.TaxAccountContext)
	require.Equal(t, time.Second, c.Pause)
	require.Equal(t, 0, c.HTTPRetryMax)
	require.Equal(t, []string{"Block", "Block #", "Block Number", "BlockNumber"}, c.BlockFields)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AIRTABLE_API_KEY", "key")
	t.Setenv("AIRTABLE_BASE_ID", "app123")
	t.Setenv("GOOGLE_API_KEY", "g")
	t.Setenv("ENRICH_PAUSE", "250ms")
	t.Setenv("ENRICH_INTERVAL", "3")
	t.Setenv("ENRICH_LOT_FIELDS", "Lot; Lot No")
	t.Setenv("AIRTABLE_TABLE", "Abandoned")

	c, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, c.Pause)
	require.Equal(t, 3*time.Second, c.Interval)
	require.Equal(t, []string{"Lot", "Lot No"}, c.LotFields)
	require.Equal(t, "Abandoned", c.AirtableTable)
}

func TestValidateReportsAllMissing(t *testing.T) {
	err := Default().Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "AIRTABLE_API_KEY")
	require.Contains(t, err.Error(), "AIRTABLE_BASE_ID")
	require.Contains(t, err.Error(), "GOOGLE_API_KEY")
}
