package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConfigDefaults(t *testing.T) {
	t.Setenv("GNAF_VINTAGE", "")
	t.Setenv("GNAF_STATES", "")
	t.Setenv("GNAF_PG_MAX_CONNECTIONS", "")

	require.NoError(t, InitializeConfig())
	config := GetConfig()

	assert.Equal(t, "202505", config.Vintage)
	assert.Equal(t, AllStates, config.States)
	assert.Equal(t, int32(8), config.Database.MaxConnections)
	assert.Equal(t, "gnaf_202505", config.GnafSchema())
	assert.Equal(t, "", config.PreviousGnafSchema())
}

func TestInitializeConfigFromEnv(t *testing.T) {
	t.Setenv("GNAF_VINTAGE", "202202")
	t.Setenv("GNAF_PREVIOUS_VINTAGE", "202111")
	t.Setenv("GNAF_STATES", "nsw, vic")

	require.NoError(t, InitializeConfig())
	config := GetConfig()

	assert.Equal(t, []string{"NSW", "VIC"}, config.States)
	assert.Equal(t, "raw_gnaf_202202", config.RawGnafSchema())
	assert.Equal(t, "admin_bdys_202202", config.AdminBdysSchema())
	assert.Equal(t, "gnaf_202111", config.PreviousGnafSchema())
	assert.Equal(t, "admin_bdys_202111", config.PreviousAdminBdysSchema())
}

func TestInitializeConfigRejectsBadVintage(t *testing.T) {
	t.Setenv("GNAF_VINTAGE", "may-2022")
	assert.Error(t, InitializeConfig())

	t.Setenv("GNAF_VINTAGE", "202202")
	t.Setenv("GNAF_PREVIOUS_VINTAGE", "21x111")
	assert.Error(t, InitializeConfig())
}
