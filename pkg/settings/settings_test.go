package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	chain := Chain{
		Map{"Primary": "from-first"},
		Map{"Primary": "shadowed", "Secondary": "from-second"},
	}
	assert.Equal(t, "from-first", chain.Resolve("Primary"))
	assert.Equal(t, "from-second", chain.Resolve("Secondary"))
}

func TestChainFallsBackToLiteral(t *testing.T) {
	var chain Chain
	assert.Equal(t, "Region=r1", chain.Resolve("Region=r1"))

	chain = Chain{nil, Map{"Empty": ""}}
	assert.Equal(t, "Empty", chain.Resolve("Empty"))
}

func TestEnvSource(t *testing.T) {
	t.Setenv("BLOBREADER_TEST_CONN", "Region=r1")
	v, ok := Env.Lookup("BLOBREADER_TEST_CONN")
	assert.True(t, ok)
	assert.Equal(t, "Region=r1", v)

	_, ok = Env.Lookup("BLOBREADER_TEST_UNSET")
	assert.False(t, ok)
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.env")
	second := filepath.Join(dir, "b.env")
	require.NoError(t, os.WriteFile(first, []byte("STORE=Region=r1\nOTHER=x\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("STORE=Region=r2\n"), 0o600))

	m, err := DotEnv(first, second)
	require.NoError(t, err)
	assert.Equal(t, "Region=r2", Chain{m}.Resolve("STORE"))
	assert.Equal(t, "x", Chain{m}.Resolve("OTHER"))

	_, err = DotEnv(filepath.Join(dir, "missing.env"))
	assert.Error(t, err)
}

func TestViperSource(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
appSettings:
  Images: "Region=from-app-setting"
connectionStrings:
  Images: "Region=from-connection-strings"
  Backups: "Region=backups"
`)))
	src := Viper{V: v}

	got, ok := src.Lookup("Images")
	assert.True(t, ok)
	assert.Equal(t, "Region=from-app-setting", got)

	got, ok = src.Lookup("Backups")
	assert.True(t, ok)
	assert.Equal(t, "Region=backups", got)

	_, ok = src.Lookup("Unknown")
	assert.False(t, ok)
	_, ok = Viper{}.Lookup("Images")
	assert.False(t, ok)
}
