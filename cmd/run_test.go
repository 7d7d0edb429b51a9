package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSalesTeam(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team.json")
	content := `[{"name":"Paul Morel","role":"AE","linkedin":"https://linkedin.com/in/paulmorel"},{"name":"Claire Dubois"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	team, err := loadSalesTeam(path)
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "Paul Morel", team[0].Name)
	assert.Equal(t, "AE", team[0].Role)
	assert.Equal(t, "https://linkedin.com/in/paulmorel", team[0].LinkedIn)
	assert.Equal(t, "Claire Dubois", team[1].Name)
}

func TestLoadSalesTeam_EmptyPath(t *testing.T) {
	team, err := loadSalesTeam("")
	require.NoError(t, err)
	assert.Nil(t, team)
}

func TestLoadSalesTeam_FileMissing(t *testing.T) {
	_, err := loadSalesTeam(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read sales team file")
}

func TestLoadSalesTeam_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := loadSalesTeam(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse sales team file")
}

func TestRunCmd_Metadata(t *testing.T) {
	assert.Equal(t, "run", runCmd.Use)
	assert.NotEmpty(t, runCmd.Short)

	for _, name := range []string{"company", "domain", "deal", "stage", "country", "sales-team"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
}

func TestRootCmd_Metadata(t *testing.T) {
	assert.Equal(t, "audit-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)

	subs := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		subs[c.Name()] = true
	}
	for _, name := range []string{"run", "batch", "serve", "runs", "export", "migrate"} {
		assert.True(t, subs[name], name)
	}
}
