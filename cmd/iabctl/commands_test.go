package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bivex/iab-client/internal/domain/valueobject"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"supported", "products", "purchases", "buy", "consume", "ack"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}

	buy, _, err := root.Find([]string{"buy"})
	require.NoError(t, err)
	assert.NotNil(t, buy.Flags().Lookup("replace"))
	assert.NotNil(t, buy.Flags().Lookup("payload"))
	assert.NotNil(t, buy.Flags().Lookup("timeout"))
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.env"), "purchases", "inapp"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestRootCommand_ArgumentCount(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"products", "inapp"})

	assert.Error(t, root.Execute())
}

func TestParseKind(t *testing.T) {
	kind, err := parseKind("subs")
	require.NoError(t, err)
	assert.Equal(t, valueobject.KindSubscription, kind)

	_, err = parseKind("lifetime")
	assert.ErrorIs(t, err, valueobject.ErrInvalidProductKind)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"total": 2}))
	assert.JSONEq(t, `{"total":2}`, buf.String())
}
