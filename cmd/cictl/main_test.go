package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPlanKey(t *testing.T) {
	project, plan, err := splitPlanKey(" SORT-STUDENT7 ")
	require.NoError(t, err)
	assert.Equal(t, "SORT", project)
	assert.Equal(t, "STUDENT7", plan)

	_, _, err = splitPlanKey("SORT")
	assert.Error(t, err)
	_, _, err = splitPlanKey("-STUDENT7")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"poll", "status", "logs", "trigger", "plan"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	sub, _, err := rootCmd.Find([]string{"plan", "clone"})
	require.NoError(t, err)
	assert.Equal(t, "clone", sub.Name())
	assert.NotNil(t, sub.Flags().Lookup("participation"))
}

func TestParticipationFlag(t *testing.T) {
	planFlags.participationID = 0
	assert.Nil(t, participationFlag())

	planFlags.participationID = 42
	t.Cleanup(func() { planFlags.participationID = 0 })
	id := participationFlag()
	require.NotNil(t, id)
	assert.Equal(t, uint(42), *id)
}
