package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPick_NoValidKeys(t *testing.T) {
	p := New([]string{"", "not-a-key", ""})

	_, err := p.Pick()
	require.ErrorIs(t, err, ErrNoCredentialsConfigured)
}

func TestPick_OnlyValidKeysSelected(t *testing.T) {
	p := New([]string{"sk-alpha", "", "bogus", "sk-bravo"})

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		cred, err := p.Pick()
		require.NoError(t, err)
		seen[cred.Value] = true
	}

	assert.True(t, seen["sk-alpha"])
	assert.True(t, seen["sk-bravo"])
	assert.Len(t, seen, 2)
}

func TestValidateAll_ReportsSlots(t *testing.T) {
	p := New([]string{"sk-alpha", "", "bogus", "sk-bravo", ""})

	report := p.ValidateAll()
	assert.Equal(t, 2, report.ValidCount)
	assert.Equal(t, []int{2, 5}, report.MissingSlots)
	assert.Equal(t, []int{3}, report.MalformedSlots)
}

func TestPick_PreservesSlotNumbers(t *testing.T) {
	p := New([]string{"", "", "sk-only"})

	cred, err := p.Pick()
	require.NoError(t, err)
	assert.Equal(t, 3, cred.Slot)
	assert.Equal(t, "sk-only", cred.Value)
}
