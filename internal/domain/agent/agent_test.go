package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_FirstRegistrationDefaults(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := Apply(nil, Registration{ID: "a1", Name: "Agent One"}, now)

	assert.Equal(t, "a1", a.ID)
	assert.Equal(t, "Agent One", a.Name)
	assert.Equal(t, DefaultType, a.AgentType)
	assert.Equal(t, DefaultVersion, a.Version)
	assert.True(t, a.Active)
	assert.Empty(t, a.Team)
	require.NotNil(t, a.Tags)
	assert.Empty(t, a.Tags)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, now, a.UpdatedAt)
}

func TestApply_ReRegistration(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)
	team := "platform"
	inactive := false

	prior := Apply(nil, Registration{ID: "a1", Name: "A", Team: &team, Tags: []string{"rfc"}}, first)

	t.Run("omitted fields keep stored values", func(t *testing.T) {
		next := Apply(&prior, Registration{ID: "a1", Name: "A2"}, second)

		assert.Equal(t, "a1", next.ID)
		assert.Equal(t, "A2", next.Name)
		assert.Equal(t, "platform", next.Team)
		assert.Equal(t, []string{"rfc"}, next.Tags)
		assert.True(t, next.Active)
		assert.Equal(t, first, next.CreatedAt)
		assert.Equal(t, second, next.UpdatedAt)
	})

	t.Run("supplied fields overwrite", func(t *testing.T) {
		version := "2.0.0"
		next := Apply(&prior, Registration{
			ID:      "a1",
			Name:    "A",
			Active:  &inactive,
			Version: &version,
			Tags:    []string{"ear", "ear", "", "node-red"},
		}, second)

		assert.False(t, next.Active)
		assert.Equal(t, "2.0.0", next.Version)
		assert.Equal(t, []string{"ear", "node-red"}, next.Tags)
		assert.Equal(t, first, next.CreatedAt)
	})

	t.Run("prior tags are not aliased", func(t *testing.T) {
		next := Apply(&prior, Registration{ID: "a1", Name: "A"}, second)
		next.Tags[0] = "mutated"
		assert.Equal(t, "rfc", prior.Tags[0])
	})
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "a1", NormalizeID("  a1\t"))
	assert.Equal(t, "a1", Apply(nil, Registration{ID: " a1 ", Name: "A"}, time.Now()).ID)
}
