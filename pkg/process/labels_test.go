package process

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

func groupAsMap(t *testing.T, g *models.LabelGroup) map[string][]string {
	t.Helper()
	out := make(map[string][]string, g.Len())
	for _, label := range g.Labels() {
		values, ok := g.Get(label)
		require.True(t, ok)
		out[label] = values
	}
	return out
}

func TestGroupLabels(t *testing.T) {
	tests := []struct {
		name       string
		fragments  []string
		wantLabels []string
		want       map[string][]string
	}{
		{
			name:       "Basic",
			fragments:  []string{"A:", "1", "2", "B:", "3", "C:", "4", "5", "6"},
			wantLabels: []string{"A", "B", "C"},
			want:       map[string][]string{"A": {"1", "2"}, "B": {"3"}, "C": {"4", "5", "6"}},
		},
		{
			name:       "LabelWithoutValues",
			fragments:  []string{"A:", "B:", "1"},
			wantLabels: []string{"A", "B"},
			want:       map[string][]string{"A": {}, "B": {"1"}},
		},
		{
			name:       "TrailingLabel",
			fragments:  []string{"Sun:", "Full sun", "Soil:"},
			wantLabels: []string{"Sun", "Soil"},
			want:       map[string][]string{"Sun": {"Full sun"}, "Soil": {}},
		},
		{
			name:       "RepeatedLabelLastWriteWins",
			fragments:  []string{"A:", "1", "B:", "2", "A:", "3"},
			wantLabels: []string{"A", "B"},
			want:       map[string][]string{"A": {"3"}, "B": {"2"}},
		},
		{
			name:       "ColonInsideValueIsNotLabel",
			fragments:  []string{"Light:", "6:00 to noon"},
			wantLabels: []string{"Light"},
			want:       map[string][]string{"Light": {"6:00 to noon"}},
		},
		{
			name:       "Empty",
			fragments:  nil,
			wantLabels: []string{},
			want:       map[string][]string{},
		},
		{
			name:       "SingleNonLabel",
			fragments:  []string{"just text"},
			wantLabels: []string{},
			want:       map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := GroupLabels(tt.fragments)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabels, g.Labels())
			assert.Equal(t, tt.want, groupAsMap(t, g))
		})
	}
}

func TestGroupLabels_NonLabelFirstFails(t *testing.T) {
	g, err := GroupLabels([]string{"Intro text", "A:", "1"})
	require.Error(t, err)
	assert.Nil(t, g)
	assert.ErrorIs(t, err, utils.ErrMalformedInput)
}

func TestGroupLabels_StepCap(t *testing.T) {
	atCap := make([]string, 0, MaxLabelSteps)
	for i := 0; i < MaxLabelSteps; i++ {
		atCap = append(atCap, fmt.Sprintf("L%d:", i))
	}
	g, err := GroupLabels(atCap)
	require.NoError(t, err)
	assert.Equal(t, MaxLabelSteps, g.Len())

	// The cap is checked before each step, so a 101st group is rejected
	// even when it would be the last one.
	overCap := append(atCap, "Extra:")
	_, err = GroupLabels(overCap)
	assert.ErrorIs(t, err, utils.ErrMalformedInput)
}
