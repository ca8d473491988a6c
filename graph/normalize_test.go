package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veritrail/ledger-engine/graph"
)

func TestNormalizeScalar(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantKey     string
		wantDisplay string
		wantOK      bool
	}{
		{"plain value", "Acme Co", "acme co", "Acme Co", true},
		{"surrounding whitespace", "  Acme Co  ", "acme co", "Acme Co", true},
		{"internal whitespace collapses", "Acme \t  Co", "acme co", "Acme Co", true},
		{"case folds in key only", "ACME CO", "acme co", "ACME CO", true},
		{"quantity with unit", " 500  kg ", "500 kg", "500 kg", true},
		{"empty is absent", "", "", "", false},
		{"whitespace only is absent", "  \t ", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := graph.NormalizeScalar(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantKey, v.Key)
				assert.Equal(t, tt.wantDisplay, v.Display)
			}
		})
	}
}

func TestNormalizeScalar_EquivalentInputsShareKey(t *testing.T) {
	// GIVEN: The same value with different casing and spacing
	// WHEN: Normalizing both
	// THEN: The comparison keys are equal

	a, ok := graph.NormalizeScalar("Acme   Co")
	assert.True(t, ok)
	b, ok := graph.NormalizeScalar("  acme co")
	assert.True(t, ok)
	assert.Equal(t, a.Key, b.Key)
}

func TestNormalizeDateSet_KeyIsOrderIndependent(t *testing.T) {
	// GIVEN: The same dates in two different orders
	// WHEN: Normalizing both sets
	// THEN: The keys are identical; display keeps encounter order

	a, ok := graph.NormalizeDateSet([]string{"2026-01-15", "2026-01-10"})
	assert.True(t, ok)
	b, ok := graph.NormalizeDateSet([]string{"2026-01-10", "2026-01-15"})
	assert.True(t, ok)

	assert.Equal(t, a.Key, b.Key)
	assert.Equal(t, "2026-01-10|2026-01-15", a.Key)
	assert.Equal(t, "2026-01-15, 2026-01-10", a.Display)
	assert.Equal(t, "2026-01-10, 2026-01-15", b.Display)
}

func TestNormalizeDateSet_DropsBlanksAndDuplicates(t *testing.T) {
	// GIVEN: A date list with blanks and a repeated value
	// WHEN: Normalizing
	// THEN: Blanks vanish and duplicates collapse

	v, ok := graph.NormalizeDateSet([]string{"2026-01-10", "", "  ", "2026-01-10 "})
	assert.True(t, ok)
	assert.Equal(t, "2026-01-10", v.Key)
	assert.Equal(t, "2026-01-10", v.Display)
}

func TestNormalizeDateSet_AllBlankIsAbsent(t *testing.T) {
	_, ok := graph.NormalizeDateSet([]string{"", "   "})
	assert.False(t, ok)

	_, ok = graph.NormalizeDateSet(nil)
	assert.False(t, ok)
}
