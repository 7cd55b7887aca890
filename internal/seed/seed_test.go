package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technobid/auction-backend/pkg/types"
)

const sample = `
participants:
  - enrollmentId: " 22BCE001 "
    name: Asha
    phone: "9000000001"
  - enrollmentId: 22BCE002
    name: Bilal
catalogue:
  - id: b1
    name: Opener
    role: Batter
    phase: batters
    basePrice: 1000000
    importanceScore: 90
  - id: a1
    name: Gloves
    phase: ACCESSORIES
    basePrice: 200000
    importanceScore: 10
  - id: w1
    name: Spinner
    kind: player
    phase: BOWLERS
    basePrice: 500000
`

func TestParse(t *testing.T) {
	s, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	require.Len(t, s.Participants, 2)
	assert.Equal(t, "22BCE001", s.Participants[0].EnrollmentID)

	require.Len(t, s.Catalogue, 3)
	assert.Equal(t, types.PhaseBatters, s.Catalogue[0].Phase)
	assert.Equal(t, types.KindPlayer, s.Catalogue[0].Kind)
	assert.Equal(t, types.KindAccessory, s.Catalogue[1].Kind)
	assert.Equal(t, types.KindPlayer, s.Catalogue[2].Kind)
	assert.Equal(t, types.ItemAvailable, s.Catalogue[2].Status)
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"duplicate participant", "participants:\n  - enrollmentId: x\n  - enrollmentId: x\n", "listed twice"},
		{"missing id", "catalogue:\n  - name: x\n    phase: BATTERS\n    basePrice: 1\n", "id is required"},
		{"unknown phase", "catalogue:\n  - id: x\n    phase: FIELDERS\n    basePrice: 1\n", "unknown phase"},
		{"unknown kind", "catalogue:\n  - id: x\n    kind: BAT\n    phase: BATTERS\n    basePrice: 1\n", "unknown kind"},
		{"zero price", "catalogue:\n  - id: x\n    phase: BATTERS\n", "basePrice"},
		{"unknown field", "catalogue:\n  - id: x\n    colour: red\n", "colour"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Catalogue, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	s, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Catalogue)
}
