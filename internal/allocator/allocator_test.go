package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

func countByKind(ids []Identifier) map[domain.UnitKind]int {
	counts := make(map[domain.UnitKind]int)
	for _, id := range ids {
		counts[id.Kind]++
	}
	return counts
}

func TestAllocate_PartialFinalContainers(t *testing.T) {
	// 97 strips at 20 per box and 5 boxes per carton: the fifth box holds
	// only 17 strips, and the single carton holds all five boxes.
	ids, err := Allocate("BN2024A", PackSpec{StripsPerBox: 20, BoxesPerCarton: 5}, 97)
	require.NoError(t, err)

	counts := countByKind(ids)
	assert.Equal(t, 97, counts[domain.UnitKindStrip])
	assert.Equal(t, 5, counts[domain.UnitKindBox])
	assert.Equal(t, 1, counts[domain.UnitKindCarton])
	assert.Len(t, ids, 103)

	// The last box holds exactly the 17 leftover strips.
	lastBox := domain.UnitUID("BN2024A-B005")
	var leftover int
	for _, id := range ids {
		if id.Kind == domain.UnitKindStrip && id.Parent == lastBox {
			leftover++
		}
	}
	assert.Equal(t, 17, leftover)
}

func TestAllocate_ExplicitParentage(t *testing.T) {
	ids, err := Allocate("BN1", PackSpec{StripsPerBox: 2, BoxesPerCarton: 2}, 7)
	require.NoError(t, err)

	byUID := make(map[domain.UnitUID]Identifier, len(ids))
	for _, id := range ids {
		_, dup := byUID[id.UID]
		require.False(t, dup, "duplicate uid %s", id.UID)
		byUID[id.UID] = id
	}

	for _, id := range ids {
		switch id.Kind {
		case domain.UnitKindCarton:
			assert.Empty(t, id.Parent, "cartons are roots")
		case domain.UnitKindBox:
			parent, ok := byUID[id.Parent]
			require.True(t, ok, "box %s parent %s not emitted", id.UID, id.Parent)
			assert.Equal(t, domain.UnitKindCarton, parent.Kind)
		case domain.UnitKindStrip:
			parent, ok := byUID[id.Parent]
			require.True(t, ok, "strip %s parent %s not emitted", id.UID, id.Parent)
			assert.Equal(t, domain.UnitKindBox, parent.Kind)
		}
	}

	// 7 strips at 2 per box -> 4 boxes; 4 boxes at 2 per carton -> 2 cartons.
	counts := countByKind(ids)
	assert.Equal(t, 7, counts[domain.UnitKindStrip])
	assert.Equal(t, 4, counts[domain.UnitKindBox])
	assert.Equal(t, 2, counts[domain.UnitKindCarton])
}

func TestAllocate_Deterministic(t *testing.T) {
	first, err := Allocate("BN42", PackSpec{StripsPerBox: 10, BoxesPerCarton: 4}, 100)
	require.NoError(t, err)
	second, err := Allocate("BN42", PackSpec{StripsPerBox: 10, BoxesPerCarton: 4}, 100)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAllocate_UIDsPassVerificationParsing(t *testing.T) {
	ids, err := Allocate("BN7X", PackSpec{StripsPerBox: 3, BoxesPerCarton: 2}, 10)
	require.NoError(t, err)
	for _, id := range ids {
		_, err := domain.ParseUnitUID(string(id.UID))
		assert.NoError(t, err, "uid %s must be scannable", id.UID)
	}
}

func TestAllocate_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name        string
		batchNumber string
		spec        PackSpec
		strips      int
	}{
		{"zero strips", "BN1", PackSpec{StripsPerBox: 10, BoxesPerCarton: 2}, 0},
		{"negative strips", "BN1", PackSpec{StripsPerBox: 10, BoxesPerCarton: 2}, -5},
		{"zero strips per box", "BN1", PackSpec{StripsPerBox: 0, BoxesPerCarton: 2}, 10},
		{"zero boxes per carton", "BN1", PackSpec{StripsPerBox: 10, BoxesPerCarton: 0}, 10},
		{"lowercase batch number", "bn1", PackSpec{StripsPerBox: 10, BoxesPerCarton: 2}, 10},
		{"batch number with hyphen", "BN-1", PackSpec{StripsPerBox: 10, BoxesPerCarton: 2}, 10},
		{"empty batch number", "", PackSpec{StripsPerBox: 10, BoxesPerCarton: 2}, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Allocate(tc.batchNumber, tc.spec, tc.strips)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}
