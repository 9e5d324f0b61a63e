package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "pharmatrace/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant: IDs must be
// valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePartyID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseBatchID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseTransferID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParsePartyID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, PartyID(valid), id)
	})
}

func TestParseUnitUID(t *testing.T) {
	t.Run("accepts allocator-shaped identifiers", func(t *testing.T) {
		for _, raw := range []string{
			"BN2024A-C01",
			"BN2024A-C01-B003",
			"BN2024A-C01-B003-S00017",
		} {
			uid, err := ParseUnitUID(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, UnitUID(raw), uid)
		}
	})

	t.Run("rejects malformed identifiers", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"   ",
			"lowercase-c01",
			"NOHYPHEN",
			"BN2024A-",
			"-C01",
			"BN2024A--C01",
			"BN2024A-C01;DROP TABLE units",
		} {
			_, err := ParseUnitUID(raw)
			require.Error(t, err, "raw=%q", raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "raw=%q", raw)
		}
	})

	t.Run("rejects oversized identifiers", func(t *testing.T) {
		long := "A-"
		for len(long) < maxUnitUIDLength+2 {
			long += "A"
		}
		_, err := ParseUnitUID(long)
		require.Error(t, err)
	})
}
