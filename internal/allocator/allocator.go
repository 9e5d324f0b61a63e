// Package allocator mints the hierarchical identifier tree for a production
// run. It is a pure generation function: persistence of the resulting units
// belongs to the unit registry.
//
// Parent/child membership is emitted explicitly on every identifier rather
// than being inferred from the identifier text afterwards, so coincidental
// substring overlaps between batch numbers can never corrupt the hierarchy.
package allocator

import (
	"fmt"
	"regexp"

	"pharmatrace/pkg/domain"
	dErrors "pharmatrace/pkg/domain-errors"
)

// PackSpec describes the packaging configuration of a production run.
type PackSpec struct {
	StripsPerBox   int
	BoxesPerCarton int
}

// Identifier is one node of the minted hierarchy. Parent is empty for
// cartons and otherwise names the immediate containing unit.
type Identifier struct {
	UID    domain.UnitUID
	Kind   domain.UnitKind
	Parent domain.UnitUID
}

// batchNumberPattern keeps minted UIDs inside the lexical space that
// domain.ParseUnitUID accepts on the verification surface.
var batchNumberPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Allocate produces the complete identifier set for totalStrips strips
// packed per spec: every strip, every box, every carton, each with its
// explicit parent. The last box and carton are truncated so the strip count
// is exact. Output is deterministic for a given input.
func Allocate(batchNumber string, spec PackSpec, totalStrips int) ([]Identifier, error) {
	if !batchNumberPattern.MatchString(batchNumber) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "batch number must be uppercase alphanumeric")
	}
	if totalStrips <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total strip count must be positive")
	}
	if spec.StripsPerBox <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "strips per box must be positive")
	}
	if spec.BoxesPerCarton <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "boxes per carton must be positive")
	}

	totalBoxes := ceilDiv(totalStrips, spec.StripsPerBox)
	totalCartons := ceilDiv(totalBoxes, spec.BoxesPerCarton)

	out := make([]Identifier, 0, totalCartons+totalBoxes+totalStrips)

	stripSeq := 0
	boxSeq := 0
	for carton := 1; carton <= totalCartons; carton++ {
		cartonUID := domain.UnitUID(fmt.Sprintf("%s-C%02d", batchNumber, carton))
		out = append(out, Identifier{UID: cartonUID, Kind: domain.UnitKindCarton})

		for b := 0; b < spec.BoxesPerCarton && boxSeq < totalBoxes; b++ {
			boxSeq++
			boxUID := domain.UnitUID(fmt.Sprintf("%s-B%03d", batchNumber, boxSeq))
			out = append(out, Identifier{UID: boxUID, Kind: domain.UnitKindBox, Parent: cartonUID})

			for s := 0; s < spec.StripsPerBox && stripSeq < totalStrips; s++ {
				stripSeq++
				stripUID := domain.UnitUID(fmt.Sprintf("%s-S%05d", batchNumber, stripSeq))
				out = append(out, Identifier{UID: stripUID, Kind: domain.UnitKindStrip, Parent: boxUID})
			}
		}
	}

	return out, nil
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
