package domain

// UnitKind is the structural level of a traceable unit in the packaging
// hierarchy: cartons contain boxes, boxes contain strips.
type UnitKind string

const (
	UnitKindCarton UnitKind = "CARTON"
	UnitKindBox    UnitKind = "BOX"
	UnitKindStrip  UnitKind = "STRIP"
)

func (k UnitKind) Valid() bool {
	switch k {
	case UnitKindCarton, UnitKindBox, UnitKindStrip:
		return true
	}
	return false
}
