package datasets

// Material is a surface category found in the mask annotations, with its
// estimated friction coefficient.
type Material struct {
	Name     string
	Friction float32
}

// UnknownFriction is written to mapped masks for category codes that are not
// in Materials. It is outside [0, 1] so it can be masked out of a loss.
const UnknownFriction float32 = -1

// Materials lists the mask categories. The category code stored in a mask
// pixel is the index of the material in this slice, so the order must not
// change. Categories without friction data have coefficient 0.
var Materials = []Material{
	{"none", 0},
	{"hide", 0},
	{"bone", 0.4},
	{"brick", 0.7},
	{"cardboard", 0.5},
	{"carpet", 0.3},
	{"ceilingtile", 0.6},
	{"ceramic", 0.97},
	{"chalkboard", 0.6},
	{"clutter", 0.2},
	{"concrete", 0.8},
	{"cork", 0.4},
	{"engineeredstone", 0.85},
	{"fabric", 0},
	{"fiberglass", 0.5},
	{"fire", 0},
	{"foliage", 0.3},
	{"food", 0.2},
	{"fur", 0.4},
	{"gemstone", 0.9},
	{"glass", 0.8},
	{"hair", 0.2},
	{"icannottell", 0},
	{"ice", 0.1},
	{"leather", 0.4},
	{"liquid", 0.1},
	{"metal", 0.8},
	{"mirror", 0.9},
	{"notonlist", 0},
	{"paint", 0},
	{"paper", 0},
	{"pearl", 0.6},
	{"photograph", 0.1},
	{"clearplastic", 0.5},
	{"plastic", 0.6},
	{"rubber", 0.7},
	{"sand", 0},
	{"skin", 0.5},
	{"sky", 0},
	{"snow", 0},
	{"soap", 0.3},
	{"soil", 0.6},
	{"sponge", 0.2},
	{"stone", 0.8},
	{"polishedstone", 0.9},
	{"styrofoam", 0.2},
	{"tile", 0.7},
	{"wallpaper", 0.1},
	{"water", 0},
	{"wax", 0},
	{"whiteboard", 0.5},
	{"wicker", 0.4},
	{"wood", 0.88},
	{"treewood", 0.88},
	{"badpolygon", 0},
	{"multiplematerials", 0},
	{"asphalt", 0.74},
}

// frictionTable is a dense lookup from 8-bit category code to friction,
// built once from Materials.
var frictionTable = buildFrictionTable()

func buildFrictionTable() (table [256]float32) {
	for code := range table {
		table[code] = UnknownFriction
	}
	for code, m := range Materials {
		table[code] = m.Friction
	}
	return
}

// FrictionTable returns a copy of the dense code to friction lookup. Codes
// not in Materials map to UnknownFriction.
func FrictionTable() [256]float32 {
	return frictionTable
}

// FrictionOf returns the friction coefficient of the given category code, and
// whether the code is known.
func FrictionOf(code int) (float32, bool) {
	if code < 0 || code >= len(Materials) {
		return UnknownFriction, false
	}
	return Materials[code].Friction, true
}

// MaterialByName returns the material with the given name and its category
// code.
func MaterialByName(name string) (Material, int, bool) {
	for code, m := range Materials {
		if m.Name == name {
			return m, code, true
		}
	}
	return Material{}, -1, false
}

// MapFriction returns a new mask where every category code is replaced by its
// friction coefficient. The input is not modified. It also returns the number
// of pixels whose code is not a known material.
func MapFriction(codes Mask) (Mask, int) {
	out := Mask{Width: codes.Width, Height: codes.Height, Values: make([]float32, len(codes.Values))}
	unknown := 0
	for i, v := range codes.Values {
		code := int(v)
		if float32(code) != v || code < 0 || code >= len(frictionTable) {
			out.Values[i] = UnknownFriction
			unknown++
			continue
		}
		out.Values[i] = frictionTable[code]
		if code >= len(Materials) {
			unknown++
		}
	}
	return out, unknown
}
