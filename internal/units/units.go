// Package units converts between the host scene's length units and the 3MF
// model units.
package units

// SceneToMetre holds the scale of each supported scene length unit to a metre.
var SceneToMetre = map[string]float64{
	"thou":       0.0000254,
	"inch":       0.0254,
	"foot":       0.3048,
	"yard":       0.9144,
	"chain":      20.1168,
	"furlong":    201.168,
	"mile":       1609.344,
	"micrometer": 0.000001,
	"millimeter": 0.001,
	"centimeter": 0.01,
	"decimeter":  0.1,
	"meter":      1,
	"adaptive":   1,
	"dekameter":  10,
	"hectometer": 100,
	"kilometer":  1000,
}

// ModelToMetre holds the scale of each of 3MF's length units to a metre.
var ModelToMetre = map[string]float64{
	"micron":     0.000001,
	"millimeter": 0.001,
	"centimeter": 0.01,
	"inch":       0.0254,
	"foot":       0.3048,
	"meter":      1,
}

// DefaultModelUnit is assumed when a model document has no unit attribute.
const DefaultModelUnit = "millimeter"

// Settings describes the host's unit configuration.
type Settings interface {
	// LengthUnit returns the name of the scene's length unit, one of the
	// keys of SceneToMetre.
	LengthUnit() string
	// ScaleLength returns an extra scalar applied on top of the length
	// unit, or 0 when not configured.
	ScaleLength() float64
}

// ImportScale computes the factor to scale coordinates from a model document
// into the scene. A number below 1 means scene coordinates come out smaller
// than the file's.
func ImportScale(globalScale float64, settings Settings, modelUnit string) float64 {
	scale := globalScale
	if settings.ScaleLength() != 0 {
		scale /= settings.ScaleLength()
	}

	modelFactor, ok := ModelToMetre[modelUnit]
	if !ok {
		modelFactor = ModelToMetre[DefaultModelUnit]
	}
	sceneFactor, ok := SceneToMetre[settings.LengthUnit()]
	if !ok {
		sceneFactor = 1
	}

	scale *= modelFactor
	scale /= sceneFactor
	return scale
}

// ExportScale computes the factor to scale scene coordinates into the model
// document's unit. The written unit is always the 3MF default.
func ExportScale(globalScale float64, settings Settings) float64 {
	scale := globalScale

	sceneFactor, ok := SceneToMetre[settings.LengthUnit()]
	if !ok {
		sceneFactor = 1
	}

	scale /= ModelToMetre[DefaultModelUnit]
	scale *= sceneFactor
	return scale
}
