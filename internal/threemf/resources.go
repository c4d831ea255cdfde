package threemf

import (
	"strconv"
	"strings"

	"github.com/philipparndt/scene3mf/internal/geometry"
	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/metadata"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/scene"
)

// ResourceObject is an object resource collected from a model document. It is
// not placed in the scene until a build item (or a component of one)
// references it.
type ResourceObject struct {
	Vertices  []geometry.Vec3
	Triangles [][3]int
	// TriangleMaterials is parallel to Triangles. A nil entry means the
	// triangle has no material.
	TriangleMaterials []*scene.Material
	Components        []ResourceComponent
	Metadata          *metadata.Store
}

// ResourceComponent references another object resource, transformed relative
// to the referencing object.
type ResourceComponent struct {
	ResourceID string
	Transform  geometry.Mat4
}

// Graph accumulates the resources of all model documents of one import batch,
// so a later document's build items can reference an earlier document's
// objects.
type Graph struct {
	Objects map[string]*ResourceObject
	// Materials maps a material group resource ID to its materials by index.
	Materials map[string]map[int]scene.Material
}

// NewGraph creates an empty resource graph.
func NewGraph() *Graph {
	return &Graph{
		Objects:   map[string]*ResourceObject{},
		Materials: map[string]map[int]scene.Material{},
	}
}

// AddModel collects the resources of one model document into the graph.
// Malformed resources are skipped with a warning; they never abort the
// document.
func (g *Graph) AddModel(doc *models.Model) {
	g.readMaterials(doc)
	g.readObjects(doc)
}

func (g *Graph) readMaterials(doc *models.Model) {
	for _, group := range doc.Resources.BaseMaterials {
		if group.ID == "" {
			logger.Warn("basematerials element is missing its resource ID")
			continue
		}
		if _, ok := g.Materials[group.ID]; ok {
			logger.Sugar.Warnf("duplicate material resource ID: %s", group.ID)
			continue
		}

		materials := map[int]scene.Material{}
		for index, base := range group.Bases {
			name := base.Name
			if name == "" {
				name = "3MF Material"
			}
			materials[index] = scene.Material{
				Name:  name,
				Color: parseDisplayColor(base.DisplayColor),
			}
		}
		if len(materials) > 0 {
			g.Materials[group.ID] = materials
		}
	}
}

// parseDisplayColor parses an sRGB hex color of the form #RRGGBB or
// #RRGGBBAA. Anything else yields no color.
func parseDisplayColor(text string) *scene.Color {
	digits := strings.TrimPrefix(text, "#")
	if len(digits) != 6 && len(digits) != 8 {
		return nil
	}
	value, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return nil
	}
	if len(digits) == 6 {
		return &scene.Color{
			R: uint8(value >> 16),
			G: uint8(value >> 8),
			B: uint8(value),
			A: 255,
		}
	}
	return &scene.Color{
		R: uint8(value >> 24),
		G: uint8(value >> 16),
		B: uint8(value >> 8),
		A: uint8(value),
	}
}

func (g *Graph) readObjects(doc *models.Model) {
	for i := range doc.Resources.Objects {
		objElem := &doc.Resources.Objects[i]
		if objElem.ID == "" {
			logger.Warn("object resource is missing its resource ID")
			continue
		}
		if _, ok := g.Objects[objElem.ID]; ok {
			logger.Sugar.Warnf("duplicate object resource ID: %s", objElem.ID)
			continue
		}

		defaultMaterial := g.lookupDefaultMaterial(objElem)

		resObj := &ResourceObject{Metadata: metadata.NewStore()}
		if objElem.Mesh != nil {
			resObj.Vertices = readVertices(objElem.Mesh)
			resObj.Triangles, resObj.TriangleMaterials = g.readTriangles(objElem, resObj.Vertices, defaultMaterial)
		}
		resObj.Components = readComponents(objElem)

		for _, group := range objElem.MetadataGroups {
			readMetadata(group.Metadata, resObj.Metadata)
		}
		if objElem.PartNumber != "" {
			resObj.Metadata.Set(metadata.NamePartNumber, metadata.Entry{
				Preserve: true,
				Datatype: "xs:string",
				Value:    objElem.PartNumber,
			})
		}
		objectType := objElem.Type
		if objectType == "" {
			objectType = "model"
		}
		resObj.Metadata.Set(metadata.NameObjectType, metadata.Entry{
			Preserve: false,
			Datatype: "xs:string",
			Value:    objectType,
		})

		g.Objects[objElem.ID] = resObj
	}
}

// lookupDefaultMaterial resolves the object-level pid/pindex pair into the
// material every untagged triangle of the object uses, or nil when the object
// declares none (or declares it wrongly).
func (g *Graph) lookupDefaultMaterial(objElem *models.Object) *scene.Material {
	if objElem.PID == "" || objElem.PIndex == "" {
		return nil
	}
	index, err := strconv.Atoi(objElem.PIndex)
	if err != nil {
		logger.Sugar.Warnf("object %s has a malformed material index: %s", objElem.ID, objElem.PIndex)
		return nil
	}
	material, ok := g.Materials[objElem.PID][index]
	if !ok {
		logger.Sugar.Warnf("object %s refers to nonexistent material %s:%s", objElem.ID, objElem.PID, objElem.PIndex)
		return nil
	}
	return &material
}

// readVertices reads a mesh's vertex list. A coordinate that fails to parse
// falls back to 0 so the vertex indices of the triangle list stay valid.
func readVertices(mesh *models.Mesh) []geometry.Vec3 {
	vertices := make([]geometry.Vec3, 0, len(mesh.Vertices.Vertex))
	for _, vertex := range mesh.Vertices.Vertex {
		vertices = append(vertices, geometry.Vec3{
			X: parseCoordinate(vertex.X),
			Y: parseCoordinate(vertex.Y),
			Z: parseCoordinate(vertex.Z),
		})
	}
	return vertices
}

func parseCoordinate(text string) float64 {
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		logger.Sugar.Warnf("vertex coordinate is not a number: %q", text)
		return 0
	}
	return value
}

// readTriangles reads a mesh's triangle list along with the material of each
// triangle. A triangle with malformed or out-of-range vertex references is
// dropped whole; a triangle with a malformed material reference keeps its
// geometry and falls back to the object's default material.
func (g *Graph) readTriangles(objElem *models.Object, vertices []geometry.Vec3, defaultMaterial *scene.Material) ([][3]int, []*scene.Material) {
	mesh := objElem.Mesh
	triangles := make([][3]int, 0, len(mesh.Triangles.Triangle))
	materials := make([]*scene.Material, 0, len(mesh.Triangles.Triangle))

	for _, triangle := range mesh.Triangles.Triangle {
		v1, err1 := strconv.Atoi(triangle.V1)
		v2, err2 := strconv.Atoi(triangle.V2)
		v3, err3 := strconv.Atoi(triangle.V3)
		if err1 != nil || err2 != nil || err3 != nil {
			logger.Sugar.Warnf("skipping triangle of object %s with malformed vertex reference", objElem.ID)
			continue
		}
		if v1 < 0 || v2 < 0 || v3 < 0 || v1 >= len(vertices) || v2 >= len(vertices) || v3 >= len(vertices) {
			logger.Sugar.Warnf("skipping triangle of object %s referring to nonexistent vertices", objElem.ID)
			continue
		}

		material := defaultMaterial
		if triangle.P1 != "" {
			material = g.lookupTriangleMaterial(objElem, triangle, defaultMaterial)
		}

		triangles = append(triangles, [3]int{v1, v2, v3})
		materials = append(materials, material)
	}
	return triangles, materials
}

func (g *Graph) lookupTriangleMaterial(objElem *models.Object, triangle models.Triangle, defaultMaterial *scene.Material) *scene.Material {
	groupID := triangle.PID
	if groupID == "" {
		groupID = objElem.PID
	}
	index, err := strconv.Atoi(triangle.P1)
	if err != nil {
		logger.Sugar.Warnf("triangle of object %s has a malformed material index: %s", objElem.ID, triangle.P1)
		return defaultMaterial
	}
	material, ok := g.Materials[groupID][index]
	if !ok {
		logger.Sugar.Warnf("triangle of object %s refers to nonexistent material %s:%s", objElem.ID, groupID, triangle.P1)
		return defaultMaterial
	}
	return &material
}

func readComponents(objElem *models.Object) []ResourceComponent {
	if objElem.Components == nil {
		return nil
	}
	components := make([]ResourceComponent, 0, len(objElem.Components.Component))
	for _, component := range objElem.Components.Component {
		if component.ObjectID == "" {
			logger.Sugar.Warnf("component of object %s is missing its object ID", objElem.ID)
			continue
		}
		components = append(components, ResourceComponent{
			ResourceID: component.ObjectID,
			Transform:  geometry.ParseTransform(component.Transform),
		})
	}
	return components
}

// readMetadata stores a list of metadata elements into a store, applying the
// store's conflict rules. An entry without a name cannot round-trip and is
// skipped.
func readMetadata(entries []models.Metadata, store *metadata.Store) {
	for _, entry := range entries {
		if entry.Name == "" {
			logger.Warn("metadata entry without a name")
			continue
		}
		preserve := entry.Preserve != "" &&
			entry.Preserve != "0" &&
			!strings.EqualFold(entry.Preserve, "false")
		store.Set(entry.Name, metadata.Entry{
			Preserve: preserve,
			Datatype: entry.Type,
			Value:    entry.Value,
		})
	}
}
