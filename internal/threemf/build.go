package threemf

import (
	"github.com/philipparndt/scene3mf/internal/geometry"
	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/metadata"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/scene"
)

// ResolveBuild places a document's build items into the scene. scaleUnit is
// the factor translating the document's unit into the scene's unit; it is
// applied on top of each item's own transform.
//
// Items referencing unknown objects are skipped with a warning. Component
// references form a graph that may contain cycles; a cycle is cut at the
// point where an object would become its own ancestor.
func (g *Graph) ResolveBuild(doc *models.Model, scaleUnit float64, sc *scene.Scene) int {
	placed := 0
	scaling := geometry.Scaling(scaleUnit)

	for _, item := range doc.Build.Items {
		resObj, ok := g.Objects[item.ObjectID]
		if !ok {
			logger.Sugar.Warnf("build item refers to nonexistent object: %s", item.ObjectID)
			continue
		}

		itemMeta := metadata.NewStore()
		for _, group := range item.MetadataGroups {
			readMetadata(group.Metadata, itemMeta)
		}
		if item.PartNumber != "" {
			itemMeta.Set(metadata.NamePartNumber, metadata.Entry{
				Preserve: true,
				Datatype: "xs:string",
				Value:    item.PartNumber,
			})
		}

		transform := scaling.Mul(geometry.ParseTransform(item.Transform))
		placed += g.instantiate(resObj, transform, itemMeta, []string{item.ObjectID}, nil, sc)
	}
	return placed
}

// instantiate places one object resource and, recursively, its components.
// ancestors holds the resource IDs on the path from the build item down to
// this object and guards against reference cycles.
func (g *Graph) instantiate(resObj *ResourceObject, transform geometry.Mat4, itemMeta *metadata.Store, ancestors []string, parent *scene.Object, sc *scene.Scene) int {
	obj := scene.NewObject("3MF Object")
	obj.Parent = parent
	obj.Transform = transform

	obj.Metadata = resObj.Metadata.Clone()
	obj.Metadata.Merge(itemMeta)
	if title, ok := obj.Metadata.Get(metadata.NameTitle); ok {
		obj.Name = title.Value
		obj.Metadata.Delete(metadata.NameTitle)
	}
	if objectType, ok := obj.Metadata.Get(metadata.NameObjectType); ok {
		if objectType.Value == "support" || objectType.Value == "solidsupport" {
			obj.NoRender = true
		}
	}

	if len(resObj.Triangles) > 0 {
		obj.Mesh = buildMesh(resObj)
	}
	sc.Add(obj)
	placed := 1

	for _, component := range resObj.Components {
		if containsID(ancestors, component.ResourceID) {
			logger.Sugar.Warnf("recursive components in object %s", component.ResourceID)
			continue
		}
		child, ok := g.Objects[component.ResourceID]
		if !ok {
			logger.Sugar.Warnf("component refers to nonexistent object: %s", component.ResourceID)
			continue
		}
		childTransform := transform.Mul(component.Transform)
		childAncestors := append(ancestors, component.ResourceID)
		placed += g.instantiate(child, childTransform, itemMeta, childAncestors, obj, sc)
	}
	return placed
}

// buildMesh converts a resource object's geometry into a mesh with a material
// slot list. Slots are created in order of first use by a triangle.
func buildMesh(resObj *ResourceObject) *scene.Mesh {
	mesh := &scene.Mesh{
		Vertices:  make([]geometry.Vec3, len(resObj.Vertices)),
		Triangles: make([]scene.Triangle, 0, len(resObj.Triangles)),
	}
	copy(mesh.Vertices, resObj.Vertices)

	slots := map[string]int{}
	for i, triangle := range resObj.Triangles {
		slot := -1
		if material := resObj.TriangleMaterials[i]; material != nil {
			index, ok := slots[material.Name]
			if !ok {
				index = len(mesh.Materials)
				slots[material.Name] = index
				mesh.Materials = append(mesh.Materials, *material)
			}
			slot = index
		}
		mesh.Triangles = append(mesh.Triangles, scene.Triangle{
			V1:       triangle[0],
			V2:       triangle[1],
			V3:       triangle[2],
			Material: slot,
		})
	}
	return mesh
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
