// Package inspect prints a human-readable summary of a 3MF package.
package inspect

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"

	"github.com/philipparndt/scene3mf/internal/geometry"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/threemf"
	"github.com/philipparndt/scene3mf/internal/ui"
)

// Inspector provides functionality to inspect 3MF files
type Inspector struct{}

// NewInspector creates a new Inspector
func NewInspector() *Inspector {
	return &Inspector{}
}

// Inspect reads and displays the contents of a 3MF file
func (i *Inspector) Inspect(filename string) error {
	if _, err := os.Stat(filename); err != nil {
		return fmt.Errorf("file not found: %s", filename)
	}

	ui.PrintHeader(fmt.Sprintf("Inspecting: %s", filename))

	// The model part is found by content type, not by its conventional path,
	// so packages with nonstandard layouts still inspect fine.
	files := threemf.ReadArchive(filename)
	modelParts := files[models.ModelMimeType]
	if len(modelParts) == 0 {
		return fmt.Errorf("no model document found in %s", filename)
	}

	for _, part := range modelParts {
		var doc models.Model
		if err := xml.Unmarshal(part.Data, &doc); err != nil {
			ui.PrintWarning(fmt.Sprintf("model document %s has malformed XML: %v", part.Name, err))
			continue
		}
		i.printModel(part.Name, &doc)
	}

	i.printExtraParts(files)
	return nil
}

func (i *Inspector) printModel(partName string, doc *models.Model) {
	ui.PrintHeader(fmt.Sprintf("Model: %s", partName))
	unit := doc.Unit
	if unit == "" {
		unit = "millimeter"
	}
	ui.PrintKeyValue("Unit", unit)
	if doc.Lang != "" {
		ui.PrintKeyValue("Language", doc.Lang)
	}
	if doc.RequiredExtensions != "" {
		ui.PrintWarning(fmt.Sprintf("Requires extensions: %s", doc.RequiredExtensions))
	}

	if len(doc.Metadata) > 0 {
		ui.PrintStep("Metadata:")
		for _, meta := range doc.Metadata {
			ui.PrintItem(1, fmt.Sprintf("%s: %s", meta.Name, meta.Value))
		}
	}

	i.printMaterials(doc)
	i.printBuild(doc)
	i.printObjects(doc)
}

func (i *Inspector) printMaterials(doc *models.Model) {
	if len(doc.Resources.BaseMaterials) == 0 {
		return
	}
	ui.PrintHeader("Materials:")
	for _, group := range doc.Resources.BaseMaterials {
		ui.PrintStep(fmt.Sprintf("Group %s (%d materials)", group.ID, len(group.Bases)))
		for _, base := range group.Bases {
			name := base.Name
			if name == "" {
				name = "(unnamed)"
			}
			if base.DisplayColor != "" {
				ui.PrintItem(1, fmt.Sprintf("%s %s", name, base.DisplayColor))
			} else {
				ui.PrintItem(1, name)
			}
		}
	}
}

func (i *Inspector) printBuild(doc *models.Model) {
	ui.PrintHeader("Build Items:")
	if len(doc.Build.Items) == 0 {
		ui.PrintStep("No items in build")
		return
	}
	for idx, item := range doc.Build.Items {
		line := fmt.Sprintf("%d. Object ID %s: %s", idx+1, item.ObjectID, i.objectName(doc, item.ObjectID))
		if item.PartNumber != "" {
			line += fmt.Sprintf(" (part number: %s)", item.PartNumber)
		}
		ui.PrintStep(line)
	}
}

// objectName returns the display name of an object resource. 3MF has no name
// attribute requirement, so most objects carry their name as Title metadata.
func (i *Inspector) objectName(doc *models.Model, objectID string) string {
	for idx := range doc.Resources.Objects {
		obj := &doc.Resources.Objects[idx]
		if obj.ID != objectID {
			continue
		}
		if obj.Name != "" {
			return obj.Name
		}
		for _, group := range obj.MetadataGroups {
			for _, meta := range group.Metadata {
				if meta.Name == "Title" && meta.Value != "" {
					return meta.Value
				}
			}
		}
		return "(unnamed)"
	}
	return "(not found)"
}

// printObjects prints the object hierarchy. Only objects nothing references
// as a component start a tree; the rest appear as children.
func (i *Inspector) printObjects(doc *models.Model) {
	ui.PrintHeader("Objects in Model:")

	componentIDs := map[string]bool{}
	for _, obj := range doc.Resources.Objects {
		if obj.Components == nil {
			continue
		}
		for _, comp := range obj.Components.Component {
			componentIDs[comp.ObjectID] = true
		}
	}

	count := 0
	for idx := range doc.Resources.Objects {
		obj := &doc.Resources.Objects[idx]
		if componentIDs[obj.ID] {
			continue
		}
		count++
		i.printObject(doc, obj, 0, []string{obj.ID})
	}
	if count == 0 {
		ui.PrintStep("No objects found")
	}
}

// printObject recursively prints an object and its components. ancestors
// guards against printing a cyclic component graph forever.
func (i *Inspector) printObject(doc *models.Model, obj *models.Object, depth int, ancestors []string) {
	line := fmt.Sprintf("%s (ID: %s)", i.objectName(doc, obj.ID), obj.ID)
	if obj.Type != "" {
		line += fmt.Sprintf(" [%s]", obj.Type)
	}
	if obj.Mesh != nil {
		line += meshSummary(obj.Mesh)
	}
	ui.PrintItem(depth, line)

	if obj.Components == nil {
		return
	}
	for _, comp := range obj.Components.Component {
		if contains(ancestors, comp.ObjectID) {
			ui.PrintItem(depth+1, fmt.Sprintf("(cycle back to ID %s)", comp.ObjectID))
			continue
		}
		for idx := range doc.Resources.Objects {
			child := &doc.Resources.Objects[idx]
			if child.ID == comp.ObjectID {
				i.printObject(doc, child, depth+1, append(ancestors, comp.ObjectID))
				break
			}
		}
	}
}

// meshSummary describes a mesh's size and extents.
func meshSummary(mesh *models.Mesh) string {
	summary := fmt.Sprintf(" - %d vertices, %d triangles", len(mesh.Vertices.Vertex), len(mesh.Triangles.Triangle))

	points := make([]geometry.Vec3, 0, len(mesh.Vertices.Vertex))
	for _, vertex := range mesh.Vertices.Vertex {
		point, ok := parseVertex(vertex)
		if !ok {
			return summary
		}
		points = append(points, point)
	}
	if box, ok := geometry.BoundingBoxOf(points, geometry.Identity()); ok {
		summary += fmt.Sprintf(", %s x %s x %s",
			geometry.FormatNumber(box.Width(), 2),
			geometry.FormatNumber(box.Height(), 2),
			geometry.FormatNumber(box.Depth(), 2))
	}
	return summary
}

func parseVertex(vertex models.Vertex) (geometry.Vec3, bool) {
	var point geometry.Vec3
	if _, err := fmt.Sscanf(vertex.X+" "+vertex.Y+" "+vertex.Z, "%g %g %g", &point.X, &point.Y, &point.Z); err != nil {
		return geometry.Vec3{}, false
	}
	return point, true
}

// printExtraParts lists the parts that are neither model nor relationship
// documents, e.g. thumbnails and print tickets.
func (i *Inspector) printExtraParts(files threemf.FilesByType) {
	var lines []string
	for mimeType, parts := range files {
		if mimeType == models.ModelMimeType || mimeType == models.RelsMimeType {
			continue
		}
		for _, part := range parts {
			label := mimeType
			if label == "" {
				label = "(no content type)"
			}
			lines = append(lines, fmt.Sprintf("%s - %s", part.Name, label))
		}
	}
	if len(lines) == 0 {
		return
	}
	sort.Strings(lines)
	ui.PrintHeader("Other Parts:")
	for _, line := range lines {
		ui.PrintItem(0, line)
	}
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
