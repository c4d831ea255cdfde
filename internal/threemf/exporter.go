package threemf

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"

	"github.com/philipparndt/scene3mf/internal/annotations"
	"github.com/philipparndt/scene3mf/internal/geometry"
	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/metadata"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/scene"
	"github.com/philipparndt/scene3mf/internal/units"
)

// DefaultPrecision is the number of decimals written for vertex coordinates
// when ExportOptions does not say otherwise.
const DefaultPrecision = 4

// ExportOptions tune one export.
type ExportOptions struct {
	// GlobalScale is an extra scale factor applied to everything exported.
	// Zero means 1.
	GlobalScale float64
	// Precision is the number of decimals for vertex coordinates. Zero means
	// DefaultPrecision.
	Precision int
}

// Exporter writes a scene out as a 3MF package.
type Exporter struct {
	units units.Settings
	opts  ExportOptions

	// Per-session resource numbering and material bookkeeping.
	nextResourceID  int
	materialGroupID string
	materialIndex   map[string]int
	objects         []*models.Object
	written         int
}

// NewExporter creates an exporter for a host with the given unit settings.
func NewExporter(unitSettings units.Settings, opts ExportOptions) *Exporter {
	if opts.GlobalScale == 0 {
		opts.GlobalScale = 1
	}
	if opts.Precision <= 0 {
		opts.Precision = DefaultPrecision
	}
	return &Exporter{units: unitSettings, opts: opts}
}

// Export writes the scene to filePath and returns the number of object
// resources written. A failure to write is recoverable for the caller: the
// scene is untouched and no stream is left open.
func (e *Exporter) Export(filePath string, sc *scene.Scene) (int, error) {
	e.nextResourceID = 1
	e.materialGroupID = ""
	e.materialIndex = map[string]int{}
	e.objects = nil
	e.written = 0

	doc := &models.Model{
		Xmlns: models.ModelNamespace,
		Unit:  units.DefaultModelUnit,
		Lang:  "en-US",
	}
	doc.Metadata = metadataElements(sc.Metadata)

	materialGroup := e.collectMaterials(sc)
	if materialGroup != nil {
		doc.Resources.BaseMaterials = []models.BaseMaterials{*materialGroup}
	}

	scale := units.ExportScale(e.opts.GlobalScale, e.units)
	scaling := geometry.Scaling(scale)
	for _, root := range sc.Roots() {
		id, world := e.writeObjectResource(root, sc)

		item := models.Item{ObjectID: id}
		transform := scaling.Mul(world)
		if !transform.IsIdentity() {
			item.Transform = geometry.FormatTransform(transform)
		}

		itemMeta := root.Metadata.Clone()
		itemMeta.Delete(metadata.NameTitle)
		itemMeta.Set(metadata.NameTitle, metadata.Entry{
			Preserve: true,
			Datatype: "xs:string",
			Value:    root.Name,
		})
		if partNumber, ok := itemMeta.Get(metadata.NamePartNumber); ok {
			item.PartNumber = partNumber.Value
			itemMeta.Delete(metadata.NamePartNumber)
		}
		if itemMeta.Len() > 0 {
			item.MetadataGroups = []models.MetadataGroup{{Metadata: metadataElements(itemMeta)}}
		}
		doc.Build.Items = append(doc.Build.Items, item)
	}

	for _, objElem := range e.objects {
		doc.Resources.Objects = append(doc.Resources.Objects, *objElem)
	}

	if err := e.writeArchive(filePath, doc, sc); err != nil {
		return 0, err
	}
	logger.Sugar.Infof("exported %d objects to %s", e.written, filePath)
	return e.written, nil
}

func (e *Exporter) claimResourceID() string {
	id := strconv.Itoa(e.nextResourceID)
	e.nextResourceID++
	return id
}

// collectMaterials gathers the materials of every mesh in the scene into one
// basematerials group and records each material's index in it. The first
// occurrence of a name determines its color. Returns nil when the scene has
// no materials; the group's resource ID is consumed either way.
func (e *Exporter) collectMaterials(sc *scene.Scene) *models.BaseMaterials {
	group := &models.BaseMaterials{ID: e.claimResourceID()}
	for _, obj := range sc.Objects {
		if obj.Mesh == nil {
			continue
		}
		for _, material := range obj.Mesh.Materials {
			if _, ok := e.materialIndex[material.Name]; ok {
				continue
			}
			e.materialIndex[material.Name] = len(group.Bases)
			group.Bases = append(group.Bases, models.Base{
				Name:         material.Name,
				DisplayColor: formatDisplayColor(material.Color),
			})
		}
	}
	if len(group.Bases) == 0 {
		return nil
	}
	e.materialGroupID = group.ID
	return group
}

func formatDisplayColor(color *scene.Color) string {
	if color == nil {
		return ""
	}
	if color.A == 255 { // Completely opaque. Leave out the alpha component.
		return fmt.Sprintf("#%02X%02X%02X", color.R, color.G, color.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", color.R, color.G, color.B, color.A)
}

// writeObjectResource serializes one object and, recursively, its children
// into object resources. It returns the resource ID and the object's world
// transform, which the caller translates into its own frame.
//
// An object holding both a mesh and children cannot be expressed as a single
// resource: the mesh moves to a second, synthetic resource referenced as an
// extra component.
func (e *Exporter) writeObjectResource(obj *scene.Object, sc *scene.Scene) (string, geometry.Mat4) {
	objElem := &models.Object{ID: e.claimResourceID()}
	e.objects = append(e.objects, objElem)
	e.written++

	md := obj.Metadata.Clone()
	md.Delete(metadata.NameTitle)
	md.Set(metadata.NameTitle, metadata.Entry{
		Preserve: true,
		Datatype: "xs:string",
		Value:    obj.Name,
	})
	if objectType, ok := md.Get(metadata.NameObjectType); ok {
		if objectType.Value != "model" {
			objElem.Type = objectType.Value
		}
		md.Delete(metadata.NameObjectType)
	}

	world := obj.Transform
	children := sc.Children(obj)
	if len(children) > 0 {
		objElem.Components = &models.Components{}
		parentInverse := world.InvertedSafe()
		for _, child := range children {
			childID, childWorld := e.writeObjectResource(child, sc)
			component := models.Component{ObjectID: childID}
			relative := parentInverse.Mul(childWorld)
			if !relative.IsIdentity() {
				component.Transform = geometry.FormatTransform(relative)
			}
			objElem.Components.Component = append(objElem.Components.Component, component)
		}
	}

	mesh := obj.Mesh
	if mesh != nil && len(mesh.Vertices) > 0 {
		meshElem := objElem
		if len(children) > 0 {
			meshElem = &models.Object{ID: e.claimResourceID()}
			e.objects = append(e.objects, meshElem)
			objElem.Components.Component = append(objElem.Components.Component, models.Component{ObjectID: meshElem.ID})
		}

		defaultIndex := -1
		if slot := mostCommonSlot(mesh); slot >= 0 {
			defaultIndex = e.materialIndex[mesh.Materials[slot].Name]
			objElem.PID = e.materialGroupID
			objElem.PIndex = strconv.Itoa(defaultIndex)
		}
		meshElem.Mesh = e.writeMesh(mesh, defaultIndex)

		if partNumber, ok := md.Get(metadata.NamePartNumber); ok {
			meshElem.PartNumber = partNumber.Value
			md.Delete(metadata.NamePartNumber)
		}
	}

	if md.Len() > 0 {
		objElem.MetadataGroups = []models.MetadataGroup{{Metadata: metadataElements(md)}}
	}
	return objElem.ID, world
}

// mostCommonSlot returns the material slot used by the most triangles, or -1
// when no triangle uses a valid slot. Ties go to the slot seen first.
func mostCommonSlot(mesh *scene.Mesh) int {
	counts := map[int]int{}
	best := -1
	for _, triangle := range mesh.Triangles {
		slot := triangle.Material
		if slot < 0 || slot >= len(mesh.Materials) {
			continue
		}
		counts[slot]++
		if best < 0 || counts[slot] > counts[best] {
			best = slot
		}
	}
	return best
}

// writeMesh serializes geometry. Triangles on the object's default material
// carry no material attribute of their own.
func (e *Exporter) writeMesh(mesh *scene.Mesh, defaultIndex int) *models.Mesh {
	result := &models.Mesh{}
	for _, vertex := range mesh.Vertices {
		result.Vertices.Vertex = append(result.Vertices.Vertex, models.Vertex{
			X: geometry.FormatNumber(vertex.X, e.opts.Precision),
			Y: geometry.FormatNumber(vertex.Y, e.opts.Precision),
			Z: geometry.FormatNumber(vertex.Z, e.opts.Precision),
		})
	}
	for _, triangle := range mesh.Triangles {
		elem := models.Triangle{
			V1: strconv.Itoa(triangle.V1),
			V2: strconv.Itoa(triangle.V2),
			V3: strconv.Itoa(triangle.V3),
		}
		if triangle.Material >= 0 && triangle.Material < len(mesh.Materials) {
			index := e.materialIndex[mesh.Materials[triangle.Material].Name]
			if index != defaultIndex {
				elem.P1 = strconv.Itoa(index)
			}
		}
		result.Triangles.Triangle = append(result.Triangles.Triangle, elem)
	}
	return result
}

func metadataElements(store *metadata.Store) []models.Metadata {
	var result []models.Metadata
	for _, entry := range store.Values() {
		elem := models.Metadata{
			Name:  entry.Name,
			Type:  entry.Datatype,
			Value: entry.Value,
		}
		if entry.Preserve {
			elem.Preserve = "1"
		}
		result = append(result, elem)
	}
	return result
}

// writeArchive assembles the package: relationships, content types, preserved
// parts from earlier imports, and the model document itself.
func (e *Exporter) writeArchive(filePath string, doc *models.Model, sc *scene.Scene) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("error creating %s: %w", filePath, err)
	}
	archive := zip.NewWriter(f)

	err = e.writeParts(archive, doc, sc)
	if closeErr := archive.Close(); err == nil {
		err = closeErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("error writing %s: %w", filePath, err)
	}
	return nil
}

func (e *Exporter) writeParts(archive *zip.Writer, doc *models.Model, sc *scene.Scene) error {
	anns := annotations.New()
	anns.Retrieve(sc.Blobs)
	if err := anns.WriteRels(archive); err != nil {
		return err
	}
	if err := anns.WriteContentTypes(archive); err != nil {
		return err
	}
	if err := writePreserved(archive, sc.Blobs); err != nil {
		return err
	}

	w, err := archive.Create(models.ModelLocation)
	if err != nil {
		return fmt.Errorf("error creating %s entry: %w", models.ModelLocation, err)
	}
	data, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling model document: %w", err)
	}
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return nil
}
