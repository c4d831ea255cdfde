package threemf

import (
	"archive/zip"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipparndt/scene3mf/internal/metadata"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/scene"
)

const testContentTypes = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
	<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
	<Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>`

const testRels = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
	<Relationship Id="rel0" Target="/3D/3dmodel.model" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>
</Relationships>`

const triangleModel = `<?xml version="1.0" encoding="UTF-8"?>
<model unit="millimeter" xmlns="http://schemas.microsoft.com/3dmanufacturing/core/2015/02">
	<resources>
		<object id="1">
			<mesh>
				<vertices>
					<vertex x="0" y="0" z="0"/>
					<vertex x="10" y="0" z="0"/>
					<vertex x="0" y="10" z="0"/>
				</vertices>
				<triangles>
					<triangle v1="0" v2="1" v3="2"/>
				</triangles>
			</mesh>
		</object>
	</resources>
	<build>
		<item objectid="1"/>
	</build>
</model>`

// writeTestArchive writes parts into a fresh 3MF file and returns its path.
func writeTestArchive(t *testing.T, parts map[string]string) string {
	t.Helper()
	archivePath := filepath.Join(t.TempDir(), "test.3mf")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	archive := zip.NewWriter(f)
	for name, contents := range parts {
		w, err := archive.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, archive.Close())
	require.NoError(t, f.Close())
	return archivePath
}

func writeModelArchive(t *testing.T, model string) string {
	t.Helper()
	return writeTestArchive(t, map[string]string{
		models.ContentTypesLocation: testContentTypes,
		"_rels/.rels":               testRels,
		models.ModelLocation:        model,
	})
}

func millimeterImporter() *Importer {
	return NewImporter(scene.StaticUnits{Unit: "millimeter", Scale: 1}, ImportOptions{})
}

func TestImport_BasicModel(t *testing.T) {
	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{writeModelArchive(t, triangleModel)}, sc)

	require.Equal(t, 1, placed)
	require.Len(t, sc.Objects, 1)

	obj := sc.Objects[0]
	assert.Equal(t, "3MF Object", obj.Name)
	assert.Nil(t, obj.Parent)
	assert.True(t, obj.Transform.IsIdentity())

	require.NotNil(t, obj.Mesh)
	require.Len(t, obj.Mesh.Vertices, 3)
	assert.Equal(t, 10.0, obj.Mesh.Vertices[1].X)
	require.Len(t, obj.Mesh.Triangles, 1)
	assert.Equal(t, scene.Triangle{V1: 0, V2: 1, V3: 2, Material: -1}, obj.Mesh.Triangles[0])
}

func TestImport_UnitScaling(t *testing.T) {
	model := `<model unit="inch">
		<resources><object id="1"><mesh>
			<vertices><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/><vertex x="0" y="0" z="1"/></vertices>
			<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
		</mesh></object></resources>
		<build><item objectid="1"/></build>
	</model>`

	sc := scene.NewScene()
	millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	require.Len(t, sc.Objects, 1)
	// Inches into a millimeter scene: coordinates stay 1, the transform
	// carries the factor.
	assert.InDelta(t, 25.4, sc.Objects[0].Transform[0][0], 1e-9)
	assert.Equal(t, 1.0, sc.Objects[0].Mesh.Vertices[0].X)
}

func TestImport_TitleNamesObject(t *testing.T) {
	model := `<model>
		<resources><object id="1">
			<metadatagroup>
				<metadata name="Title">Gearbox</metadata>
				<metadata name="Designer">Alice</metadata>
			</metadatagroup>
			<mesh>
				<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
				<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
			</mesh>
		</object></resources>
		<build><item objectid="1"/></build>
	</model>`

	sc := scene.NewScene()
	millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	require.Len(t, sc.Objects, 1)
	obj := sc.Objects[0]
	assert.Equal(t, "Gearbox", obj.Name)
	// The title lives in the name now, not in the metadata.
	assert.False(t, obj.Metadata.Has(metadata.NameTitle))
	designer, ok := obj.Metadata.Get("Designer")
	require.True(t, ok)
	assert.Equal(t, "Alice", designer.Value)
}

func TestImport_ObjectTypeStamped(t *testing.T) {
	model := `<model>
		<resources>
			<object id="1" type="support"><mesh>
				<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
				<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
			</mesh></object>
			<object id="2"><mesh>
				<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
				<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
			</mesh></object>
		</resources>
		<build><item objectid="1"/><item objectid="2"/></build>
	</model>`

	sc := scene.NewScene()
	millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	require.Len(t, sc.Objects, 2)

	// Support structures come in as regular objects, marked non-renderable.
	support := sc.Objects[0]
	assert.True(t, support.NoRender)
	objectType, ok := support.Metadata.Get(metadata.NameObjectType)
	require.True(t, ok)
	assert.Equal(t, "support", objectType.Value)

	// An object without a type attribute still gets one, so the type survives
	// a round trip even when nothing else refers to it.
	plain := sc.Objects[1]
	assert.False(t, plain.NoRender)
	objectType, ok = plain.Metadata.Get(metadata.NameObjectType)
	require.True(t, ok)
	assert.Equal(t, "model", objectType.Value)
}

func TestImport_MalformedVertexFallsBackToZero(t *testing.T) {
	model := `<model>
		<resources><object id="1"><mesh>
			<vertices><vertex x="1" y="borked" z="2"/><vertex x="0" y="1" z="0"/><vertex x="0" y="0" z="1"/></vertices>
			<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
		</mesh></object></resources>
		<build><item objectid="1"/></build>
	</model>`

	sc := scene.NewScene()
	millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	require.Len(t, sc.Objects, 1)
	vertex := sc.Objects[0].Mesh.Vertices[0]
	assert.Equal(t, 1.0, vertex.X)
	assert.Equal(t, 0.0, vertex.Y)
	assert.Equal(t, 2.0, vertex.Z)
}

func TestImport_BadTrianglesAreDropped(t *testing.T) {
	model := `<model>
		<resources><object id="1"><mesh>
			<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
			<triangles>
				<triangle v1="0" v2="1" v3="2"/>
				<triangle v1="0" v2="nope" v3="2"/>
				<triangle v1="0" v2="1" v3="7"/>
			</triangles>
		</mesh></object></resources>
		<build><item objectid="1"/></build>
	</model>`

	sc := scene.NewScene()
	millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	require.Len(t, sc.Objects, 1)
	// Only the well-formed triangle survives; the mesh itself is kept.
	assert.Len(t, sc.Objects[0].Mesh.Triangles, 1)
}

func TestImport_UnknownBuildItemSkipped(t *testing.T) {
	model := `<model>
		<resources/>
		<build><item objectid="42"/></build>
	</model>`

	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)
	assert.Equal(t, 0, placed)
	assert.Empty(t, sc.Objects)
}

func TestImport_CyclicComponentsAreCut(t *testing.T) {
	model := `<model>
		<resources>
			<object id="1"><components><component objectid="2"/></components></object>
			<object id="2"><components><component objectid="1"/></components></object>
		</resources>
		<build><item objectid="1"/></build>
	</model>`

	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	// Object 1 and its child 2 get placed; 2's reference back to 1 is cut.
	assert.Equal(t, 2, placed)
	require.Len(t, sc.Objects, 2)
	assert.Nil(t, sc.Objects[0].Parent)
	assert.Same(t, sc.Objects[0], sc.Objects[1].Parent)
}

func TestImport_NestedComponentTransformsCompose(t *testing.T) {
	// Item transform moves by 100, the nested components by 10 and 1.
	model := `<model>
		<resources>
			<object id="3"><mesh>
				<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
				<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
			</mesh></object>
			<object id="2"><components><component objectid="3" transform="1 0 0 0 1 0 0 0 1 1 0 0"/></components></object>
			<object id="1"><components><component objectid="2" transform="1 0 0 0 1 0 0 0 1 10 0 0"/></components></object>
		</resources>
		<build><item objectid="1" transform="1 0 0 0 1 0 0 0 1 100 0 0"/></build>
	</model>`

	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	require.Equal(t, 3, placed)
	leaf := sc.Objects[2]
	require.NotNil(t, leaf.Mesh)
	assert.InDelta(t, 111.0, leaf.Transform[0][3], 1e-9)
}

func TestImport_Materials(t *testing.T) {
	model := `<model>
		<resources>
			<basematerials id="5">
				<base name="Red" displaycolor="#FF0000"/>
				<base name="Blue" displaycolor="#0000FF80"/>
			</basematerials>
			<object id="1" pid="5" pindex="0"><mesh>
				<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
				<triangles>
					<triangle v1="0" v2="1" v3="2"/>
					<triangle v1="2" v2="1" v3="0" p1="1"/>
				</triangles>
			</mesh></object>
		</resources>
		<build><item objectid="1"/></build>
	</model>`

	sc := scene.NewScene()
	millimeterImporter().Import([]string{writeModelArchive(t, model)}, sc)

	require.Len(t, sc.Objects, 1)
	mesh := sc.Objects[0].Mesh
	require.Len(t, mesh.Materials, 2)

	assert.Equal(t, "Red", mesh.Materials[0].Name)
	require.NotNil(t, mesh.Materials[0].Color)
	assert.Equal(t, scene.Color{R: 255, A: 255}, *mesh.Materials[0].Color)

	assert.Equal(t, "Blue", mesh.Materials[1].Name)
	require.NotNil(t, mesh.Materials[1].Color)
	assert.Equal(t, scene.Color{B: 255, A: 128}, *mesh.Materials[1].Color)

	// First triangle inherits the object default, the second overrides it.
	assert.Equal(t, 0, mesh.Triangles[0].Material)
	assert.Equal(t, 1, mesh.Triangles[1].Material)
}

func TestImport_MissingContentTypesStillFindsModel(t *testing.T) {
	archivePath := writeTestArchive(t, map[string]string{
		models.ModelLocation: triangleModel,
	})

	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{archivePath}, sc)
	assert.Equal(t, 1, placed)
}

func TestImport_OverrideLocatesModelAtOddPath(t *testing.T) {
	contentTypes := `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
		<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
		<Override PartName="/weird/data.bin" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
	</Types>`
	archivePath := writeTestArchive(t, map[string]string{
		models.ContentTypesLocation: contentTypes,
		"weird/data.bin":            triangleModel,
	})

	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{archivePath}, sc)
	assert.Equal(t, 1, placed)
}

func TestImport_UnreadableArchivesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.3mf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	notZip := filepath.Join(dir, "notzip.3mf")
	require.NoError(t, os.WriteFile(notZip, []byte("this is no archive"), 0o644))
	noModel := writeTestArchive(t, map[string]string{"random.txt": "hello"})

	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{
		"/nonexistent/nope.3mf", empty, notZip, noModel,
	}, sc)
	assert.Equal(t, 0, placed)
	assert.Empty(t, sc.Objects)
}

func TestImport_ConflictingDocumentMetadataIsErased(t *testing.T) {
	modelA := `<model>
		<metadata name="Designer">Alice</metadata>
		<resources/><build/>
	</model>`
	modelB := `<model>
		<metadata name="Designer">Bob</metadata>
		<resources/><build/>
	</model>`

	sc := scene.NewScene()
	millimeterImporter().Import([]string{
		writeModelArchive(t, modelA),
		writeModelArchive(t, modelB),
	}, sc)

	assert.False(t, sc.Metadata.Has("Designer"))
}

func TestImport_CrossFileComponents(t *testing.T) {
	// The mesh lives in the first file; the second file builds an assembly
	// from it. Resources are collected from all files before any build item
	// resolves, so this works regardless of order.
	assembly := `<model>
		<resources>
			<object id="2"><components><component objectid="1" transform="1 0 0 0 1 0 0 0 1 5 0 0"/></components></object>
		</resources>
		<build><item objectid="2"/></build>
	</model>`
	meshOnly := `<model>
		<resources>
			<object id="1"><mesh>
				<vertices><vertex x="0" y="0" z="0"/><vertex x="1" y="0" z="0"/><vertex x="0" y="1" z="0"/></vertices>
				<triangles><triangle v1="0" v2="1" v3="2"/></triangles>
			</mesh></object>
		</resources>
		<build/>
	</model>`

	sc := scene.NewScene()
	placed := millimeterImporter().Import([]string{
		writeModelArchive(t, assembly),
		writeModelArchive(t, meshOnly),
	}, sc)

	require.Equal(t, 2, placed)
	child := sc.Objects[1]
	require.NotNil(t, child.Mesh)
	assert.InDelta(t, 5.0, child.Transform[0][3], 1e-9)
}

func TestImport_StashesPreservedParts(t *testing.T) {
	rels := `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
		<Relationship Id="rel0" Target="/Secret/keep.bin" Type="http://schemas.openxmlformats.org/package/2006/relationships/mustpreserve"/>
	</Relationships>`
	archivePath := writeTestArchive(t, map[string]string{
		models.ContentTypesLocation: testContentTypes,
		"_rels/.rels":               rels,
		models.ModelLocation:        triangleModel,
		"Secret/keep.bin":           "precious payload",
	})

	sc := scene.NewScene()
	millimeterImporter().Import([]string{archivePath}, sc)

	contents, ok := sc.Blobs.Get(preservedPrefix + "Secret/keep.bin")
	require.True(t, ok)
	decoded, err := base64.StdEncoding.DecodeString(contents)
	require.NoError(t, err)
	assert.Equal(t, "precious payload", string(decoded))
}

func TestImport_PreservedConflictDropsPart(t *testing.T) {
	rels := `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
		<Relationship Id="rel0" Target="/Secret/keep.bin" Type="http://schemas.openxmlformats.org/package/2006/relationships/mustpreserve"/>
	</Relationships>`
	makeArchive := func(payload string) string {
		return writeTestArchive(t, map[string]string{
			models.ContentTypesLocation: testContentTypes,
			"_rels/.rels":               rels,
			models.ModelLocation:        triangleModel,
			"Secret/keep.bin":           payload,
		})
	}

	sc := scene.NewScene()
	importer := millimeterImporter()
	importer.Import([]string{makeArchive("first version")}, sc)
	importer.Import([]string{makeArchive("second version")}, sc)

	contents, ok := sc.Blobs.Get(preservedPrefix + "Secret/keep.bin")
	require.True(t, ok)
	assert.Equal(t, conflictingContents, contents)
}
