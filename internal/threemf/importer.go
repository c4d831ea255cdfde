package threemf

import (
	"encoding/xml"
	"strings"

	"github.com/philipparndt/scene3mf/internal/annotations"
	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/metadata"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/scene"
	"github.com/philipparndt/scene3mf/internal/units"
)

// ImportOptions tune one import batch.
type ImportOptions struct {
	// GlobalScale is an extra scale factor applied to everything imported.
	// Zero means 1.
	GlobalScale float64
}

// Importer reads 3MF packages into a scene.
type Importer struct {
	units units.Settings
	opts  ImportOptions
}

// NewImporter creates an importer for a host with the given unit settings.
func NewImporter(unitSettings units.Settings, opts ImportOptions) *Importer {
	if opts.GlobalScale == 0 {
		opts.GlobalScale = 1
	}
	return &Importer{units: unitSettings, opts: opts}
}

// Import reads the given packages into the scene and returns the number of
// objects placed. Everything is additive: existing scene contents stay, and
// annotations accumulate on top of what earlier sessions stored.
//
// Resources are collected from all packages before any build item is
// resolved, so documents may reference each other's resources regardless of
// file order. A file that cannot be read contributes nothing but never aborts
// the batch.
func (imp *Importer) Import(paths []string, sc *scene.Scene) int {
	// The scene title is about to be re-derived from the imported documents;
	// an erasure marker from an earlier session should not suppress it.
	sc.Metadata.Delete(metadata.NameTitle)

	anns := annotations.New()
	anns.Retrieve(sc.Blobs)

	graph := NewGraph()
	type pendingBuild struct {
		doc   *models.Model
		scale float64
	}
	var pending []pendingBuild

	for _, path := range paths {
		files := ReadArchive(path)

		for _, part := range files[models.RelsMimeType] {
			anns.AddRelationships(part.Data, part.Name)
		}
		anns.AddContentTypes(namesByType(files))
		stashPreserved(files, anns, sc.Blobs)

		for _, part := range files[models.ModelMimeType] {
			doc := &models.Model{}
			if err := xml.Unmarshal(part.Data, doc); err != nil {
				logger.Sugar.Errorf("model file %s in %s has malformed XML: %v", part.Name, path, err)
				continue
			}
			checkRequiredExtensions(doc, path)

			readMetadata(doc.Metadata, sc.Metadata)
			graph.AddModel(doc)
			pending = append(pending, pendingBuild{
				doc:   doc,
				scale: units.ImportScale(imp.opts.GlobalScale, imp.units, doc.Unit),
			})
		}
	}

	placed := 0
	for _, build := range pending {
		placed += graph.ResolveBuild(build.doc, build.scale, sc)
	}

	anns.Store(sc.Blobs)
	logger.Sugar.Infof("imported %d objects from %d files", placed, len(paths))
	return placed
}

// checkRequiredExtensions warns when a document demands extensions this
// reader does not implement. Per the format, geometry may still load but can
// come out incomplete.
func checkRequiredExtensions(doc *models.Model, path string) {
	for _, extension := range strings.Fields(doc.RequiredExtensions) {
		logger.Sugar.Warnf("%s requires unsupported extension %s, the result may be incomplete", path, extension)
	}
}

func namesByType(files FilesByType) map[string][]string {
	result := make(map[string][]string, len(files))
	for mimeType, parts := range files {
		for _, part := range parts {
			result[mimeType] = append(result[mimeType], part.Name)
		}
	}
	return result
}
