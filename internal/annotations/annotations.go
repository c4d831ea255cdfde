// Package annotations tracks package-level metadata that the model document
// does not own: per-part content types and OPC relationships such as
// thumbnails and print tickets.
//
// Annotations accumulate across every package imported into one host session
// and are persisted in the host's blob storage, so that re-exporting a scene
// preserves details written by the authoring tools of the original packages.
package annotations

import (
	"archive/zip"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/scene"
)

// BlobName is the blob store key under which annotations are persisted.
const BlobName = ".3mf_annotations"

// Annotation is one piece of package metadata about a target part. It is a
// closed sum: Relationship, ContentType or ConflictingContentType.
type Annotation interface {
	isAnnotation()
}

// Relationship records that some part relates to the target, e.g. as its
// thumbnail. Source is the archive directory the relationship file lived in.
type Relationship struct {
	Namespace string
	Source    string
}

// ContentType records the MIME type a package assigned to the target.
type ContentType struct {
	MimeType string
}

// ConflictingContentType marks a target whose content type differed between
// imported packages. Once set it is never resolved back to a concrete type.
type ConflictingContentType struct{}

func (Relationship) isAnnotation()           {}
func (ContentType) isAnnotation()            {}
func (ConflictingContentType) isAnnotation() {}

// Annotations is a collection of annotations keyed by target part path.
type Annotations struct {
	annotations map[string]map[Annotation]struct{}
}

// New creates an empty collection of annotations.
func New() *Annotations {
	return &Annotations{annotations: map[string]map[Annotation]struct{}{}}
}

func (a *Annotations) add(target string, annotation Annotation) {
	set, ok := a.annotations[target]
	if !ok {
		set = map[Annotation]struct{}{}
		a.annotations[target] = set
	}
	set[annotation] = struct{}{}
}

// AddRelationships parses an OPC relationships document found at partName in
// an archive and records its entries. The relationship this system manages
// itself, the primary model relationship, is skipped: it is re-derived on
// every write. Malformed XML skips the whole file; an entry missing its
// Target or Type skips that entry only.
func (a *Annotations) AddRelationships(data []byte, partName string) {
	// Targets are relative to the directory containing the _rels folder.
	basePath := path.Dir(partName) + "/"
	if path.Base(path.Dir(basePath)) == models.RelsFolder {
		basePath = path.Dir(path.Dir(basePath)) + "/"
	}
	if basePath == "./" {
		basePath = "/"
	}

	var doc models.Relationships
	if err := xml.Unmarshal(data, &doc); err != nil {
		logger.Sugar.Warnf("relationship file %s has malformed XML: %v", partName, err)
		return
	}

	for _, rel := range doc.Relationship {
		if rel.Target == "" || rel.Type == "" {
			logger.Sugar.Warnf("relationship in %s missing Target or Type attribute", partName)
			continue
		}
		if rel.Type == models.ModelRel {
			continue
		}

		target := resolveTarget(basePath, rel.Target)
		a.add(target, Relationship{Namespace: rel.Type, Source: basePath})
	}
}

// resolveTarget resolves a possibly relative target against a base directory
// and strips the leading slash, since archive-internal paths are never
// absolute.
func resolveTarget(base, target string) string {
	var resolved string
	if strings.HasPrefix(target, "/") {
		resolved = path.Clean(target)
	} else {
		if base == "/" {
			base = ""
		}
		resolved = path.Clean(base + target)
	}
	return strings.TrimPrefix(resolved, "/")
}

// AddContentTypes records the content types of the parts of one archive,
// grouped by MIME type. Parts this system rewrites itself (model and
// relationship documents) are not recorded. A part that already has a
// different content type from an earlier package is poisoned with a
// permanent conflict marker.
func (a *Annotations) AddContentTypes(filesByType map[string][]string) {
	for mimeType, names := range filesByType {
		if mimeType == "" {
			continue
		}
		if mimeType == models.RelsMimeType || mimeType == models.ModelMimeType {
			continue
		}
		for _, name := range names {
			set, ok := a.annotations[name]
			if !ok {
				a.add(name, ContentType{MimeType: mimeType})
				continue
			}
			if _, conflicted := set[ConflictingContentType{}]; conflicted {
				continue
			}
			var existing []ContentType
			for annotation := range set {
				if ct, isCT := annotation.(ContentType); isCT {
					existing = append(existing, ct)
				}
			}
			if len(existing) > 0 && existing[0].MimeType != mimeType {
				logger.Sugar.Warnf("found conflicting content types for file: %s", name)
				for _, ct := range existing {
					delete(set, ct)
				}
				set[ConflictingContentType{}] = struct{}{}
			} else {
				set[ContentType{MimeType: mimeType}] = struct{}{}
			}
		}
	}
}

// ByTarget returns a copy of all annotations, sorted for deterministic
// iteration.
func (a *Annotations) ByTarget() map[string][]Annotation {
	result := make(map[string][]Annotation, len(a.annotations))
	for target, set := range a.annotations {
		anns := make([]Annotation, 0, len(set))
		for annotation := range set {
			anns = append(anns, annotation)
		}
		sort.Slice(anns, func(i, j int) bool {
			return fmt.Sprintf("%#v", anns[i]) < fmt.Sprintf("%#v", anns[j])
		})
		result[target] = anns
	}
	return result
}

// WriteRels writes the relationship annotations to an archive as .rels
// documents, one per source directory. The root document is always written
// and always declares the primary model part.
func (a *Annotations) WriteRels(archive *zip.Writer) error {
	currentID := 0

	type relPair struct {
		target    string
		namespace string
	}
	relsBySource := map[string][]relPair{"/": nil}
	for target, set := range a.annotations {
		for annotation := range set {
			rel, isRel := annotation.(Relationship)
			if !isRel {
				continue
			}
			relsBySource[rel.Source] = append(relsBySource[rel.Source], relPair{target: target, namespace: rel.Namespace})
		}
	}

	sources := make([]string, 0, len(relsBySource))
	for source := range relsBySource {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		pairs := relsBySource[source]
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].target != pairs[j].target {
				return pairs[i].target < pairs[j].target
			}
			return pairs[i].namespace < pairs[j].namespace
		})

		doc := models.Relationships{Xmlns: models.RelsNamespace}
		for _, pair := range pairs {
			doc.Relationship = append(doc.Relationship, models.Relationship{
				ID:     fmt.Sprintf("rel%d", currentID),
				Target: "/" + pair.target,
				Type:   pair.namespace,
			})
			currentID++
		}

		prefix := source
		if prefix == "/" {
			prefix = ""
			// The root document declares the model part we write ourselves.
			doc.Relationship = append(doc.Relationship, models.Relationship{
				ID:     fmt.Sprintf("rel%d", currentID),
				Target: "/" + models.ModelLocation,
				Type:   models.ModelRel,
			})
			currentID++
		}

		if err := writeXML(archive, prefix+models.RelsFolder+"/.rels", doc); err != nil {
			return err
		}
	}
	return nil
}

// WriteContentTypes writes the [Content_Types].xml document. The most common
// MIME type per extension becomes that extension's Default rule; parts that
// deviate from their extension's default, or have no extension, get an
// Override. The two part kinds this system owns always get their canonical
// defaults.
func (a *Annotations) WriteContentTypes(archive *zip.Writer) error {
	// Collect content types per extension, in sorted target order so that
	// ties in the frequency count break deterministically.
	targets := make([]string, 0, len(a.annotations))
	for target := range a.annotations {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	typesByExtension := map[string][]string{}
	for _, target := range targets {
		for annotation := range a.annotations[target] {
			if ct, isCT := annotation.(ContentType); isCT {
				extension := path.Ext(target)
				typesByExtension[extension] = append(typesByExtension[extension], ct.MimeType)
			}
		}
	}

	mostCommon := map[string]string{}
	for extension, mimeTypes := range typesByExtension {
		counts := map[string]int{}
		best := ""
		for _, mimeType := range mimeTypes {
			counts[mimeType]++
			if best == "" || counts[mimeType] > counts[best] {
				best = mimeType
			}
		}
		mostCommon[extension] = best
	}

	// Parts we create ourselves always get these, regardless of observed data.
	mostCommon[".rels"] = models.RelsMimeType
	mostCommon[".model"] = models.ModelMimeType

	doc := models.Types{Xmlns: models.ContentTypesNamespace}

	extensions := make([]string, 0, len(mostCommon))
	for extension := range mostCommon {
		if extension == "" {
			continue
		}
		extensions = append(extensions, extension)
	}
	sort.Strings(extensions)
	for _, extension := range extensions {
		doc.Default = append(doc.Default, models.Default{
			Extension:   extension[1:],
			ContentType: mostCommon[extension],
		})
	}

	for _, target := range targets {
		for annotation := range a.annotations[target] {
			ct, isCT := annotation.(ContentType)
			if !isCT {
				continue
			}
			extension := path.Ext(target)
			if extension == "" || ct.MimeType != mostCommon[extension] {
				doc.Override = append(doc.Override, models.Override{
					PartName:    "/" + target,
					ContentType: ct.MimeType,
				})
			}
		}
	}

	return writeXML(archive, models.ContentTypesLocation, doc)
}

func writeXML(archive *zip.Writer, name string, doc any) error {
	w, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("error creating %s entry: %w", name, err)
	}
	data, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling %s: %w", name, err)
	}
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("error writing %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("error writing %s: %w", name, err)
	}
	return nil
}

const (
	recordRelationship = "relationship"
	recordContentType  = "content_type"
	recordConflict     = "content_type_conflict"
)

type annotationRecord struct {
	Annotation string  `json:"annotation"`
	Namespace  *string `json:"namespace,omitempty"`
	Source     *string `json:"source,omitempty"`
	MimeType   *string `json:"mime_type,omitempty"`
}

// Store serializes the annotations into the host's blob storage so they
// survive a save and reload of the host project.
func (a *Annotations) Store(blobs scene.BlobStore) {
	document := map[string][]annotationRecord{}
	for target, anns := range a.ByTarget() {
		records := make([]annotationRecord, 0, len(anns))
		for _, annotation := range anns {
			switch ann := annotation.(type) {
			case Relationship:
				namespace, source := ann.Namespace, ann.Source
				records = append(records, annotationRecord{
					Annotation: recordRelationship,
					Namespace:  &namespace,
					Source:     &source,
				})
			case ContentType:
				mimeType := ann.MimeType
				records = append(records, annotationRecord{
					Annotation: recordContentType,
					MimeType:   &mimeType,
				})
			case ConflictingContentType:
				records = append(records, annotationRecord{Annotation: recordConflict})
			}
		}
		document[target] = records
	}

	data, err := json.Marshal(document)
	if err != nil {
		logger.Sugar.Warnf("unable to serialize annotations: %v", err)
		return
	}
	blobs.Set(BlobName, string(data))
}

// Retrieve restores annotations from the host's blob storage, replacing the
// current state. Damaged data is recovered per record; only a blob whose top
// level is not a JSON object yields an empty result.
func (a *Annotations) Retrieve(blobs scene.BlobStore) {
	a.annotations = map[string]map[Annotation]struct{}{}

	contents, ok := blobs.Get(BlobName)
	if !ok {
		return
	}
	var document map[string]json.RawMessage
	if err := json.Unmarshal([]byte(contents), &document); err != nil {
		logger.Warn("annotation data exists, but is not properly formatted")
		return
	}

	for target, rawRecords := range document {
		var records []json.RawMessage
		if err := json.Unmarshal(rawRecords, &records); err != nil {
			logger.Sugar.Warnf("annotations for target %q are not properly structured", target)
			continue
		}
		for _, raw := range records {
			var record annotationRecord
			if err := json.Unmarshal(raw, &record); err != nil {
				logger.Sugar.Warnf("annotation for target %q is not properly structured", target)
				continue
			}
			switch record.Annotation {
			case recordRelationship:
				if record.Namespace == nil || record.Source == nil {
					logger.Sugar.Warnf("relationship annotation for target %q missing a field", target)
					continue
				}
				a.add(target, Relationship{Namespace: *record.Namespace, Source: *record.Source})
			case recordContentType:
				if record.MimeType == nil {
					logger.Sugar.Warnf("content type annotation for target %q missing its MIME type", target)
					continue
				}
				a.add(target, ContentType{MimeType: *record.MimeType})
			case recordConflict:
				a.add(target, ConflictingContentType{})
			default:
				logger.Sugar.Warnf("unknown annotation type %q encountered", record.Annotation)
			}
		}
	}
}
