package threemf

import (
	"archive/zip"
	"encoding/base64"
	"strings"

	"github.com/philipparndt/scene3mf/internal/annotations"
	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/models"
	"github.com/philipparndt/scene3mf/internal/scene"
)

// preservedPrefix namespaces stashed parts in the blob store so they never
// collide with other blobs, such as the annotation blob.
const preservedPrefix = ".3mf_preserved/"

// conflictingContents marks a stashed part whose contents differed between
// two imported packages. It contains characters invalid in base64, so it can
// never collide with an actual stashed part.
const conflictingContents = "<Conflicting MustPreserve file!>"

// stashPreserved copies the parts marked MustPreserve (and print tickets,
// which implicitly must be preserved) into the blob store, base64 encoded,
// so a later export can write them back even though the host has no notion
// of these files.
//
// When two imports disagree on the contents of the same part, the part is
// marked conflicting and is dropped from future exports. Losing it is better
// than exporting the wrong version of a file a consumer depends on.
func stashPreserved(files FilesByType, anns *annotations.Annotations, blobs scene.BlobStore) {
	preserved := map[string]bool{}
	for target, targetAnns := range anns.ByTarget() {
		for _, annotation := range targetAnns {
			switch a := annotation.(type) {
			case annotations.Relationship:
				if a.Namespace == models.MustPreserveRel || a.Namespace == models.PrintTicketRel {
					preserved[target] = true
				}
			case annotations.ContentType:
				if a.MimeType == models.PrintTicketMimeType {
					preserved[target] = true
				}
			}
		}
	}

	for _, parts := range files {
		for _, part := range parts {
			if !preserved[part.Name] {
				continue
			}
			blobName := preservedPrefix + part.Name
			encoded := base64.StdEncoding.EncodeToString(part.Data)
			if existing, ok := blobs.Get(blobName); ok {
				if existing == conflictingContents || existing == encoded {
					continue
				}
				logger.Sugar.Warnf("preserved file %s has conflicting contents, dropping it", part.Name)
				blobs.Set(blobName, conflictingContents)
				continue
			}
			blobs.Set(blobName, encoded)
		}
	}
}

// writePreserved writes the stashed parts back into an archive at their
// original locations. Conflicting parts are skipped.
func writePreserved(archive *zip.Writer, blobs scene.BlobStore) error {
	for _, blobName := range blobs.Names() {
		if !strings.HasPrefix(blobName, preservedPrefix) {
			continue
		}
		contents, _ := blobs.Get(blobName)
		if contents == conflictingContents {
			continue
		}
		partName := strings.TrimPrefix(blobName, preservedPrefix)
		data, err := base64.StdEncoding.DecodeString(contents)
		if err != nil {
			logger.Sugar.Warnf("stashed part %s is corrupt, skipping it: %v", partName, err)
			continue
		}
		writer, err := archive.Create(partName)
		if err != nil {
			return err
		}
		if _, err := writer.Write(data); err != nil {
			return err
		}
	}
	return nil
}
