package threemf

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/philipparndt/scene3mf/internal/logger"
	"github.com/philipparndt/scene3mf/internal/models"
)

// contentTypeRule matches part paths to a MIME type. Exactly one of partName
// (exact match) or extension (case-sensitive suffix match) is set.
type contentTypeRule struct {
	partName  string
	extension string
	mimeType  string
}

func (r contentTypeRule) matches(partPath string) bool {
	if r.partName != "" {
		return strings.TrimPrefix(partPath, "/") == strings.TrimPrefix(r.partName, "/")
	}
	return strings.HasSuffix(partPath, "."+r.extension)
}

type zipArchive interface {
	open(name string) (io.ReadCloser, bool)
	names() []string
}

// readContentTypes reads the [Content_Types].xml document of an archive into
// an ordered rule list. Overrides take priority over Defaults. Two built-in
// fallback rules for .rels and .model parts are appended at lowest priority,
// so a missing or corrupt content types part still lets the reader find the
// model.
func readContentTypes(archive zipArchive) []contentTypeRule {
	var rules []contentTypeRule

	if rc, ok := archive.open(models.ContentTypesLocation); ok {
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			logger.Sugar.Warnf("unable to read %s: %v", models.ContentTypesLocation, err)
		} else {
			var doc models.Types
			if err := xml.Unmarshal(data, &doc); err != nil {
				logger.Sugar.Warnf("%s has malformed XML: %v", models.ContentTypesLocation, err)
			} else {
				for _, override := range doc.Override {
					if override.PartName == "" || override.ContentType == "" {
						logger.Warn("[Content_Types].xml malformed: Override node without path or MIME type")
						continue
					}
					rules = append(rules, contentTypeRule{partName: override.PartName, mimeType: override.ContentType})
				}
				for _, deflt := range doc.Default {
					if deflt.Extension == "" || deflt.ContentType == "" {
						logger.Warn("[Content_Types].xml malformed: Default node without extension or MIME type")
						continue
					}
					rules = append(rules, contentTypeRule{extension: deflt.Extension, mimeType: deflt.ContentType})
				}
			}
		}
	} else {
		logger.Sugar.Warnf("%s file missing", models.ContentTypesLocation)
	}

	rules = append(rules,
		contentTypeRule{extension: "rels", mimeType: models.RelsMimeType},
		contentTypeRule{extension: "model", mimeType: models.ModelMimeType},
	)
	return rules
}

// assignContentTypes classifies every part in the archive by the first
// matching rule, or the empty string when nothing matches. The content types
// part itself is not classified.
func assignContentTypes(archive zipArchive, rules []contentTypeRule) map[string]string {
	result := map[string]string{}
	for _, name := range archive.names() {
		if name == models.ContentTypesLocation {
			continue
		}
		result[name] = ""
		for _, rule := range rules {
			if rule.matches(name) {
				result[name] = rule.mimeType
				break
			}
		}
	}
	return result
}
