package threemf

import (
	"archive/zip"
	"io"
	"strings"

	"github.com/philipparndt/scene3mf/internal/logger"
)

// PartFile is one part of an archive, slurped into memory so the archive can
// be closed before any of its parts are interpreted.
type PartFile struct {
	Name string
	Data []byte
}

// FilesByType groups the parts of one archive by their resolved MIME type.
// Parts no content type rule covers are grouped under the empty string.
type FilesByType map[string][]PartFile

type realArchive struct {
	reader *zip.ReadCloser
}

func (a realArchive) open(name string) (io.ReadCloser, bool) {
	f, err := a.reader.Open(name)
	if err != nil {
		return nil, false
	}
	return f, true
}

func (a realArchive) names() []string {
	var names []string
	for _, f := range a.reader.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// ReadArchive opens a 3MF package and returns its parts grouped by content
// type. An archive that cannot be opened yields an empty result rather than
// an error, so a batch import can carry on with its remaining files.
func ReadArchive(filePath string) FilesByType {
	result := FilesByType{}

	reader, err := zip.OpenReader(filePath)
	if err != nil {
		logger.Sugar.Warnf("unable to open archive %s: %v", filePath, err)
		return result
	}
	defer reader.Close()

	archive := realArchive{reader: reader}
	rules := readContentTypes(archive)
	for name, mimeType := range assignContentTypes(archive, rules) {
		rc, ok := archive.open(name)
		if !ok {
			logger.Sugar.Warnf("unable to open part %s in %s", name, filePath)
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			logger.Sugar.Warnf("unable to read part %s in %s: %v", name, filePath, err)
			continue
		}
		result[mimeType] = append(result[mimeType], PartFile{Name: name, Data: data})
	}
	return result
}
