package serializer

import (
	"github.com/beamstore/beamstore/internal/model"
)

// Files returns the serialized form of the given models.
func Files(files []*model.File) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(files))

	for _, file := range files {
		sl = append(sl, File(file))
	}

	return sl
}

// File returns the serialized form of the given model.
func File(file *model.File) map[string]interface{} {
	return map[string]interface{}{
		"filename": file.Filename,
		"ident":    file.Ident,
		"size":     file.Size,
		"date":     file.CreatedAt,
		"views":    file.Views,
	}
}

// Upload returns the serialized acknowledgement of an upload.
func Upload(file *model.File) map[string]interface{} {
	return map[string]interface{}{
		"ident":    file.Ident,
		"filename": file.Filename,
	}
}
