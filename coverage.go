package dem

import (
	"fmt"
	"io/fs"
)

// Coverage returns the names of the raster files in fsys whose bounds
// intersect bounds. Only each file's metadata is read.
func Coverage(fsys fs.FS, names []string, bounds Bounds) ([]string, error) {
	var covered []string
	for _, name := range names {
		metadata, err := readMetadata(fsys, name)
		if err != nil {
			return nil, err
		}
		if metadata.Bounds().Intersects(bounds) {
			covered = append(covered, name)
		}
	}
	return covered, nil
}

// readMetadata returns the metadata of the first band of name.
func readMetadata(fsys fs.FS, name string, options ...GeoTIFFOption) (*Metadata, error) {
	ds, err := OpenGeoTIFF(fsys, name, append(options, WithBlockCacheSize(1))...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer ds.Close()
	metadata, err := NewMetadata(ds, 1, ds.DataType(1).Lowest())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return metadata, nil
}
