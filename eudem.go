package dem

import (
	"io/fs"
	"slices"
)

// EUDEMGlob matches the tiles of the Copernicus EU-DEM v1.1, for example
// eu_dem_v11_E40N20.TIF.
const EUDEMGlob = "eu_dem_v11_E??N??.TIF"

// NewEUDEMCatalog returns a new Catalog of the EU-DEM v1.1 tiles in fsys.
// Query coordinates are northings and eastings in EPSG:3035 unless
// WithCatalogInputCRS is given, for example WithCatalogInputCRS("EPSG:4326").
func NewEUDEMCatalog(fsys fs.FS, options ...CatalogOption) (*Catalog, error) {
	return NewCatalog(slices.Concat(
		[]CatalogOption{
			WithFS(fsys),
			WithGlob(EUDEMGlob),
		},
		options,
	)...)
}
