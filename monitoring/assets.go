package monitoring

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static
var staticAssets embed.FS

// WithAssetDir serves the web page from dir instead of the copy compiled into
// the binary. It is meant for editing the page without rebuilding.
func (m *Monitor) WithAssetDir(dir string) *Monitor {
	m.assetDir = dir
	return m
}

func (m *Monitor) assets() http.FileSystem {
	if m.assetDir != "" {
		return http.Dir(m.assetDir)
	}

	sub, err := fs.Sub(staticAssets, "static")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}
