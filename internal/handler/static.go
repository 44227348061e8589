package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

// indexFiles are tried in order when a directory is requested.
var indexFiles = []string{"index.htm", "index.html"}

// StaticHandler serves the front-end tree from a directory.
//
// http.FileServer does the heavy lifting (ranges, caching headers, content
// types). This wrapper adds index.htm as a directory index, which FileServer
// does not know about, and refuses directory listings.
type StaticHandler struct {
	root   http.FileSystem
	files  http.Handler
	logger *slog.Logger
}

func NewStaticHandler(dir string, logger *slog.Logger) *StaticHandler {
	root := http.Dir(dir)
	return &StaticHandler{
		root:   root,
		files:  http.FileServer(root),
		logger: logger,
	}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upath := path.Clean("/" + r.URL.Path)

	f, err := h.root.Open(upath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("static file open failed",
				slog.String("path", upath),
				slog.String("error", err.Error()),
			)
		}
		http.NotFound(w, r)
		return
	}
	st, err := f.Stat()
	f.Close()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if !st.IsDir() {
		h.files.ServeHTTP(w, r)
		return
	}

	if !strings.HasSuffix(r.URL.Path, "/") {
		http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
		return
	}

	for _, name := range indexFiles {
		idx, err := h.root.Open(path.Join(upath, name))
		if err != nil {
			continue
		}
		ist, err := idx.Stat()
		if err != nil || ist.IsDir() {
			idx.Close()
			continue
		}
		http.ServeContent(w, r, name, ist.ModTime(), idx)
		idx.Close()
		return
	}

	http.NotFound(w, r)
}
