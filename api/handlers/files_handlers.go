package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/AnalyseDeCircuit/hostdeck/internal/files"
)

// FilesHandler 目录浏览
// @Summary 目录浏览
// @Tags Files
// @Produce json
// @Param path query string false "绝对路径，默认为配置的 FILE_ROOT"
// @Success 200 {object} object{files=[]types.FileEntry}
// @Router /api/files [get]
func (a *API) FilesHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	dir := r.URL.Query().Get("path")
	if dir == "" && a.Config != nil {
		dir = a.Config.FileRoot
	}

	entries, err := files.List(dir)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			writeJSONError(w, http.StatusNotFound, "Path does not exist")
		case errors.Is(err, fs.ErrPermission):
			writeJSONError(w, http.StatusForbidden, "Permission denied")
		case errors.Is(err, files.ErrNotDirectory):
			writeJSONError(w, http.StatusBadRequest, "Path is not a directory")
		default:
			writeJSONError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"path":    dir,
		"files":   entries,
	})
}
