package handlers

import (
	"net/http"
	"strings"

	"github.com/AnalyseDeCircuit/hostdeck/internal/middleware"
)

type favoritesRequest struct {
	Favorites []string `json:"favorites"`
}

// FavoriteServicesHandler 收藏的服务
// GET: 获取收藏
// POST: 替换收藏 {"favorites": [...]}
func (a *API) FavoriteServicesHandler(w http.ResponseWriter, r *http.Request) {
	a.favoritesHandler(w, r, "services", func() []string { return a.Favorites.Get().Services }, a.Favorites.SetServices)
}

// FavoriteProcessesHandler 收藏的进程名
func (a *API) FavoriteProcessesHandler(w http.ResponseWriter, r *http.Request) {
	a.favoritesHandler(w, r, "processes", func() []string { return a.Favorites.Get().Processes }, a.Favorites.SetProcesses)
}

func (a *API) favoritesHandler(w http.ResponseWriter, r *http.Request, kind string, get func() []string, set func([]string) error) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": get()})
	case http.MethodPost:
		sess, ok := currentSession(w, r)
		if !ok {
			return
		}
		var req favoritesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := set(req.Favorites); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "Failed to save favorites: "+err.Error())
			return
		}
		a.audit(sess.ID, "favorites_"+kind, strings.Join(get(), ","), middleware.ClientIP(r))
		writeSuccess(w)
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
