package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/dashboard"
)

// view resolves the {tab} route variable to the session's list controller.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (*dashboard.Session, dashboard.View, bool) {
	sess := sessionFrom(r.Context())
	tab, err := dashboard.ParseTab(mux.Vars(r)["tab"])
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return nil, nil, false
	}
	view, err := sess.View(tab)
	if err != nil {
		respondError(w, errorStatus(err), err.Error())
		return nil, nil, false
	}
	return sess, view, true
}

// await waits for the view to settle, at most awaitTimeout. A timeout is not
// an error: the caller renders whatever state is current.
func (s *Server) await(ctx context.Context, waiter interface{ Await(context.Context) error }) {
	ctx, cancel := context.WithTimeout(ctx, s.awaitTimeout)
	defer cancel()
	if err := waiter.Await(ctx); err != nil {
		s.logger.Debug("rendering before queries settled", zap.Error(err))
	}
}

// respondView answers a UI event: JSON clients get the projection, browsers
// are sent back to the page.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, view dashboard.View) {
	if wantsJSON(r) {
		s.await(r.Context(), view)
		respondJSON(w, http.StatusOK, view.Project())
		return
	}
	http.Redirect(w, r, "/returns?tab="+view.Name(), http.StatusSeeOther)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	if raw := r.URL.Query().Get("tab"); raw != "" {
		tab, err := dashboard.ParseTab(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		sess.SetTab(tab)
	}

	s.await(r.Context(), sess)

	if err := s.pages.render(w, buildPage(sess)); err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
	}
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	s.await(r.Context(), view)
	respondJSON(w, http.StatusOK, view.Project())
}

func (s *Server) handleSelectTab(w http.ResponseWriter, r *http.Request) {
	sess, view, ok := s.view(w, r)
	if !ok {
		return
	}
	tab, _ := dashboard.ParseTab(view.Name())
	sess.SetTab(tab)
	s.respondView(w, r, view)
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.ToggleCollapsed()
	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, map[string]bool{"collapsed": sess.Collapsed()})
		return
	}
	http.Redirect(w, r, "/returns?tab="+string(sess.Tab()), http.StatusSeeOther)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	view.Type(r.FormValue("q"))
	s.respondView(w, r, view)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	s.await(r.Context(), view)

	values, visible := view.Suggestions()
	if values == nil {
		values = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": values,
		"visible":     visible,
	})
}

func (s *Server) handlePickSuggestion(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	value := r.FormValue("value")
	if value == "" {
		respondError(w, http.StatusBadRequest, "missing value")
		return
	}
	view.PickSuggestion(value)
	s.respondView(w, r, view)
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	field := mux.Vars(r)["field"]
	if !view.ToggleSort(field) {
		err := fmt.Errorf("%w: %q", ErrUnknownSortField, field)
		respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondView(w, r, view)
}

func (s *Server) handleQuickFilter(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	sess.Orders.ToggleFilter(mux.Vars(r)["status"])
	s.respondView(w, r, sess.Orders)
}

func (s *Server) handleSelectRow(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	s.await(r.Context(), view)
	if !view.ToggleRow(id) {
		err := fmt.Errorf("%w: %q", ErrUnknownRow, id)
		respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondView(w, r, view)
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	checked, err := parseChecked(r.FormValue("checked"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid value for 'checked'")
		return
	}
	view.SetAll(checked)
	s.respondView(w, r, view)
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	s.await(r.Context(), view)
	if !view.ToggleMenu(id) {
		err := fmt.Errorf("%w: %q", ErrUnknownRow, id)
		respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondView(w, r, view)
}

func (s *Server) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	view.DismissNotice()
	s.respondView(w, r, view)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	view.Refresh()
	s.respondView(w, r, view)
}

// parseChecked accepts HTML checkbox values as well as boolean literals.
func parseChecked(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "", "off":
		return false, nil
	}
	return strconv.ParseBool(v)
}
