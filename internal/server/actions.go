package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/dashboard"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
)

const maxUploadSize = 32 << 20

const (
	actionUpload   = "upload"
	actionDownload = "download"
	actionFax      = "fax"
	actionEmail    = "email"
	actionDelete   = "delete"
)

var collections = map[string]string{
	string(dashboard.TabOrders):   returns.OrdersCollection,
	string(dashboard.TabRequests): returns.RequestsCollection,
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("op", op), zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("op", op), zap.Int("status", status), zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func (s *Server) handleRowAction(w http.ResponseWriter, r *http.Request) {
	_, view, ok := s.view(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	id, action := vars["id"], vars["action"]
	collection := collections[view.Name()]
	ctx := r.Context()

	switch action {
	case actionUpload:
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			s.fail(w, r, action, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			s.fail(w, r, action, fmt.Errorf("%w: missing file", ErrBadRequest))
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := s.actions.Upload(ctx, collection, id, header.Filename, contentType, file, header.Size); err != nil {
			s.fail(w, r, action, err)
			return
		}
		view.CloseMenu()
		view.Refresh()

	case actionDownload:
		url, err := s.actions.DownloadURL(ctx, collection, id)
		if err != nil {
			s.fail(w, r, action, err)
			return
		}
		view.CloseMenu()
		if wantsJSON(r) {
			respondJSON(w, http.StatusOK, map[string]string{"url": url})
			return
		}
		http.Redirect(w, r, url, http.StatusSeeOther)
		return

	case actionFax, actionEmail:
		if err := s.actions.Send(ctx, collection, id, returns.Channel(action)); err != nil {
			s.fail(w, r, action, err)
			return
		}
		view.CloseMenu()
		view.Refresh()

	case actionDelete:
		if err := s.actions.Delete(ctx, collection, id); err != nil {
			s.fail(w, r, action, err)
			return
		}
		view.Remove(id)
		view.Refresh()

	default:
		s.fail(w, r, "row_action", fmt.Errorf("%w: %q", ErrUnknownAction, action))
		return
	}

	s.respondView(w, r, view)
}

func (s *Server) handleMarkAsSent(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.actions.MarkAsSent(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, "mark_sent", err)
		return
	}
	sess.Orders.CloseMenu()
	sess.Orders.Refresh()
	s.respondView(w, r, sess.Orders)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.actions.Track(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, "track", err)
		return
	}
	sess.Orders.CloseMenu()
	sess.Orders.Refresh()
	s.respondView(w, r, sess.Orders)
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	requestID := mux.Vars(r)["id"]

	var err error
	switch mode := r.FormValue("mode"); mode {
	case "new":
		_, err = s.actions.AttachNew(r.Context(), requestID)
	case "existing":
		orderID := r.FormValue("orderId")
		if orderID == "" {
			err = fmt.Errorf("%w: missing orderId", ErrBadRequest)
			break
		}
		err = s.actions.AttachExisting(r.Context(), requestID, orderID)
	default:
		err = fmt.Errorf("%w: attach mode %q", ErrBadRequest, mode)
	}
	if err != nil {
		s.fail(w, r, "attach", err)
		return
	}

	sess.Requests.CloseMenu()
	sess.Requests.Refresh()
	sess.Orders.Refresh()
	s.respondView(w, r, sess.Requests)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.actions.History(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, "history", err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
