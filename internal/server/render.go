package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/dashboard"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/listview"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
)

//go:embed templates/*.html
var templatesFS embed.FS

type renderer struct {
	tmpl *template.Template
}

type sortHeader struct {
	Tab    string
	Column column
}

type rowMenuData struct {
	Tab   string
	ID    string
	Open  bool
	Items []menuItem
}

var funcs = template.FuncMap{
	"header": func(tab string, col column) sortHeader {
		return sortHeader{Tab: tab, Column: col}
	},
	"menu": func(tab, id string, open bool, items []menuItem) rowMenuData {
		return rowMenuData{Tab: tab, ID: id, Open: open, Items: items}
	},
}

func newRenderer() *renderer {
	return &renderer{
		tmpl: template.Must(template.New("page").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")),
	}
}

// render executes into a buffer so a template error never leaves a half
// written page.
func (p *renderer) render(w http.ResponseWriter, page pageData) error {
	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, "page.html", page); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to render page")
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err := buf.WriteTo(w)
	return err
}

type menuItem struct {
	Action string
	Label  string
}

var rowMenu = []menuItem{
	{Action: actionUpload, Label: "Upload Document"},
	{Action: actionDownload, Label: "Download PDF"},
	{Action: actionFax, Label: "Send Fax"},
	{Action: actionEmail, Label: "Send Email"},
	{Action: actionDelete, Label: "Delete Item"},
}

type column struct {
	Field  string
	Label  string
	Active bool
	Arrow  string
}

type ListData struct {
	Tab                string
	Loading            bool
	Search             string
	Suggestions        []string
	SuggestionsVisible bool
	Notice             string
	AllSelected        bool
	Columns            []column
	Menu               []menuItem
	Empty              string
}

type orderRow struct {
	ID          string
	OrderID     string
	Distributor string
	Date        string
	Time        string
	NoOfItems   int
	Status      string
	Tone        string
	Action      string
	ActionLabel string
	Selected    bool
	MenuOpen    bool
}

type ordersData struct {
	ListData
	DraftOnly bool
	Rows      []orderRow
}

type requestRow struct {
	ID            string
	Distributor   string
	IOLModel      string
	Diopter       string
	Cylinder      string
	SerialNumber  string
	CreatedOn     string
	ReturnOrderID string
	Selected      bool
	MenuOpen      bool
}

type requestsData struct {
	ListData
	Rows []requestRow
}

type pageData struct {
	Tab        string
	Collapsed  bool
	MainMenu   []dashboard.NavItem
	FooterMenu []dashboard.NavItem
	Orders     *ordersData
	Requests   *requestsData
}

func buildPage(sess *dashboard.Session) pageData {
	page := pageData{
		Tab:        string(sess.Tab()),
		Collapsed:  sess.Collapsed(),
		MainMenu:   dashboard.MainMenu,
		FooterMenu: dashboard.FooterMenu,
	}
	if sess.Tab() == dashboard.TabRequests {
		page.Requests = buildRequests(sess.Requests.Snapshot(), sess.Requests.Schema())
	} else {
		page.Orders = buildOrders(sess.Orders.Snapshot(), sess.Orders.Schema())
	}
	return page
}

func buildList[R any](tab string, snap listview.Snapshot[R], schema listview.Schema[R], empty string) ListData {
	columns := make([]column, 0, len(schema.SortKeys))
	for _, key := range schema.SortKeys {
		col := column{Field: key.Field, Label: key.Label}
		if snap.Sort.Field == key.Field {
			col.Active = true
			col.Arrow = "↑"
			if snap.Sort.Direction == listview.Desc {
				col.Arrow = "↓"
			}
		}
		columns = append(columns, col)
	}
	return ListData{
		Tab:                tab,
		Loading:            snap.Status == listview.StatusLoading,
		Search:             snap.Search,
		Suggestions:        snap.Suggestions,
		SuggestionsVisible: snap.SuggestionsVisible,
		Notice:             snap.Notice,
		AllSelected:        snap.AllSelected,
		Columns:            columns,
		Menu:               rowMenu,
		Empty:              empty,
	}
}

func buildOrders(snap listview.Snapshot[returns.ReturnOrder], schema listview.Schema[returns.ReturnOrder]) *ordersData {
	data := &ordersData{
		ListData:  buildList(string(dashboard.TabOrders), snap, schema, "No return orders found."),
		DraftOnly: snap.Filter == string(returns.StatusDraft),
		Rows:      make([]orderRow, 0, len(snap.View)),
	}
	for _, o := range snap.View {
		action := o.Status.ContextAction()
		data.Rows = append(data.Rows, orderRow{
			ID:          o.ID,
			OrderID:     o.OrderID,
			Distributor: o.Distributor,
			Date:        o.CreatedOn.Date,
			Time:        o.CreatedOn.Time,
			NoOfItems:   o.NoOfItems,
			Status:      string(o.Status),
			Tone:        string(o.Status.Tone()),
			Action:      string(action),
			ActionLabel: action.Label(),
			Selected:    snap.IsSelected(o.ID),
			MenuOpen:    snap.OpenMenu == o.ID,
		})
	}
	return data
}

func buildRequests(snap listview.Snapshot[returns.ReturnRequest], schema listview.Schema[returns.ReturnRequest]) *requestsData {
	data := &requestsData{
		ListData: buildList(string(dashboard.TabRequests), snap, schema, "No return requests found."),
		Rows:     make([]requestRow, 0, len(snap.View)),
	}
	for _, q := range snap.View {
		data.Rows = append(data.Rows, requestRow{
			ID:            q.ID,
			Distributor:   q.Distributor,
			IOLModel:      q.IOLModel,
			Diopter:       q.Diopter,
			Cylinder:      q.Cylinder,
			SerialNumber:  q.SerialNumber,
			CreatedOn:     q.CreatedOn.Date + " " + q.CreatedOn.Time,
			ReturnOrderID: q.ReturnOrderID,
			Selected:      snap.IsSelected(q.ID),
			MenuOpen:      snap.OpenMenu == q.ID,
		})
	}
	return data
}
