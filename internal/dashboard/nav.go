package dashboard

type NavItem struct {
	Name   string
	Icon   string
	Badge  string
	Active bool
}

var (
	MainMenu = []NavItem{
		{Name: "Dashboard", Icon: "layout-dashboard"},
		{Name: "List of surgeries", Icon: "clipboard-list", Badge: "01"},
		{Name: "Inventory Catalogue", Icon: "package"},
		{Name: "Purchase Orders", Icon: "shopping-cart", Badge: "01"},
		{Name: "Return Orders", Icon: "rotate-ccw", Badge: "04", Active: true},
	}

	FooterMenu = []NavItem{
		{Name: "Clinic", Icon: "home"},
		{Name: "Logout", Icon: "log-out"},
	}
)
