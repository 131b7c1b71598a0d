package returns

import (
	"time"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/listview"
)

var DefaultSort = listview.Sort{Field: FieldCreatedOn, Direction: listview.Desc}

func OrderSchema() listview.Schema[ReturnOrder] {
	return listview.Schema[ReturnOrder]{
		ID: func(o ReturnOrder) string { return o.ID },
		SortKeys: []listview.SortKey[ReturnOrder]{
			{Field: FieldDistributor, Label: "Distributor", Text: func(o ReturnOrder) string { return o.Distributor }},
			{Field: FieldCreatedOn, Label: "Created On", Time: func(o ReturnOrder) time.Time { return o.CreatedOn.At }},
			{Field: FieldOrderID, Label: "Order ID", Text: func(o ReturnOrder) string { return o.OrderID }},
		},
		Strings: func(o ReturnOrder) []string {
			return []string{o.ID, o.OrderID, o.Distributor, string(o.Status)}
		},
	}
}

func RequestSchema() listview.Schema[ReturnRequest] {
	return listview.Schema[ReturnRequest]{
		ID: func(r ReturnRequest) string { return r.ID },
		SortKeys: []listview.SortKey[ReturnRequest]{
			{Field: FieldDistributor, Label: "Distributor", Text: func(r ReturnRequest) string { return r.Distributor }},
			{Field: FieldCreatedOn, Label: "Created On", Time: func(r ReturnRequest) time.Time { return r.CreatedOn.At }},
			{Field: FieldSerialNumber, Label: "Serial Number", Text: func(r ReturnRequest) string { return r.SerialNumber }},
		},
		Strings: func(r ReturnRequest) []string {
			return []string{r.ID, r.Distributor, r.IOLModel, r.Diopter, r.Cylinder, r.SerialNumber}
		},
	}
}
