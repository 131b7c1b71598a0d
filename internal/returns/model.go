package returns

import (
	"time"
)

const (
	OrdersCollection   = "returnOrder"
	RequestsCollection = "returnRequests"
)

const (
	FieldOrderID       = "orderId"
	FieldDistributor   = "distributor"
	FieldCreatedOn     = "createdOn"
	FieldNoOfItems     = "noOfItems"
	FieldStatus        = "status"
	FieldDocuments     = "documents"
	FieldIOLModel      = "iolModel"
	FieldDiopter       = "diopter"
	FieldCylinder      = "cylinder"
	FieldSerialNumber  = "serialNumber"
	FieldReturnOrderID = "returnOrderId"
)

// CylinderNA stands in for a missing cylinder value.
const CylinderNA = "NA"

type Status string

const (
	StatusDraft              Status = "Draft"
	StatusReturnOrderCreated Status = "Return Order created"
	StatusPendingDelivery    Status = "Pending Delivery"
	StatusDelivered          Status = "Delivered"
)

type CreatedOn struct {
	At   time.Time `json:"at"`
	Date string    `json:"date"`
	Time string    `json:"time"`
}

type ReturnOrder struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"orderId"`
	Distributor string    `json:"distributor"`
	CreatedOn   CreatedOn `json:"createdOn"`
	NoOfItems   int       `json:"noOfItems"`
	Status      Status    `json:"status"`
	Documents   []string  `json:"documents,omitempty"`
}

type ReturnRequest struct {
	ID            string    `json:"id"`
	Distributor   string    `json:"distributor"`
	IOLModel      string    `json:"iolModel"`
	Diopter       string    `json:"diopter"`
	Cylinder      string    `json:"cylinder"`
	SerialNumber  string    `json:"serialNumber"`
	CreatedOn     CreatedOn `json:"createdOn"`
	ReturnOrderID string    `json:"returnOrderId,omitempty"`
	Documents     []string  `json:"documents,omitempty"`
}
