package returns

import (
	"strings"
	"time"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

// Formatter renders creation timestamps for display. Documents with a
// missing or malformed timestamp are stamped with Now.
type Formatter struct {
	DateLayout string
	TimeLayout string
	Location   *time.Location
	Now        func() time.Time
}

func NewFormatter(dateLayout, timeLayout string, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.Local
	}
	return Formatter{
		DateLayout: dateLayout,
		TimeLayout: timeLayout,
		Location:   loc,
		Now:        time.Now,
	}
}

func (f Formatter) CreatedOn(doc storage.Document) CreatedOn {
	at, ok := doc.Timestamp(FieldCreatedOn)
	if !ok {
		at = f.Now()
	}
	local := at.In(f.Location)
	return CreatedOn{
		At:   at,
		Date: local.Format(f.DateLayout),
		Time: local.Format(f.TimeLayout),
	}
}

func (f Formatter) Order(doc storage.Document) ReturnOrder {
	return ReturnOrder{
		ID:          doc.ID,
		OrderID:     doc.String(FieldOrderID),
		Distributor: doc.String(FieldDistributor),
		CreatedOn:   f.CreatedOn(doc),
		NoOfItems:   doc.Int(FieldNoOfItems),
		Status:      Status(doc.String(FieldStatus)),
		Documents:   doc.Strings(FieldDocuments),
	}
}

func (f Formatter) Request(doc storage.Document) ReturnRequest {
	cylinder := strings.TrimSpace(doc.String(FieldCylinder))
	if cylinder == "" {
		cylinder = CylinderNA
	}
	return ReturnRequest{
		ID:            doc.ID,
		Distributor:   doc.String(FieldDistributor),
		IOLModel:      doc.String(FieldIOLModel),
		Diopter:       doc.String(FieldDiopter),
		Cylinder:      cylinder,
		SerialNumber:  doc.String(FieldSerialNumber),
		CreatedOn:     f.CreatedOn(doc),
		ReturnOrderID: doc.String(FieldReturnOrderID),
		Documents:     doc.Strings(FieldDocuments),
	}
}
