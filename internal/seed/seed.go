package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/storage"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type Order struct {
	ID          string     `yaml:"id"`
	OrderID     string     `yaml:"orderId"`
	Distributor string     `yaml:"distributor"`
	CreatedOn   *time.Time `yaml:"createdOn"`
	NoOfItems   int        `yaml:"noOfItems"`
	Status      string     `yaml:"status"`
}

type Request struct {
	ID            string     `yaml:"id"`
	Distributor   string     `yaml:"distributor"`
	IOLModel      string     `yaml:"iolModel"`
	Diopter       string     `yaml:"diopter"`
	Cylinder      string     `yaml:"cylinder"`
	SerialNumber  string     `yaml:"serialNumber"`
	CreatedOn     *time.Time `yaml:"createdOn"`
	ReturnOrderID string     `yaml:"returnOrderId"`
}

type Fixtures struct {
	Orders   []Order   `yaml:"orders"`
	Requests []Request `yaml:"requests"`
}

func Decode(r io.Reader) (Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	for i, o := range f.Orders {
		if o.ID == "" {
			return Fixtures{}, fmt.Errorf("order #%d: missing id", i)
		}
	}
	for i, q := range f.Requests {
		if q.ID == "" {
			return Fixtures{}, fmt.Errorf("request #%d: missing id", i)
		}
	}
	return f, nil
}

// Default returns the fixtures shipped with the binary.
func Default() (Fixtures, error) {
	return Decode(bytes.NewReader(defaultFixtures))
}

// Load reads fixtures from path, or the shipped ones when path is empty.
func Load(path string) (Fixtures, error) {
	if path == "" {
		return Default()
	}
	file, err := os.Open(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("open fixtures: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// Ops converts fixtures into Set operations. Empty optional fields are left
// out of the document so the dashboard's fallbacks apply.
func (f Fixtures) Ops() []storage.Op {
	ops := make([]storage.Op, 0, len(f.Orders)+len(f.Requests))
	for _, o := range f.Orders {
		fields := map[string]any{
			returns.FieldOrderID:     o.OrderID,
			returns.FieldDistributor: o.Distributor,
			returns.FieldNoOfItems:   o.NoOfItems,
			returns.FieldStatus:      o.Status,
		}
		if o.CreatedOn != nil {
			fields[returns.FieldCreatedOn] = storage.Timestamp(*o.CreatedOn)
		}
		ops = append(ops, storage.Set(returns.OrdersCollection, o.ID, fields))
	}
	for _, q := range f.Requests {
		fields := map[string]any{
			returns.FieldDistributor:  q.Distributor,
			returns.FieldIOLModel:     q.IOLModel,
			returns.FieldDiopter:      q.Diopter,
			returns.FieldSerialNumber: q.SerialNumber,
		}
		if q.Cylinder != "" {
			fields[returns.FieldCylinder] = q.Cylinder
		}
		if q.CreatedOn != nil {
			fields[returns.FieldCreatedOn] = storage.Timestamp(*q.CreatedOn)
		}
		if q.ReturnOrderID != "" {
			fields[returns.FieldReturnOrderID] = q.ReturnOrderID
		}
		ops = append(ops, storage.Set(returns.RequestsCollection, q.ID, fields))
	}
	return ops
}

// Apply writes every fixture in one atomic batch.
func Apply(ctx context.Context, store storage.Store, f Fixtures) error {
	ops := f.Ops()
	if len(ops) == 0 {
		return nil
	}
	if err := store.Apply(ctx, ops...); err != nil {
		return fmt.Errorf("apply fixtures: %w", err)
	}
	return nil
}
