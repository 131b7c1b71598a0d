package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gitlab.ozon.dev/pupkingeorgij/returns-dashboard/internal/returns"
)

type Tab string

const (
	TabOrders   Tab = "order"
	TabRequests Tab = "requests"
)

var ErrInvalidTab = errors.New("invalid tab")

func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case TabOrders, TabRequests:
		return Tab(s), nil
	case "":
		return TabOrders, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTab, s)
	}
}

// Deps are shared by every session.
type Deps struct {
	Orders           Source[returns.ReturnOrder]
	Requests         Source[returns.ReturnRequest]
	DebounceInterval time.Duration
	Logger           *zap.Logger
}

// Session is the navigation shell plus both list views of one browser.
type Session struct {
	ID string

	Orders   *ViewController[returns.ReturnOrder]
	Requests *ViewController[returns.ReturnRequest]

	mx        sync.Mutex
	tab       Tab
	collapsed bool

	cancel context.CancelFunc
	logger *zap.Logger
}

// NewSession builds the views and starts their initial fetches.
func NewSession(id string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	logger := deps.Logger.With(zap.String("session", id))

	s := &Session{
		ID:     id,
		tab:    TabOrders,
		cancel: cancel,
		logger: logger,
		Orders: NewViewController(ctx, string(TabOrders), returns.OrderSchema(), returns.DefaultSort,
			deps.Orders, deps.DebounceInterval, logger),
		Requests: NewViewController(ctx, string(TabRequests), returns.RequestSchema(), returns.DefaultSort,
			deps.Requests, deps.DebounceInterval, logger),
	}
	s.Orders.Refresh()
	s.Requests.Refresh()
	return s
}

func (s *Session) Tab() Tab {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.tab
}

func (s *Session) SetTab(tab Tab) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.tab = tab
}

func (s *Session) Collapsed() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.collapsed
}

func (s *Session) ToggleCollapsed() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.collapsed = !s.collapsed
}

func (s *Session) View(tab Tab) (View, error) {
	switch tab {
	case TabOrders:
		return s.Orders, nil
	case TabRequests:
		return s.Requests, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTab, tab)
	}
}

// Reload refetches both views and waits for them to settle.
func (s *Session) Reload(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, v := range []View{s.Orders, s.Requests} {
		v := v
		g.Go(func() error {
			v.Refresh()
			return v.Await(ctx)
		})
	}
	return g.Wait()
}

// Await waits for both views to settle.
func (s *Session) Await(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Orders.Await(ctx) })
	g.Go(func() error { return s.Requests.Await(ctx) })
	return g.Wait()
}

func (s *Session) Close() {
	s.Orders.Close()
	s.Requests.Close()
	s.cancel()
	s.logger.Debug("session closed")
}
