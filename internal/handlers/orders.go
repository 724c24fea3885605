package handlers

import (
	"context"
	"sync"

	"github.com/thanosan23/StockSim/internal/engine"
	"github.com/thanosan23/StockSim/internal/logger"
	"github.com/thanosan23/StockSim/internal/models"
)

// OrderType says whether an order opens or closes a position.
type OrderType int

const (
	OrderBuy OrderType = iota
	OrderSell
)

// Order is one buy or sell to be settled.
type Order struct {
	Type   OrderType
	UserID int
	Buy    models.BuyRequest
	Sell   models.SellRequest
}

// OrderResult carries the settlement outcome back to the submitter.
type OrderResult struct {
	Err      error
	Position models.Position      // set for buys
	Realized engine.RealizedDelta // set for sells
}

// orderJob pairs an order with the channel its result goes back on.
type orderJob struct {
	ctx      context.Context
	order    Order
	resultCh chan OrderResult
}

// OrderProcessor settles orders on a fixed worker pool. Orders from the same
// user are serialized by a per-user lock; the engine's row locks remain the
// correctness backstop against lost updates.
type OrderProcessor struct {
	workers    int
	orderQueue chan orderJob
	stopCh     chan struct{}
	wg         sync.WaitGroup
	userLocks  *models.UserLocks
	engine     *engine.Engine
	logger     logger.Logger
}

// NewOrderProcessor creates a processor with the given worker count.
func NewOrderProcessor(workers int, eng *engine.Engine, logger logger.Logger) *OrderProcessor {
	return &OrderProcessor{
		workers:    workers,
		orderQueue: make(chan orderJob, 100), // Buffer of 100 orders
		stopCh:     make(chan struct{}),
		userLocks:  models.NewUserLocks(),
		engine:     eng,
		logger:     logger,
	}
}

// Start starts the worker pool.
func (op *OrderProcessor) Start() {
	for i := 0; i < op.workers; i++ {
		op.wg.Add(1)
		go op.worker(i)
	}
	op.logger.Infof("started %d order workers", op.workers)
}

// Stop gracefully stops all workers.
func (op *OrderProcessor) Stop() {
	close(op.stopCh)
	op.wg.Wait()
	op.logger.Infof("order processor stopped")
}

func (op *OrderProcessor) worker(id int) {
	defer op.wg.Done()

	for {
		select {
		case <-op.stopCh:
			op.logger.Debugf("worker %d stopping", id)
			return

		case job := <-op.orderQueue:
			job.resultCh <- op.process(job.ctx, job.order)
		}
	}
}

// process settles a single order with per-user locking.
func (op *OrderProcessor) process(ctx context.Context, order Order) OrderResult {
	op.userLocks.LockUser(order.UserID)
	defer op.userLocks.UnlockUser(order.UserID)

	switch order.Type {
	case OrderSell:
		realized, err := op.engine.ClosePosition(ctx, order.UserID,
			models.LotKey{Symbol: order.Sell.Symbol, PurchasedAt: order.Sell.PurchasedAt},
			order.Sell.Quantity, order.Sell.RequestID)
		return OrderResult{Err: err, Realized: realized}

	default:
		pos, err := op.engine.OpenPosition(ctx, order.UserID, order.Buy.Symbol, order.Buy.Shares)
		return OrderResult{Err: err, Position: pos}
	}
}

// Submit queues an order and waits for its result.
func (op *OrderProcessor) Submit(ctx context.Context, order Order) OrderResult {
	resultCh := make(chan OrderResult)

	op.orderQueue <- orderJob{
		ctx:      ctx,
		order:    order,
		resultCh: resultCh,
	}

	return <-resultCh
}
