package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"checkout-svc/middleware"
	"checkout-svc/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type OrderReader interface {
	FindForUser(ctx context.Context, id string, userID int64) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
}

type BillRenderer interface {
	Render(order *models.Order, generatedAt time.Time) ([]byte, error)
}

type BillCache interface {
	GetInvoice(ctx context.Context, orderID string) ([]byte, bool, error)
	SetInvoice(ctx context.Context, orderID string, pdf []byte) error
}

type OrderHandler struct {
	orders   OrderReader
	renderer BillRenderer
	cache    BillCache
	logger   *zap.Logger
	renders  singleflight.Group
	now      func() time.Time
}

// NewOrderHandler builds the order endpoints. cache may be nil.
func NewOrderHandler(orders OrderReader, renderer BillRenderer, cache BillCache, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		renderer: renderer,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "ListMyOrders")
	defer span.End()

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgAuthRequired})
		return
	}

	orders, err := h.orders.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, msgListFailed)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) DownloadBill(c *gin.Context) {
	ctx, span := otel.Tracer("checkout-service").Start(c.Request.Context(), "DownloadBill")
	defer span.End()

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": msgAuthRequired})
		return
	}

	orderID := c.Param("orderId")
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := h.orders.FindForUser(ctx, orderID, userID)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, msgBillFailed)
		return
	}

	pdf, err := h.bill(ctx, order)
	if err != nil {
		span.RecordError(err)
		respondError(c, h.logger, err, msgBillFailed)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="furnito-bill-%s.pdf"`, order.ID))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// bill renders the order's PDF. Paid orders are final, so their bills are
// served from the cache when possible; concurrent requests for one order
// share a single render.
func (h *OrderHandler) bill(ctx context.Context, order *models.Order) ([]byte, error) {
	cacheable := h.cache != nil && order.IsPaid()
	if cacheable {
		data, hit, err := h.cache.GetInvoice(ctx, order.ID)
		switch {
		case err != nil:
			middleware.RecordInvoiceCacheLookup("error")
			h.logger.Warn("Invoice cache lookup failed",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
		case hit:
			middleware.RecordInvoiceCacheLookup("hit")
			return data, nil
		default:
			middleware.RecordInvoiceCacheLookup("miss")
		}
	}

	key := order.ID + ":" + string(order.PaymentStatus)
	v, err, _ := h.renders.Do(key, func() (any, error) {
		start := time.Now()
		pdf, err := h.renderer.Render(order, h.now())
		middleware.ObserveInvoiceRender(time.Since(start))
		if err != nil {
			return nil, err
		}
		if cacheable {
			if err := h.cache.SetInvoice(context.WithoutCancel(ctx), order.ID, pdf); err != nil {
				h.logger.Warn("Failed to cache invoice",
					zap.String("trace_id", middleware.GetTraceID(ctx)),
					zap.String("order_id", order.ID),
					zap.Error(err),
				)
			}
		}
		return pdf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
