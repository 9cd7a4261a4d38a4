package item

import (
	"github.com/labstack/echo/v4"

	"github.com/Idan-Levin/slack-shopping-agent/internal/dto"
	"github.com/Idan-Levin/slack-shopping-agent/internal/entity"
	"github.com/Idan-Levin/slack-shopping-agent/internal/presentation/http/response"
	service "github.com/Idan-Levin/slack-shopping-agent/internal/service/list"
	"go.opentelemetry.io/otel"
)

var httpTracer = otel.Tracer("github.com/Idan-Levin/slack-shopping-agent/transport/http/item")

// Handler exposes read-only shopping list endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an item Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	e.GET("/items", h.listActive)
}

func (h *Handler) listActive(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "items.listActive")
	defer span.End()

	items, err := h.svc.ActiveItems(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.ItemResponse, len(items))
	for i, item := range items {
		out[i] = toDTO(item)
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func toDTO(item entity.ShoppingItem) dto.ItemResponse {
	return dto.ItemResponse{
		ID:       item.ID,
		UserID:   item.UserID,
		UserName: item.UserName,
		Title:    item.ProductTitle,
		URL:      item.ProductURL,
		ImageURL: item.ProductImageURL,
		Price:    item.Price,
		Quantity: item.Quantity,
		Status:   item.Status,
		AddedAt:  item.AddedAt,
	}
}
