package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/api/transport"
	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/pkg/httpcontext"
)

// CatalogService is the write-side use case consumed by RecordHandler.
type CatalogService interface {
	Create(ctx context.Context, ownerID string, kind domain.EntityKind, input domain.Changes) (*domain.Record, error)
	Get(ctx context.Context, key domain.RecordKey) (*domain.Record, error)
	List(ctx context.Context, ownerID string, kind domain.EntityKind) ([]domain.Record, error)
	Update(ctx context.Context, key domain.RecordKey, changes domain.Changes, expectedVersion int) (*domain.Record, error)
	Delete(ctx context.Context, key domain.RecordKey) error
}

// RecordHandler serves one entity kind under /owners/{owner_id}/...
type RecordHandler struct {
	baseHandler
	kind    domain.EntityKind
	service CatalogService
}

func NewRecordHandler(kind domain.EntityKind, service CatalogService, adapter *httpcontext.Adapter, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		baseHandler: newBaseHandler(adapter, logger),
		kind:        kind,
		service:     service,
	}
}

func (h *RecordHandler) key(ctx *fasthttp.RequestCtx) (domain.RecordKey, error) {
	owner, err := h.ownerID(ctx)
	if err != nil {
		return domain.RecordKey{}, err
	}
	id, _ := ctx.UserValue("id").(string)
	return domain.RecordKey{OwnerID: owner, Kind: h.kind, ID: id}, nil
}

func decodeRecordRequest(body []byte) (transport.RecordRequest, error) {
	var req transport.RecordRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, domain.WrapError(domain.ErrCodeInvalid, "invalid request body", err)
	}
	return req, nil
}

// @Summary Create record
// @Tags catalog
// @Router /owners/{owner_id}/products [post]
// @Router /owners/{owner_id}/categories [post]
func (h *RecordHandler) Create(ctx *fasthttp.RequestCtx) {
	owner, err := h.ownerID(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	req, err := decodeRecordRequest(ctx.PostBody())
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	record, err := h.service.Create(stdCtx, owner, h.kind, req.Changes())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, record)
}

// @Summary Get record
// @Tags catalog
// @Router /owners/{owner_id}/products/{id} [get]
func (h *RecordHandler) Get(ctx *fasthttp.RequestCtx) {
	key, err := h.key(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	record, err := h.service.Get(stdCtx, key)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, record)
}

// @Summary List records of one kind
// @Tags catalog
// @Router /owners/{owner_id}/products [get]
func (h *RecordHandler) List(ctx *fasthttp.RequestCtx) {
	owner, err := h.ownerID(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	records, err := h.service.List(stdCtx, owner, h.kind)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	h.respondSuccess(ctx, http.StatusOK, records)
}

// @Summary Update record with optimistic concurrency
// @Tags catalog
// @Router /owners/{owner_id}/products/{id} [put]
func (h *RecordHandler) Update(ctx *fasthttp.RequestCtx) {
	key, err := h.key(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	req, err := decodeRecordRequest(ctx.PostBody())
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	record, err := h.service.Update(stdCtx, key, req.Changes(), req.Version)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, record)
}

// @Summary Delete record
// @Tags catalog
// @Router /owners/{owner_id}/products/{id} [delete]
func (h *RecordHandler) Delete(ctx *fasthttp.RequestCtx) {
	key, err := h.key(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.service.Delete(stdCtx, key); err != nil {
		h.respondError(ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusNoContent)
}
