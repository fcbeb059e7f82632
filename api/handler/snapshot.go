package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/pkg/httpcontext"
)

type SnapshotReader interface {
	Read(ctx context.Context, ownerID string) ([]byte, error)
}

type SnapshotHandler struct {
	baseHandler
	reader SnapshotReader
}

func NewSnapshotHandler(reader SnapshotReader, adapter *httpcontext.Adapter, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		baseHandler: newBaseHandler(adapter, logger),
		reader:      reader,
	}
}

// @Summary Latest catalog snapshot
// @Tags catalog
// @Router /owners/{owner_id}/catalog [get]
func (h *SnapshotHandler) Get(ctx *fasthttp.RequestCtx) {
	owner, err := h.ownerID(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	body, err := h.reader.Read(stdCtx, owner)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, json.RawMessage(body))
}
