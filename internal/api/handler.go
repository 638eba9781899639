package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/SIMPLYBOYS/pay_usdc/internal/db"
	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/settlement"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/gin-gonic/gin"
)

type QuoteResolver interface {
	ResolveRoute(ctx context.Context, tokenIn, tokenOut types.Token, amount string, referencePrice float64) (*types.SwapRoute, error)
}

type TokenRegistry interface {
	Lookup(name string) (types.Token, error)
	ReferencePrice(in, out types.Token) (float64, error)
}

type BatchSender interface {
	Send(ctx context.Context, req settlement.BatchRequest) (*settlement.BatchReport, error)
	SendList(ctx context.Context, req settlement.ListRequest) (*settlement.BatchReport, error)
}

type BatchStore interface {
	GetBatch(id string) (db.Batch, error)
}

type Handler struct {
	resolver QuoteResolver
	tokens   TokenRegistry
	batches  BatchSender
	store    BatchStore
}

func NewHandler(resolver QuoteResolver, tokens TokenRegistry, batches BatchSender, store BatchStore) *Handler {
	return &Handler{resolver: resolver, tokens: tokens, batches: batches, store: store}
}

type quoteRequest struct {
	TokenIn        string   `json:"tokenIn" binding:"required"`
	TokenOut       string   `json:"tokenOut" binding:"required"`
	Amount         string   `json:"amount" binding:"required"`
	ReferencePrice *float64 `json:"referencePrice"`
}

// Quote handles POST /quote
func (h *Handler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&apperrors.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid quote request", Err: err})
		return
	}

	tokenIn, err := h.tokens.Lookup(req.TokenIn)
	if err != nil {
		c.Error(&apperrors.APIError{StatusCode: http.StatusBadRequest, Message: "Unknown token " + req.TokenIn, Err: err})
		return
	}
	tokenOut, err := h.tokens.Lookup(req.TokenOut)
	if err != nil {
		c.Error(&apperrors.APIError{StatusCode: http.StatusBadRequest, Message: "Unknown token " + req.TokenOut, Err: err})
		return
	}

	// A missing reference price is left at zero; the resolver only needs it
	// when the router is down, and then reports the failure itself.
	var price float64
	if req.ReferencePrice != nil {
		price = *req.ReferencePrice
	} else if p, err := h.tokens.ReferencePrice(tokenIn, tokenOut); err == nil {
		price = p
	}

	route, err := h.resolver.ResolveRoute(c.Request.Context(), tokenIn, tokenOut, req.Amount, price)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"route":       route,
		"approximate": route.Approximate,
	})
}

// SendBatch handles POST /batches
func (h *Handler) SendBatch(c *gin.Context) {
	var req settlement.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&apperrors.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid batch request", Err: err})
		return
	}

	// The batch outlives the HTTP request so a dropped client cannot strand
	// half a payroll.
	report, err := h.batches.Send(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		c.Error(batchError(err))
		return
	}

	c.JSON(http.StatusOK, report)
}

// SendList handles POST /lists/:id/send
func (h *Handler) SendList(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.Error(&apperrors.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid list id"})
		return
	}

	var req settlement.ListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&apperrors.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid send request", Err: err})
		return
	}
	req.ListID = id

	report, err := h.batches.SendList(context.WithoutCancel(c.Request.Context()), req)
	if err != nil {
		c.Error(batchError(err))
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetBatch handles GET /batches/:id
func (h *Handler) GetBatch(c *gin.Context) {
	batch, err := h.store.GetBatch(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func batchError(err error) error {
	switch {
	case errors.Is(err, settlement.ErrUnknownChain),
		errors.Is(err, settlement.ErrEmptyBatch),
		errors.Is(err, settlement.ErrMissingSender):
		return &apperrors.APIError{StatusCode: http.StatusBadRequest, Message: err.Error(), Err: err}
	case errors.Is(err, settlement.ErrNotListOwner):
		return &apperrors.APIError{StatusCode: http.StatusForbidden, Message: err.Error(), Err: err}
	case errors.Is(err, settlement.ErrNoListStore):
		return &apperrors.APIError{StatusCode: http.StatusServiceUnavailable, Message: err.Error(), Err: err}
	}
	var apiErr *apperrors.APIError
	var notFound *apperrors.NotFoundError
	var dbErr *apperrors.DatabaseError
	if errors.As(err, &apiErr) || errors.As(err, &notFound) || errors.As(err, &dbErr) {
		return err
	}
	// Remaining start-up failures are bad sender addresses.
	return &apperrors.APIError{StatusCode: http.StatusBadRequest, Message: err.Error(), Err: err}
}
