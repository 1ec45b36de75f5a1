package auctionhandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopbidgo/internal/auction"
	"shopbidgo/internal/services/engine"
	"shopbidgo/internal/store"
)

type Handler struct {
	eng     engine.IAuctionEngine
	journal store.EventJournal
}

func New(eng engine.IAuctionEngine, journal store.EventJournal) *Handler {
	return &Handler{eng: eng, journal: journal}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/auctions", h.create)
	r.GET("/auctions", h.list)
	r.GET("/auctions/:id", h.info)
	r.DELETE("/auctions/:id", h.remove)
	r.POST("/auctions/:id/bid", h.bid)
	r.POST("/auctions/:id/buy-now", h.buyNow)
	r.POST("/auctions/:id/close", h.close)
	r.POST("/auctions/:id/relist", h.relist)
	r.GET("/auctions/:id/events", h.events)
}

// respondErr maps engine errors onto HTTP statuses. Admission and
// lifecycle rejections are conflicts, not client mistakes: the request
// was well-formed, the auction just moved on.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrContention):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrAuctionNotActive),
		errors.Is(err, auction.ErrBuyNowUnavailable),
		errors.Is(err, auction.ErrCannotRelist),
		errors.Is(err, auction.ErrAuctionHasBids),
		errors.Is(err, auction.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// @Summary		Create an auction
// @Description	Lists a product for auction. The listing stays pending until its start time.
// @Tags			Auctions
// @Param			body	body		CreateAuctionBody	true	"Listing payload"
// @Success		201		{object}	auction.Auction
// @Failure		400		{object}	ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateAuctionBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	a, err := h.eng.CreateAuction(ginCtx.Request.Context(), engine.CreateParams{
		ShopID:       body.ShopID,
		ProductRef:   body.ProductRef,
		StartTime:    body.StartTime,
		EndTime:      body.EndTime,
		StartingBid:  body.StartingBid,
		BuyNowPrice:  body.BuyNowPrice,
		ReservePrice: body.ReservePrice,
		Popcorn:      body.Popcorn,
	})
	if err != nil {
		respondErr(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, a)
}

// @Summary		Get auction details
// @Description	Returns full information about a single auction.
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"	default(auc123)
// @Success		200	{object}	auction.Auction
// @Failure		404	{object}	ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	a, err := h.eng.GetAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary		List auctions
// @Description	Retrieves a paginated list of auctions for a shop, optionally filtered by status.
// @Tags			Auctions
// @Param			shop_id	query		string	false	"Shop filter"
// @Param			status	query		string	false	"Status filter"			Enums(pending,active,ended,closed)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		auction.Auction
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.eng.ListAuctions(c.Request.Context(), q.ShopID, auction.Status(q.Status), q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Delete an auction
// @Description	Removes a listing that never took a bid.
// @Tags			Auctions
// @Param			id	path	string	true	"Auction ID"	default(auc123)
// @Success		204
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id} [delete]
func (h *Handler) remove(c *gin.Context) {
	if err := h.eng.DeleteAuction(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Place a bid
// @Description	Bidder places a higher bid; the receipt echoes the post-commit state.
// @Tags			Bidding
// @Param			id		path		string			true	"Auction ID"	default(auc123)
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		200		{object}	engine.BidReceipt
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Failure		503		{object}	ErrorResponse
// @Router			/auctions/{id}/bid [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	rec, err := h.eng.PlaceBid(ginCtx.Request.Context(),
		ginCtx.Param("id"),
		body.BidderID,
		body.DisplayName,
		body.Amount,
	)
	if err != nil {
		respondErr(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, rec)
}

// @Summary		Buy now
// @Description	Ends the auction immediately at the fixed price. First committed buyer wins.
// @Tags			Bidding
// @Param			id		path		string		true	"Auction ID"	default(auc123)
// @Param			body	body		BuyNowBody	true	"Buyer payload"
// @Success		200		{object}	engine.BidReceipt
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/auctions/{id}/buy-now [post]
func (h *Handler) buyNow(ginCtx *gin.Context) {
	var body BuyNowBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	rec, err := h.eng.BuyNow(ginCtx.Request.Context(),
		ginCtx.Param("id"),
		body.BuyerID,
		body.DisplayName,
	)
	if err != nil {
		respondErr(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, rec)
}

// @Summary		Close an auction
// @Description	Admin archive. Cancels a pending listing, settles and closes an active one, archives an ended one.
// @Tags			Lifecycle
// @Param			id	path		string	true	"Auction ID"	default(auc123)
// @Success		200	{object}	auction.Auction
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/auctions/{id}/close [post]
func (h *Handler) close(c *gin.Context) {
	a, err := h.eng.CloseAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary		Relist an auction
// @Description	Returns an ended, bid-free auction to pending with a fresh schedule.
// @Tags			Lifecycle
// @Param			id		path		string		true	"Auction ID"	default(auc123)
// @Param			body	body		RelistBody	true	"New schedule"
// @Success		200		{object}	auction.Auction
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/auctions/{id}/relist [post]
func (h *Handler) relist(ginCtx *gin.Context) {
	var body RelistBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	a, err := h.eng.RelistAuction(ginCtx.Request.Context(), ginCtx.Param("id"), engine.Schedule{
		StartTime: body.StartTime,
		EndTime:   body.EndTime,
	})
	if err != nil {
		respondErr(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, a)
}

// @Summary		Poll auction events
// @Description	Returns journalled events with version > since_version, oldest first. Polling fallback for clients without a live socket.
// @Tags			Events
// @Param			id				path		string	true	"Auction ID"	default(auc123)
// @Param			since_version	query		int		false	"Return events after this version"	minimum(0)	default(0)
// @Param			limit			query		int		false	"Max events (0-500)"				minimum(0)	maximum(500)	default(100)
// @Success		200				{array}		store.EventRecord
// @Failure		400				{object}	ErrorResponse
// @Router			/auctions/{id}/events [get]
func (h *Handler) events(c *gin.Context) {
	var q EventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	recs, err := h.journal.EventsSince(c.Request.Context(), c.Param("id"), q.SinceVersion, q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if recs == nil {
		recs = []store.EventRecord{}
	}
	c.JSON(http.StatusOK, recs)
}
