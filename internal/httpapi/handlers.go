package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"promofeed/internal/analytics"
	"promofeed/internal/attribution"
	"promofeed/internal/domain"
	"promofeed/internal/feed"
	"promofeed/internal/observability"
	"promofeed/internal/storage"
)

// Handler carries the dependencies for all API endpoints.
type Handler struct {
	compositor *feed.Compositor
	recorder   *attribution.Recorder
	analytics  *analytics.Service
	placements storage.PlacementStore
	logger     *log.Logger
}

// NewHandler creates an API handler.
func NewHandler(compositor *feed.Compositor, recorder *attribution.Recorder, analyticsSvc *analytics.Service, placements storage.PlacementStore, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		compositor: compositor,
		recorder:   recorder,
		analytics:  analyticsSvc,
		placements: placements,
		logger:     logger,
	}
}

type promotionPayload struct {
	PromotedListingID string `json:"promoted_listing_id"`
	Tier              string `json:"tier"`
}

type listingPayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	ShopID    string            `json:"shop_id"`
	PriceMin  float64           `json:"price_min"`
	PriceMax  float64           `json:"price_max"`
	ImageURL  string            `json:"image_url,omitempty"`
	Rating    float64           `json:"rating"`
	Promotion *promotionPayload `json:"promotion,omitempty"`
}

func (p *listingPayload) toDomain() *domain.Listing {
	if p == nil {
		return nil
	}
	l := &domain.Listing{
		ID:       p.ID,
		Name:     p.Name,
		ShopID:   p.ShopID,
		PriceMin: p.PriceMin,
		PriceMax: p.PriceMax,
		ImageURL: p.ImageURL,
		Rating:   p.Rating,
	}
	if p.Promotion != nil {
		l.Promotion = &domain.Promotion{
			PromotedListingID: p.Promotion.PromotedListingID,
			Tier:              domain.Tier(p.Promotion.Tier),
		}
	}
	return l
}

func listingFromDomain(l *domain.Listing) *listingPayload {
	p := &listingPayload{
		ID:       l.ID,
		Name:     l.Name,
		ShopID:   l.ShopID,
		PriceMin: l.PriceMin,
		PriceMax: l.PriceMax,
		ImageURL: l.ImageURL,
		Rating:   l.Rating,
	}
	if l.Promotion != nil {
		p.Promotion = &promotionPayload{
			PromotedListingID: l.Promotion.PromotedListingID,
			Tier:              string(l.Promotion.Tier),
		}
	}
	return p
}

func toDomainListings(payloads []*listingPayload) []*domain.Listing {
	listings := make([]*domain.Listing, 0, len(payloads))
	for _, p := range payloads {
		listings = append(listings, p.toDomain())
	}
	return listings
}

// ComposeFeed merges organic and promoted candidate streams into a page.
// A malformed promoted stream degrades to an organic-only page; a
// malformed organic stream is a client error.
func (h *Handler) ComposeFeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Organic  []*listingPayload `json:"organic"`
		Promoted []*listingPayload `json:"promoted"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}

	organic := toDomainListings(req.Organic)
	promoted := toDomainListings(req.Promoted)

	page, err := h.compositor.Compose(organic, promoted)
	if err != nil {
		observability.RecordFeedCompositionError()

		// The organic stream alone decides between degrade and reject.
		fallback, organicErr := h.compositor.Compose(organic, nil)
		if organicErr != nil {
			writeError(w, r, http.StatusBadRequest, "feed.invalid_organic", organicErr.Error())
			return
		}

		h.logger.Printf("httpapi: promoted stream rejected, serving organic only: %v", err)
		page = fallback
	}

	observability.RecordFeedComposed(len(page.Listings))

	listings := make([]*listingPayload, 0, len(page.Listings))
	for _, l := range page.Listings {
		listings = append(listings, listingFromDomain(l))
	}

	writeData(w, http.StatusOK, map[string]any{
		"listings":             listings,
		"promoted_listing_ids": page.PromotedListingIDs(),
	})
}

// TrackClick accepts a sponsored card click. Always 202: persistence is
// asynchronous and failures never reach the storefront.
func (h *Handler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PromotedListingID string `json:"promoted_listing_id"`
		ShopID            string `json:"shop_id"`
		ProductID         string `json:"product_id"`
		ClickedAt         int64  `json:"clicked_at"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}
	if req.PromotedListingID == "" {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "promoted_listing_id is required")
		return
	}
	if req.ClickedAt == 0 {
		req.ClickedAt = time.Now().UnixMilli()
	}

	h.recorder.RecordClick(req.PromotedListingID, req.ShopID, req.ProductID, req.ClickedAt)
	writeData(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// TrackImpressions accepts a batch of promoted placement displays.
func (h *Handler) TrackImpressions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PromotedListingIDs []string `json:"promoted_listing_ids"`
		ObservedAt         int64    `json:"observed_at"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}
	if req.ObservedAt == 0 {
		req.ObservedAt = time.Now().UnixMilli()
	}

	h.recorder.RecordImpressions(req.PromotedListingIDs, req.ObservedAt)
	writeData(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// TrackEvent accepts a generic marketplace view or click-through.
func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type       string  `json:"type"`
		ShopID     string  `json:"shop_id"`
		ProductID  *string `json:"product_id,omitempty"`
		OccurredAt int64   `json:"occurred_at"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}

	eventType := domain.EventType(req.Type)
	if eventType != domain.EventTypeView && eventType != domain.EventTypeClick {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "type must be VIEW or CLICK")
		return
	}
	if req.ShopID == "" {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "shop_id is required")
		return
	}
	if req.OccurredAt == 0 {
		req.OccurredAt = time.Now().UnixMilli()
	}

	h.recorder.RecordEvent(&domain.GenericEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		ShopID:     req.ShopID,
		ProductID:  req.ProductID,
		OccurredAt: req.OccurredAt,
	})
	writeData(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// GetAnalytics returns the trailing window rollup.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	windowDays := 7
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "request.invalid", "window_days must be an integer")
			return
		}
		windowDays = parsed
	}

	report, err := h.analytics.GetReport(r.Context(), windowDays)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidWindow) {
			writeError(w, r, http.StatusBadRequest, "analytics.invalid_window", "window_days must be positive")
			return
		}
		h.logger.Printf("httpapi: analytics report failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "analytics.unavailable", "failed to compute report")
		return
	}

	writeData(w, http.StatusOK, report)
}

type placementPayload struct {
	PromotedListingID string `json:"promoted_listing_id"`
	ListingID         string `json:"listing_id"`
	ShopID            string `json:"shop_id"`
	Tier              string `json:"tier"`
	Category          string `json:"category"`
	Region            string `json:"region"`
	CreatedAt         int64  `json:"created_at"`
}

func placementFromDomain(p *domain.Placement) *placementPayload {
	return &placementPayload{
		PromotedListingID: p.PromotedListingID,
		ListingID:         p.ListingID,
		ShopID:            p.ShopID,
		Tier:              string(p.Tier),
		Category:          p.Category,
		Region:            p.Region,
		CreatedAt:         p.CreatedAt,
	}
}

// CreatePlacement registers a campaign placement.
func (h *Handler) CreatePlacement(w http.ResponseWriter, r *http.Request) {
	var req placementPayload
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "invalid body")
		return
	}
	if req.PromotedListingID == "" || req.ListingID == "" || req.ShopID == "" {
		writeError(w, r, http.StatusBadRequest, "request.invalid", "promoted_listing_id, listing_id and shop_id are required")
		return
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = time.Now().UnixMilli()
	}

	placement := &domain.Placement{
		PromotedListingID: req.PromotedListingID,
		ListingID:         req.ListingID,
		ShopID:            req.ShopID,
		Tier:              domain.Tier(req.Tier),
		Category:          req.Category,
		Region:            req.Region,
		CreatedAt:         req.CreatedAt,
	}

	if err := h.placements.Insert(r.Context(), placement); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			writeError(w, r, http.StatusConflict, "placement.exists", "placement already registered")
		case errors.Is(err, storage.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "request.invalid", "invalid placement")
		default:
			h.logger.Printf("httpapi: placement insert failed: %v", err)
			writeError(w, r, http.StatusInternalServerError, "placement.unavailable", "failed to store placement")
		}
		return
	}

	writeData(w, http.StatusCreated, placementFromDomain(placement))
}

// GetPlacement returns a single placement by promoted listing id.
func (h *Handler) GetPlacement(w http.ResponseWriter, r *http.Request) {
	promotedListingID := chi.URLParam(r, "id")

	placement, err := h.placements.GetByID(r.Context(), promotedListingID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "placement.not_found", "placement not registered")
			return
		}
		h.logger.Printf("httpapi: placement get failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "placement.unavailable", "failed to load placement")
		return
	}

	writeData(w, http.StatusOK, placementFromDomain(placement))
}

// ListPlacements returns placements, optionally filtered by shop_id.
func (h *Handler) ListPlacements(w http.ResponseWriter, r *http.Request) {
	var (
		placements []*domain.Placement
		err        error
	)

	if shopID := r.URL.Query().Get("shop_id"); shopID != "" {
		placements, err = h.placements.GetByShop(r.Context(), shopID)
	} else {
		placements, err = h.placements.GetAll(r.Context())
	}
	if err != nil {
		h.logger.Printf("httpapi: placement list failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "placement.unavailable", "failed to list placements")
		return
	}

	payload := make([]*placementPayload, 0, len(placements))
	for _, p := range placements {
		payload = append(payload, placementFromDomain(p))
	}

	writeData(w, http.StatusOK, payload)
}
