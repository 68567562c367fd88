package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kingdom/internal/config"
	"kingdom/internal/economy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg config.APIConfig
	log *slog.Logger
	eco *economy.Service
	mux *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, eco *economy.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg: cfg,
		log: logger,
		eco: eco,
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.serviceAuthMiddleware)

		r.Post("/countries", s.handleCreateCountry)
		r.Get("/countries/{country_id}", s.handleCountry)
		r.Get("/countries/{country_id}/treasury/history", s.handleTreasuryHistory)

		r.Group(func(r chi.Router) {
			r.Use(s.adminAuthMiddleware)
			r.Put("/countries/{country_id}/policy/tax", s.handleSetMarketTax)
		})

		r.Post("/countries/{country_id}/lands", s.handleAssignLand)
		r.Get("/countries/{country_id}/lands", s.handleLands)
		r.Get("/countries/{country_id}/lands/{channel_id}", s.handleLand)
		r.Post("/countries/{country_id}/claims", s.handleClaim)
		r.Post("/countries/{country_id}/crafts", s.handleCraft)
		r.Post("/countries/{country_id}/npc/sales", s.handleNPCSale)
		r.Get("/countries/{country_id}/inventory/{user_id}", s.handleInventory)

		r.Post("/countries/{country_id}/listings", s.handleRegisterListing)
		r.Get("/countries/{country_id}/listings", s.handleOpenListings)
		r.Get("/countries/{country_id}/listings/{listing_id}", s.handleListing)
		r.Post("/countries/{country_id}/listings/{listing_id}/cancel", s.handleCancelListing)
		r.Post("/countries/{country_id}/buys/quote", s.handleQuoteBuy)
		r.Post("/countries/{country_id}/buys/confirm", s.handleConfirmBuy)
		r.Post("/countries/{country_id}/buys/cancel", s.handleCancelQuote)

		r.Get("/countries/{country_id}/prices", s.handlePrices)
		r.Get("/countries/{country_id}/prices/{item_id}", s.handlePrice)
		r.Get("/countries/{country_id}/rankings/balances", s.handleBalanceRankings)

		r.Get("/items", s.handleItems)
		r.Get("/recipes", s.handleRecipes)
		r.Get("/recipes/{product_id}", s.handleRecipe)
		r.Get("/rankings/treasuries", s.handleTreasuryRankings)
		r.Get("/rankings/balances", s.handleGlobalBalanceRankings)
	})
}

// serviceAuthMiddleware gates the whole API behind the shared service token.
// The callers are trusted bot frontends, not end users; user identity rides
// in the request payloads.
func (s *Server) serviceAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.ServiceToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid service token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Admin-Token"))
		if s.cfg.AdminToken == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCreateCountry(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CountryID int64  `json:"country_id"`
		Name      string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.CreateCountry(r.Context(), in.CountryID, in.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleCountry(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	out, err := s.eco.Country(r.Context(), countryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTreasuryHistory(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	out, err := s.eco.TreasuryHistory(r.Context(), countryID, queryLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleSetMarketTax(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		TaxBp int32 `json:"tax_bp"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.SetMarketTaxBp(r.Context(), countryID, in.TaxBp)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAssignLand(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		ChannelID int64 `json:"channel_id"`
		Tier      int   `json:"tier"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.AssignLand(r.Context(), economy.AssignLandInput{
		CountryID: countryID,
		ChannelID: in.ChannelID,
		Tier:      in.Tier,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleLands(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	out, err := s.eco.Lands(r.Context(), countryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lands": out})
}

func (s *Server) handleLand(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	channelID, err := pathID(r, "channel_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid channel id")
		return
	}
	out, err := s.eco.Land(r.Context(), countryID, channelID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		UserID    int64 `json:"user_id"`
		ChannelID int64 `json:"channel_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.Claim(r.Context(), economy.ClaimInput{
		CountryID: countryID,
		UserID:    in.UserID,
		ChannelID: in.ChannelID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCraft(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		UserID    int64  `json:"user_id"`
		ProductID string `json:"product_id"`
		Batches   int64  `json:"batches"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Batches == 0 {
		in.Batches = 1
	}
	out, err := s.eco.Craft(r.Context(), economy.CraftInput{
		CountryID: countryID,
		UserID:    in.UserID,
		ProductID: in.ProductID,
		Batches:   in.Batches,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNPCSale(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		UserID int64  `json:"user_id"`
		ItemID string `json:"item_id"`
		Qty    int64  `json:"qty"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.SellToNPC(r.Context(), economy.NPCSaleInput{
		CountryID: countryID,
		UserID:    in.UserID,
		ItemID:    in.ItemID,
		Qty:       in.Qty,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	userID, err := pathID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	out, err := s.eco.Inventory(r.Context(), countryID, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inventory": out})
}

func (s *Server) handleRegisterListing(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		SellerID  int64  `json:"seller_id"`
		ItemID    string `json:"item_id"`
		Qty       int64  `json:"qty"`
		UnitPrice int64  `json:"unit_price"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.RegisterListing(r.Context(), economy.RegisterListingInput{
		CountryID: countryID,
		SellerID:  in.SellerID,
		ItemID:    in.ItemID,
		Qty:       in.Qty,
		UnitPrice: in.UnitPrice,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleOpenListings(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	itemID := strings.TrimSpace(r.URL.Query().Get("item_id"))
	if itemID == "" {
		writeError(w, http.StatusBadRequest, "item_id is required")
		return
	}
	out, err := s.eco.OpenListings(r.Context(), countryID, itemID, queryLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	listingID, err := pathID(r, "listing_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	out, err := s.eco.Listing(r.Context(), countryID, listingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelListing(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	listingID, err := pathID(r, "listing_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listing id")
		return
	}
	var in struct {
		UserID int64 `json:"user_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.CancelListing(r.Context(), countryID, listingID, in.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuoteBuy(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		BuyerID   int64 `json:"buyer_id"`
		ListingID int64 `json:"listing_id"`
		Qty       int64 `json:"qty"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.QuoteBuy(r.Context(), economy.QuoteBuyInput{
		CountryID: countryID,
		BuyerID:   in.BuyerID,
		ListingID: in.ListingID,
		Qty:       in.Qty,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConfirmBuy(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		BuyerID int64  `json:"buyer_id"`
		Token   string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.ConfirmBuy(r.Context(), countryID, in.BuyerID, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancelQuote(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	var in struct {
		BuyerID int64  `json:"buyer_id"`
		Token   string `json:"token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quote, err := s.eco.CancelQuote(countryID, in.BuyerID, in.Token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true, "quote": quote})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	out, err := s.eco.Prices(r.Context(), countryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": out})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	out, err := s.eco.Price(r.Context(), countryID, chi.URLParam(r, "item_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	out, err := s.eco.Items(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	out, err := s.eco.Recipes(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipes": out})
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	out, err := s.eco.Recipe(r.Context(), chi.URLParam(r, "product_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTreasuryRankings(w http.ResponseWriter, r *http.Request) {
	out, err := s.eco.TopTreasuries(r.Context(), queryLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) handleBalanceRankings(w http.ResponseWriter, r *http.Request) {
	countryID, err := pathID(r, "country_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid country id")
		return
	}
	out, err := s.eco.TopBalances(r.Context(), countryID, queryLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func (s *Server) handleGlobalBalanceRankings(w http.ResponseWriter, r *http.Request) {
	out, err := s.eco.TopBalancesGlobal(r.Context(), queryLimit(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrValidation), errors.Is(err, economy.ErrInsufficient):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, economy.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, economy.ErrExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, economy.ErrConflict), errors.Is(err, economy.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
