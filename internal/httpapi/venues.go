package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sawpanic/tradebot/internal/config"
	"github.com/sawpanic/tradebot/internal/venue"
	"github.com/sawpanic/tradebot/internal/venueerrors"
)

func (s *Server) listVenues(w http.ResponseWriter, r *http.Request) {
	ids := s.venues.VenueIDs()
	out := make([]venue.Config, 0, len(ids))
	for _, id := range ids {
		if cfg, ok := s.venues.Config(id); ok {
			out = append(out, cfg)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) getVenue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cfg, ok := s.venues.Config(id)
	if !ok {
		s.writeAdapterError(w, r, venueerrors.NotFound(id))
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

// addVenue accepts a full VenueConfig body and registers (or replaces) the
// corresponding adapter via the venue factory table, then persists it.
func (s *Server) addVenue(w http.ResponseWriter, r *http.Request) {
	var body config.VenueConfig
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeBadRequest(w, r, "malformed venue config body")
		return
	}
	if body.VenueID == "" {
		s.writeBadRequest(w, r, "venue_id is required")
		return
	}

	cfg := body.ToVenueConfig()
	adapter, err := s.venueFactory(cfg)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.venues.Add(cfg, adapter)

	if s.configStore != nil {
		if err := s.persistVenue(body); err != nil {
			s.log.Warn().Err(err).Str("venue_id", body.VenueID).Msg("failed to persist venue config")
		}
	}

	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) deleteVenue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.venues.Remove(id) {
		s.writeAdapterError(w, r, venueerrors.NotFound(id))
		return
	}
	if s.configStore != nil {
		if stored, err := s.configStore.Load(); err == nil {
			stored.RemoveVenue(id)
			if err := s.configStore.Save(stored); err != nil {
				s.log.Warn().Err(err).Msg("failed to persist venue removal")
			}
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"venue_id": id, "status": "removed"})
}

func (s *Server) testVenue(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.venues.TestConnection(r.Context(), id); err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"venue_id": id, "status": "ok"})
}

func (s *Server) venueBalance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	bal, err := s.venues.FetchBalance(r.Context(), id)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bal)
}

func (s *Server) venueMarkets(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	markets, err := s.venues.FetchMarkets(r.Context(), id)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) venueTicker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	t, err := s.venues.FetchTicker(r.Context(), vars["id"], vars["symbol"])
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

// venueOrders services ?symbol=&status=open|closed|all per spec section 6.
func (s *Server) venueOrders(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	symbol := r.URL.Query().Get("symbol")
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "open"
	}

	var orders []venue.Order
	var err error
	switch status {
	case "open":
		orders, err = s.venues.FetchOpenOrders(r.Context(), id, symbol)
	case "closed":
		orders, err = s.venues.FetchClosedOrders(r.Context(), id, symbol)
	case "all":
		var open, closed []venue.Order
		open, err = s.venues.FetchOpenOrders(r.Context(), id, symbol)
		if err == nil {
			closed, err = s.venues.FetchClosedOrders(r.Context(), id, symbol)
		}
		orders = append(open, closed...)
	default:
		s.writeBadRequest(w, r, "status must be one of open, closed, all")
		return
	}
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, orders)
}

type createOrderBody struct {
	Symbol string   `json:"symbol"`
	Side   string   `json:"side"`
	Type   string   `json:"type"`
	Amount float64  `json:"amount"`
	Price  *float64 `json:"price,omitempty"`
}

func (s *Server) venueCreateOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body createOrderBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeBadRequest(w, r, "malformed order body")
		return
	}
	if body.Symbol == "" || body.Amount <= 0 {
		s.writeBadRequest(w, r, "symbol and a positive amount are required")
		return
	}

	req := venue.CreateOrderRequest{
		Symbol: body.Symbol,
		Side:   venue.OrderSide(body.Side),
		Type:   venue.OrderType(body.Type),
		Amount: body.Amount,
		Price:  body.Price,
	}
	order, err := s.venues.CreateOrder(r.Context(), id, req)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

func (s *Server) venueCancelOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := r.URL.Query().Get("symbol")
	order, err := s.venues.CancelOrder(r.Context(), vars["id"], vars["order_id"], symbol)
	if err != nil {
		s.writeAdapterError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

// supportedExchanges reports venue ids with a real adapter implementation,
// not config.DefaultVenues' pre-configured seed list — a venue can be in
// the default seed list without an adapter backing it.
func (s *Server) supportedExchanges(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, venue.ImplementedVenueIDs())
}

func (s *Server) persistVenue(v config.VenueConfig) error {
	stored, err := s.configStore.Load()
	if err != nil {
		return err
	}
	stored.AddVenue(v)
	return s.configStore.Save(stored)
}
