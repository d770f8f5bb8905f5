// Command mockbidder is a development stand-in for the remote services the
// slot engine talks to: the bid-decision endpoint, the identity check, the
// journey collector, and a generic beacon sink. It cycles through the
// creative variants so every render path can be exercised end to end.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/patrickwarner/slotengine/internal/middleware"
	"github.com/patrickwarner/slotengine/internal/models"
	"github.com/patrickwarner/slotengine/internal/observability"
)

type bidHandler struct {
	logger *zap.Logger
	base   string
	serial atomic.Int64
}

func main() {
	logger, err := observability.InitLoggerWithService("mockbidder")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	addr := ":8788"
	if v := os.Getenv("MOCKBIDDER_ADDR"); v != "" {
		addr = v
	}
	base := "http://localhost" + addr

	h := &bidHandler{logger: logger, base: base}

	r := mux.NewRouter()
	r.Use(middleware.WithTraceLogger(logger))
	r.HandleFunc("/bid", h.bid).Methods(http.MethodPost)
	r.HandleFunc("/identity", h.identity).Methods(http.MethodGet)
	r.HandleFunc("/journey", h.collect("journey")).Methods(http.MethodGet)
	r.HandleFunc("/beacon", h.collect("beacon")).Methods(http.MethodGet)
	r.HandleFunc("/pixel.gif", h.pixel).Methods(http.MethodGet)

	logger.Info("mockbidder listening", zap.String("addr", addr))
	srv := &http.Server{Addr: addr, Handler: r, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

// bid decodes the engine's bid request and answers with one of the creative
// variants, rotating per request.
func (h *bidHandler) bid(w http.ResponseWriter, r *http.Request) {
	logger := middleware.LoggerFromRequest(r, h.logger)

	var req models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	n := h.serial.Add(1)
	var resp models.BidResponse
	switch n % 3 {
	case 0:
		resp = h.brandResponse()
	case 1:
		resp = h.ortbResponse()
	default:
		resp = h.testingResponse()
	}

	logger.Info("bid served",
		zap.Int("slot_id", req.SlotID),
		zap.String("ad_type", resp.AdType),
		zap.String("ua", req.Device.UA))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *bidHandler) brandResponse() models.BidResponse {
	return models.BidResponse{
		AdType:       models.AdTypeBrand,
		FullFilePath: h.base + "/pixel.gif",
		CreativeType: models.CreativeTypeImage,
		BrandName:    "Acme",
		Tracking: &models.Tracking{
			ImpressionURL:         h.base + "/beacon?e=imp",
			ClickURL:              h.base + "/beacon?e=click",
			BillableImpressionURL: h.base + "/beacon?e=billable",
			DestinationURL:        "https://example.com/acme",
		},
	}
}

func (h *bidHandler) ortbResponse() models.BidResponse {
	bidID := uuid.New().String()
	adm := fmt.Sprintf(
		`<a href="https://example.com/offer"><img src="%s/pixel.gif" onload="sendUrl('%s/beacon?e=onload')"></a>`,
		h.base, h.base)
	return models.BidResponse{
		AdType:   models.AdTypeORTB,
		ID:       uuid.New().String(),
		Currency: "USD",
		SeatBid: []models.SeatBid{{
			Seat: "seat-1",
			Bid: []models.Bid{{
				ID:    bidID,
				ImpID: "1",
				Price: 2.5,
				AdID:  "ad-42",
				Adm:   adm,
				NURL:  h.base + "/beacon?e=win&price=${AUCTION_PRICE}",
				BURL:  h.base + "/beacon?e=bill&bid=${AUCTION_BID_ID}",
			}},
		}},
	}
}

func (h *bidHandler) testingResponse() models.BidResponse {
	return models.BidResponse{
		AdType:       models.AdTypeTesting,
		FullFilePath: h.base + "/pixel.gif",
		CreativeType: models.CreativeTypeImage,
		Tracking: &models.Tracking{
			DestinationURL: "https://example.com/testing",
		},
	}
}

// identity accepts any non-empty pid.
func (h *bidHandler) identity(w http.ResponseWriter, r *http.Request) {
	pid := r.URL.Query().Get("pid")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": pid != ""})
}

// collect logs the hit and acknowledges with no content, like a real
// tracking collector.
func (h *bidHandler) collect(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.logger.Info("beacon received",
			zap.String("kind", kind),
			zap.String("query", r.URL.RawQuery))
		w.WriteHeader(http.StatusNoContent)
	}
}

// A 1x1 transparent GIF.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func (h *bidHandler) pixel(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/gif")
	_, _ = w.Write(pixelGIF)
}
