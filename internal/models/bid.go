package models

// Ad types discriminating the bid response union. Any other value is an
// unsupported creative and a terminal outcome for the slot.
const (
	AdTypeBrand   = "brand"
	AdTypeORTB    = "ortb"
	AdTypeTesting = "testing_pid"
)

// Creative types discriminating the media element built for a creative.
const (
	CreativeTypeImage = "image"
	CreativeTypeVideo = "video"
)

// Tracking holds the per-creative notification URLs for brand and testing
// creatives. All fields are optional; a missing URL simply suppresses that
// beacon.
type Tracking struct {
	ImpressionURL         string `json:"impression_url,omitempty"`
	ClickURL              string `json:"click_url,omitempty"`
	BillableImpressionURL string `json:"billable_impression_url,omitempty"`
	DestinationURL        string `json:"destination_url,omitempty"`
	LandingPageURL        string `json:"landing_page_url,omitempty"`
}

// Bid is the winning bid of an ORTB response, following the OpenRTB 2.5
// seatbid[].bid[] shape. Adm carries the ad markup; NURL and BURL are the
// win and billing notice URLs, expanded through the auction macros before
// dispatch.
type Bid struct {
	ID    string  `json:"id"`
	ImpID string  `json:"impid"`
	Price float64 `json:"price"`
	AdID  string  `json:"adid,omitempty"`
	Adm   string  `json:"adm"`
	NURL  string  `json:"nurl,omitempty"`
	BURL  string  `json:"burl,omitempty"`
}

// SeatBid groups the bids of one seat. This engine assumes a single bid per
// slot, so only seatbid[0].bid[0] is consulted.
type SeatBid struct {
	Seat string `json:"seat,omitempty"`
	Bid  []Bid  `json:"bid"`
}

// BidResponse is the decision payload for one slot, a tagged union over
// AdType. Brand and testing creatives use the flat file-path form; ORTB
// responses follow the OpenRTB shape.
type BidResponse struct {
	AdType string `json:"ad_type"`

	// Brand / testing creative fields
	FullFilePath string    `json:"full_file_path,omitempty"`
	CreativeType string    `json:"creative_type,omitempty"`
	BrandName    string    `json:"brand_name,omitempty"`
	Tracking     *Tracking `json:"tracking,omitempty"`

	// ORTB fields
	ID       string    `json:"id,omitempty"`
	BidID    string    `json:"bid_id,omitempty"`
	Currency string    `json:"cur,omitempty"`
	SeatBid  []SeatBid `json:"seatbid,omitempty"`
}

// WinningBid returns seatbid[0].bid[0], or nil when the response carries no
// bid payload.
func (r *BidResponse) WinningBid() *Bid {
	if r == nil || len(r.SeatBid) == 0 || len(r.SeatBid[0].Bid) == 0 {
		return nil
	}
	return &r.SeatBid[0].Bid[0]
}

// AuctionID returns the response-level auction identifier, preferring the
// OpenRTB id over the legacy bid_id field.
func (r *BidResponse) AuctionID() string {
	if r == nil {
		return ""
	}
	if r.ID != "" {
		return r.ID
	}
	return r.BidID
}

// Seat returns the seat identifier of the first seatbid, if any.
func (r *BidResponse) Seat() string {
	if r == nil || len(r.SeatBid) == 0 {
		return ""
	}
	return r.SeatBid[0].Seat
}
