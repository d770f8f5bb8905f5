package models

// DeviceType follows the OpenRTB device type enumeration for the subset of
// devices the engine distinguishes.
type DeviceType int

const (
	DeviceTypePC     DeviceType = 2
	DeviceTypeTV     DeviceType = 3
	DeviceTypePhone  DeviceType = 4
	DeviceTypeTablet DeviceType = 5
	DeviceTypeOther  DeviceType = 6
)

// Geo holds the geographic facts resolved for the client IP.
type Geo struct {
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	Type    int     `json:"type,omitempty"`
	Country string  `json:"country,omitempty"`
	Region  string  `json:"region,omitempty"`
	City    string  `json:"city,omitempty"`
}

// DeviceContext carries the page-wide device and geo facts used to build bid
// requests. It is produced once per run by the context provider, is read-only
// afterward, and is safe for concurrent read by every slot pipeline.
type DeviceContext struct {
	UA         string
	Geo        Geo
	IPv6       string
	DeviceType DeviceType
	Make       string
	Model      string
	OS         string
	OSVersion  string
	Carrier    string
}

// BidDevice is the device block of the bid request wire format.
type BidDevice struct {
	UA         string `json:"ua"`
	Geo        Geo    `json:"geo"`
	IPv6       string `json:"ipv6,omitempty"`
	DeviceType int    `json:"devicetype"`
	Make       string `json:"make,omitempty"`
	Model      string `json:"model,omitempty"`
	OS         string `json:"os,omitempty"`
	OSV        string `json:"osv,omitempty"`
	// JS is always 1: the engine only runs where scripting is available.
	JS      int    `json:"js"`
	Carrier string `json:"carrier,omitempty"`
}

// BidRequest is the body of the single POST issued per slot per pipeline run.
// It is constructed once and never retried.
type BidRequest struct {
	SlotID int       `json:"slot_id"`
	Device BidDevice `json:"device"`
	PID    string    `json:"pid,omitempty"`
}

// NewBidRequest derives the wire request for one slot from the shared
// device context. An empty pid is omitted from the body.
func NewBidRequest(slot Slot, device DeviceContext, pid string) BidRequest {
	return BidRequest{
		SlotID: slot.ID,
		Device: BidDevice{
			UA:         device.UA,
			Geo:        device.Geo,
			IPv6:       device.IPv6,
			DeviceType: int(device.DeviceType),
			Make:       device.Make,
			Model:      device.Model,
			OS:         device.OS,
			OSV:        device.OSVersion,
			JS:         1,
			Carrier:    device.Carrier,
		},
		PID: pid,
	}
}
