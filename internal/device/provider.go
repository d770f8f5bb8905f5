package device

import (
	"fmt"
	"net"
	"sync"

	"github.com/avct/uasurfer"

	"github.com/patrickwarner/slotengine/internal/geoip"
	"github.com/patrickwarner/slotengine/internal/models"
)

// Provider supplies the page-wide device context. The orchestrator polls it
// with bounded backoff before any slot is processed; once Context reports
// ok the value is immutable for the rest of the run.
type Provider interface {
	// Context returns the device context and whether it is available yet.
	Context() (models.DeviceContext, bool)
}

// Facts are the device inputs not derivable from the UA string.
type Facts struct {
	UserAgent string
	ClientIP  string
	IPv6      string
	Carrier   string
}

// Resolve derives a DeviceContext from the raw facts: the UA string is
// parsed with uasurfer for device type, make and OS, and the client IP is
// located through the GeoIP database.
func Resolve(g *geoip.GeoIP, facts Facts) models.DeviceContext {
	u := uasurfer.Parse(facts.UserAgent)

	var deviceType models.DeviceType
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		deviceType = models.DeviceTypePC
	case uasurfer.DevicePhone:
		deviceType = models.DeviceTypePhone
	case uasurfer.DeviceTablet:
		deviceType = models.DeviceTypeTablet
	case uasurfer.DeviceTV:
		deviceType = models.DeviceTypeTV
	default:
		deviceType = models.DeviceTypeOther
	}

	v := u.OS.Version
	ctx := models.DeviceContext{
		UA:         facts.UserAgent,
		IPv6:       facts.IPv6,
		DeviceType: deviceType,
		Make:       makeFromPlatform(u.OS.Platform),
		Model:      u.DeviceType.StringTrimPrefix(),
		OS:         u.OS.Name.StringTrimPrefix(),
		OSVersion:  fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch),
		Carrier:    facts.Carrier,
	}

	if ip := net.ParseIP(facts.ClientIP); ip != nil {
		loc := g.Locate(ip)
		ctx.Geo = models.Geo{
			Lat:     loc.Lat,
			Lon:     loc.Lon,
			Country: loc.Country,
			Region:  loc.Region,
			City:    loc.City,
		}
	}
	return ctx
}

func makeFromPlatform(p uasurfer.Platform) string {
	switch p {
	case uasurfer.PlatformiPhone, uasurfer.PlatformiPad, uasurfer.PlatformMac:
		return "Apple"
	case uasurfer.PlatformWindows, uasurfer.PlatformWindowsPhone:
		return "Microsoft"
	case uasurfer.PlatformPlaystation:
		return "Sony"
	case uasurfer.PlatformXbox:
		return "Microsoft"
	case uasurfer.PlatformNintendo:
		return "Nintendo"
	default:
		return ""
	}
}

// Static is a Provider that is immediately ready with a fixed context.
// Hosts that already know their device facts use it; so do tests.
type Static struct {
	Ctx models.DeviceContext
}

func (s Static) Context() (models.DeviceContext, bool) {
	return s.Ctx, true
}

// Async resolves the device context in the background and reports not-ready
// until resolution completes. It backs the orchestrator's backoff loop when
// context acquisition is slow (e.g. a cold GeoIP open).
type Async struct {
	mu    sync.Mutex
	ctx   models.DeviceContext
	ready bool
}

// NewAsync starts resolving through fn on a background goroutine.
func NewAsync(fn func() models.DeviceContext) *Async {
	a := &Async{}
	go func() {
		ctx := fn()
		a.mu.Lock()
		a.ctx = ctx
		a.ready = true
		a.mu.Unlock()
	}()
	return a
}

func (a *Async) Context() (models.DeviceContext, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx, a.ready
}
