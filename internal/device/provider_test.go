package device

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/slotengine/internal/geoip"
	"github.com/patrickwarner/slotengine/internal/models"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"

func TestResolve_iPhone(t *testing.T) {
	ctx := Resolve(nil, Facts{
		UserAgent: iphoneUA,
		IPv6:      "2001:db8::1",
		Carrier:   "310-410",
	})

	assert.Equal(t, models.DeviceTypePhone, ctx.DeviceType)
	assert.Equal(t, "Apple", ctx.Make)
	assert.Equal(t, "Phone", ctx.Model)
	assert.Equal(t, "iOS", ctx.OS)
	assert.Equal(t, iphoneUA, ctx.UA)
	assert.Equal(t, "2001:db8::1", ctx.IPv6)
	assert.Equal(t, "310-410", ctx.Carrier)
	assert.NotEmpty(t, ctx.OSVersion)
}

func TestResolve_DesktopAndUnknown(t *testing.T) {
	desktop := Resolve(nil, Facts{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
	})
	assert.Equal(t, models.DeviceTypePC, desktop.DeviceType)
	assert.Equal(t, "Microsoft", desktop.Make)

	unknown := Resolve(nil, Facts{UserAgent: "curl/8.5.0"})
	assert.Equal(t, models.DeviceTypeOther, unknown.DeviceType)
	assert.Empty(t, unknown.Make)
}

func TestResolve_GeoFromFallbackFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`[{"net":"203.0.113.0/24","country":"US","region":"NY","city":"New York","lat":40.7,"lon":-74.0}]`), 0o644))
	g, err := geoip.Init(path)
	require.NoError(t, err)
	defer g.Close()

	ctx := Resolve(g, Facts{UserAgent: iphoneUA, ClientIP: "203.0.113.9"})
	assert.Equal(t, "US", ctx.Geo.Country)
	assert.Equal(t, "New York", ctx.Geo.City)
	assert.InDelta(t, 40.7, ctx.Geo.Lat, 0.001)

	// Unparseable IPs leave geo zero rather than failing resolution.
	noIP := Resolve(g, Facts{UserAgent: iphoneUA, ClientIP: "not-an-ip"})
	assert.Equal(t, models.Geo{}, noIP.Geo)
}

func TestStatic_ImmediatelyReady(t *testing.T) {
	want := models.DeviceContext{UA: "fixed"}
	ctx, ok := Static{Ctx: want}.Context()
	assert.True(t, ok)
	assert.Equal(t, want, ctx)
}

func TestAsync_ReportsNotReadyUntilResolved(t *testing.T) {
	release := make(chan struct{})
	a := NewAsync(func() models.DeviceContext {
		<-release
		return models.DeviceContext{UA: "resolved"}
	})

	_, ok := a.Context()
	assert.False(t, ok)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := a.Context()
		return ok
	}, time.Second, 5*time.Millisecond)

	ctx, _ := a.Context()
	assert.Equal(t, "resolved", ctx.UA)
}
