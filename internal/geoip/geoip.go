package geoip

import (
	"encoding/json"
	"net"
	"os"

	"github.com/oschwald/geoip2-golang"
)

// GeoIP provides location lookup using a MaxMind DB or a JSON fallback.
type GeoIP struct {
	db       *geoip2.Reader
	fallback []record
}

// Location holds the geographic facts resolved for one IP.
type Location struct {
	Country string
	Region  string
	City    string
	Lat     float64
	Lon     float64
}

type record struct {
	net *net.IPNet
	loc Location
}

// Init opens the GeoIP2 database located at path. When the file is not a
// MaxMind DB, a JSON array of {net, country, region, city, lat, lon} entries
// is accepted as a fallback for development and tests.
func Init(path string) (*GeoIP, error) {
	g := &GeoIP{}
	db, err := geoip2.Open(path)
	if err == nil {
		g.db = db
		return g, nil
	}

	data, jerr := os.ReadFile(path)
	if jerr != nil {
		return nil, err
	}
	var entries []struct {
		Net     string  `json:"net"`
		Country string  `json:"country"`
		Region  string  `json:"region"`
		City    string  `json:"city"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if jerr = json.Unmarshal(data, &entries); jerr != nil {
		return nil, err
	}
	for _, e := range entries {
		if _, n, perr := net.ParseCIDR(e.Net); perr == nil {
			g.fallback = append(g.fallback, record{net: n, loc: Location{
				Country: e.Country,
				Region:  e.Region,
				City:    e.City,
				Lat:     e.Lat,
				Lon:     e.Lon,
			}})
		}
	}
	return g, nil
}

// Locate returns the location for the given IP. If the IP is not found or
// the database hasn't been initialised, the zero Location is returned.
func (g *GeoIP) Locate(ip net.IP) Location {
	if g == nil || ip == nil {
		return Location{}
	}
	if g.db != nil {
		rec, err := g.db.City(ip)
		if err == nil {
			loc := Location{
				Country: rec.Country.IsoCode,
				City:    rec.City.Names["en"],
				Lat:     rec.Location.Latitude,
				Lon:     rec.Location.Longitude,
			}
			if len(rec.Subdivisions) > 0 {
				loc.Region = rec.Subdivisions[0].IsoCode
			}
			return loc
		}
	}
	for _, r := range g.fallback {
		if r.net.Contains(ip) {
			return r.loc
		}
	}
	return Location{}
}

// Close releases resources associated with the database.
func (g *GeoIP) Close() error {
	if g != nil && g.db != nil {
		return g.db.Close()
	}
	return nil
}
