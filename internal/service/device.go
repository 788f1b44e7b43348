package service

import (
	"context"

	"github.com/sandeepkv93/device-session-guard/internal/repository"
)

// DeviceContext describes the client an issuance is for. CorrelationToken is the access
// token the device held before this issuance; when it matches a stored session owned by
// the same user that session is updated in place.
type DeviceContext struct {
	CorrelationToken string
	DeviceToken      string
	UserAgent        string
	IP               string
}

type GeoInfo struct {
	Latitude  string
	Longitude string
	State     string
	Country   string
	City      string
	Timezone  string
}

type GeoLocator interface {
	Locate(ctx context.Context, ip string) (GeoInfo, error)
}

type NoopGeoLocator struct{}

func (NoopGeoLocator) Locate(context.Context, string) (GeoInfo, error) { return GeoInfo{}, nil }

func (d DeviceContext) attributes(geo GeoInfo) repository.DeviceAttributes {
	return repository.DeviceAttributes{
		DeviceToken: d.DeviceToken,
		UserAgent:   d.UserAgent,
		IP:          d.IP,
		Latitude:    geo.Latitude,
		Longitude:   geo.Longitude,
		State:       geo.State,
		Country:     geo.Country,
		City:        geo.City,
		Timezone:    geo.Timezone,
	}
}
