package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/sandeepkv93/device-session-guard/internal/service"
)

var errInvalidBody = errors.New("invalid request body")

// decodeJSON reads one JSON object. An empty body decodes to the zero value so that
// required-field checks report the missing field instead of a parse failure.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

// deviceFromRequest builds the device description from transport metadata. RemoteAddr
// is expected to have been rewritten by the RealIP middleware.
func deviceFromRequest(r *http.Request, deviceToken, previousAccessToken string) service.DeviceContext {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return service.DeviceContext{
		CorrelationToken: previousAccessToken,
		DeviceToken:      deviceToken,
		UserAgent:        r.UserAgent(),
		IP:               ip,
	}
}
