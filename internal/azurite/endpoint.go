package azurite

import (
	"strconv"
	"strings"
)

// Endpoint is the emulator address derived from the user-supplied URL.
type Endpoint struct {
	Host string
	Port uint16
}

func (e Endpoint) String() string {
	return e.Host + ":" + strconv.FormatUint(uint64(e.Port), 10)
}

// ParseEndpoint extracts host and port from an emulator URL such as
// https://127.0.0.1:10000/. The check is purely syntactic.
func ParseEndpoint(rawURL string) (Endpoint, error) {
	s := strings.TrimSuffix(rawURL, "/")
	if _, rest, ok := strings.Cut(s, "://"); ok {
		s = rest
	}

	i := strings.LastIndexByte(s, ':')
	if i <= 0 {
		return Endpoint{}, invalidParameter(rawURL)
	}
	port, err := strconv.ParseUint(s[i+1:], 10, 16)
	if err != nil {
		return Endpoint{}, invalidParameter(rawURL)
	}
	return Endpoint{Host: s[:i], Port: uint16(port)}, nil
}
