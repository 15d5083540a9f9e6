package connector

import (
	"net"
	"net/url"
	"strconv"
)

// postgresDSN formats cfg as a postgres:// URL. Parameters with empty values
// are left out; cfg.Params wins over sslmode and connect_timeout.
func postgresDSN(cfg Config) string {
	u := url.URL{Scheme: "postgres", Host: cfg.Host}
	if cfg.Port > 0 {
		u.Host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}
	switch {
	case cfg.Username != "" && cfg.Password != "":
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	case cfg.Username != "":
		u.User = url.User(cfg.Username)
	}
	if cfg.Database != "" {
		u.Path = "/" + cfg.Database
	}

	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("sslmode", cfg.SSLMode)
	if cfg.ConnectTimeout > 0 {
		set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	for k, v := range cfg.Params {
		set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
