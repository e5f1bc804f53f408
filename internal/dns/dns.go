package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Fallback resolvers queried when the system resolver fails. Classroom
// clients frequently sit behind captive or misconfigured school
// networks, so the relay hostname gets a second chance via well-known
// public DNS.
var fallbackDNS = []string{
	"1.1.1.1",        // Cloudflare
	"1.0.0.1",        // Cloudflare
	"8.8.8.8",        // Google
	"8.8.4.4",        // Google
	"9.9.9.9",        // Quad9
	"208.67.222.222", // Cisco OpenDNS
}

// Lookup resolves a hostname to a single IP address, preferring IPv4.
// The system resolver is tried first; on failure the public fallbacks
// are raced and the first answer wins.
func Lookup(host string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	ip, err := lookupWith(ctx, &net.Resolver{}, host)
	cancel()
	if err == nil {
		return ip, nil
	}

	return raceFallbacks(host)
}

func lookupWith(ctx context.Context, r *net.Resolver, host string) (string, error) {
	ips, err := r.LookupHost(ctx, host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", errors.New("no addresses found")
	}
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func raceFallbacks(host string) (string, error) {
	type answer struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	answers := make(chan answer, len(fallbackDNS))
	for _, server := range fallbackDNS {
		go func(server string) {
			r := &net.Resolver{
				PreferGo: true,
				Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
					d := new(net.Dialer)
					return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
				},
			}
			ip, err := lookupWith(ctx, r, host)
			answers <- answer{ip: ip, err: err}
		}(server)
	}

	for range fallbackDNS {
		select {
		case a := <-answers:
			if a.err == nil && a.ip != "" {
				return a.ip, nil
			}
		case <-ctx.Done():
			return "", fmt.Errorf("dns fallback race timed out for %s", host)
		}
	}
	return "", fmt.Errorf("failed to resolve %s: all fallback resolvers failed", host)
}
