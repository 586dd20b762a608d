package trust

import (
	"net/url"
	"strings"

	"github.com/xxxsen/davconnector/davurl"
)

type IHostPolicy interface {
	Allowed(u string) bool
}

type hostPolicy struct {
	only  bool
	hosts map[string]struct{}
}

// NewHostPolicy builds a policy over host:port entries, a bare host matches every port. Entries
// given as urls are reduced to their host:port. When only is false every host is allowed.
func NewHostPolicy(only bool, hosts ...string) IHostPolicy {
	p := &hostPolicy{only: only, hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if len(h) == 0 {
			continue
		}
		if davurl.IsAcceptable(h) {
			pu, err := url.Parse(davurl.StripMarker(h))
			if err != nil {
				continue
			}
			h = davurl.HostPort(pu)
		}
		p.hosts[strings.ToLower(h)] = struct{}{}
	}
	return p
}

func (p *hostPolicy) Allowed(u string) bool {
	if !p.only {
		return true
	}
	pu, err := url.Parse(davurl.StripMarker(u))
	if err != nil || len(pu.Host) == 0 {
		return false
	}
	if _, ok := p.hosts[strings.ToLower(davurl.HostPort(pu))]; ok {
		return true
	}
	_, ok := p.hosts[strings.ToLower(pu.Hostname())]
	return ok
}
