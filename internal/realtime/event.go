// Package realtime keeps one logical server-push subscription per domain
// alive, tracks the health of each, and routes typed events to handlers.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Domain is one of the closed set of realtime domains.
type Domain string

const (
	DomainSchedule      Domain = "schedule"
	DomainStories       Domain = "stories"
	DomainRewards       Domain = "rewards"
	DomainSpecialOffers Domain = "special_offers"
	DomainPromotions    Domain = "promotions"
	DomainPoints        Domain = "points"
)

// Domains lists every domain in the order Setup opens them.
var Domains = []Domain{
	DomainSchedule,
	DomainStories,
	DomainRewards,
	DomainSpecialOffers,
	DomainPromotions,
	DomainPoints,
}

// Valid reports whether d belongs to the closed domain set.
func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// ParseDomain validates s as a Domain.
func ParseDomain(s string) (Domain, error) {
	d := Domain(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown realtime domain %q", s)
	}
	return d, nil
}

type EventKind string

const (
	Created EventKind = "Created"
	Updated EventKind = "Updated"
	Deleted EventKind = "Deleted"
)

// EventKinds are the only kinds a channel listens for.
var EventKinds = []EventKind{Created, Updated, Deleted}

// Valid reports whether k is Created, Updated or Deleted.
func (k EventKind) Valid() bool {
	return k == Created || k == Updated || k == Deleted
}

// Event is what handlers receive. Payload is forwarded verbatim.
type Event struct {
	Domain  Domain          `json:"domain"`
	Kind    EventKind       `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Handler consumes events for one domain.
type Handler func(Event)

// ChannelName is the topic a domain's channel subscribes to.
func ChannelName(d Domain) string {
	return string(d) + "-changes"
}

// DomainForChannel reverses ChannelName.
func DomainForChannel(name string) (Domain, bool) {
	for _, d := range Domains {
		if ChannelName(d) == name {
			return d, true
		}
	}
	return "", false
}
