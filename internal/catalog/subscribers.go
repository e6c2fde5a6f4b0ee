package catalog

import (
	"fmt"
	"sort"
	"time"

	"stockwatch/internal/config"
)

// Channel names understood by the notification layer.
const (
	ChannelSMTP     = "smtp"
	ChannelTelegram = "telegram"
)

// Subscriber is one interested party. Immutable after startup.
//
// Interval semantics: the first notification for an item is always sent.
// A zero interval means nothing further is ever sent for that item; a
// positive interval re-arms once that much time has elapsed since the
// last notification.
type Subscriber struct {
	Address  string
	Channel  string
	ChatID   int64
	Interval time.Duration
	Match    map[string]string
}

func (s *Subscriber) String() string { return s.Address }

// Wants reports whether the subscriber's constraints select the item.
// An empty constraint set selects every item.
func (s *Subscriber) Wants(it *Item) bool {
	for k, v := range s.Match {
		if it.Attrs[k] != v {
			return false
		}
	}
	return true
}

// BuildSubscribers turns the declarative subscriber entries into runtime
// subscribers. defaultChannel applies to entries without an explicit one.
func BuildSubscribers(entries map[string]*config.SubscriberConfig, defaultChannel string) ([]*Subscriber, error) {
	if defaultChannel == "" {
		defaultChannel = ChannelSMTP
	}

	// Sort addresses so construction (and logs) are deterministic.
	addrs := make([]string, 0, len(entries))
	for a := range entries {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	subs := make([]*Subscriber, 0, len(entries))
	for _, addr := range addrs {
		sc := entries[addr]
		sub := &Subscriber{Address: addr, Channel: defaultChannel}
		if sc != nil {
			iv, err := config.ParseDurationField("subscribers."+addr+".interval", sc.Interval)
			if err != nil {
				return nil, err
			}
			sub.Interval = iv
			if sc.Channel != "" {
				sub.Channel = sc.Channel
			}
			sub.ChatID = sc.ChatID
			if len(sc.Match) > 0 {
				sub.Match = make(map[string]string, len(sc.Match))
				for k, v := range sc.Match {
					sub.Match[k] = v
				}
			}
		}

		switch sub.Channel {
		case ChannelSMTP:
		case ChannelTelegram:
			if sub.ChatID == 0 {
				return nil, fmt.Errorf("subscriber %s: telegram channel requires chat_id", addr)
			}
		default:
			return nil, fmt.Errorf("subscriber %s: unknown channel %q", addr, sub.Channel)
		}

		subs = append(subs, sub)
	}
	return subs, nil
}

// Index maps item keys to the subscribers interested in them.
// Built once at startup; read-only afterwards.
type Index struct {
	byItem map[string][]*Subscriber
}

func BuildIndex(items []*Item, subs []*Subscriber) *Index {
	idx := &Index{byItem: make(map[string][]*Subscriber, len(items))}
	for _, it := range items {
		var interested []*Subscriber
		for _, s := range subs {
			if s.Wants(it) {
				interested = append(interested, s)
			}
		}
		idx.byItem[it.Key] = interested
	}
	return idx
}

// For returns the subscribers interested in the given item key.
// The returned slice must not be modified.
func (x *Index) For(itemKey string) []*Subscriber {
	return x.byItem[itemKey]
}
