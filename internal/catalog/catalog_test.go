package catalog

import (
	"testing"
	"time"

	"stockwatch/internal/config"
)

func gridConfig() config.CatalogConfig {
	return config.CatalogConfig{
		URLTemplate: "https://shop.example/{size}/{color_name}?id={color}_{size}",
		Colors:      map[string]string{"white": "Cloud_White", "blue": "Midnight_Blue"},
		Sizes:       []string{"32", "64"},
	}
}

func TestBuildItemsGrid(t *testing.T) {
	items, err := BuildItems(gridConfig())
	if err != nil {
		t.Fatalf("BuildItems: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}

	byKey := map[string]*Item{}
	for _, it := range items {
		byKey[it.Key] = it
	}
	w32 := byKey["white32"]
	if w32 == nil {
		t.Fatal("missing item white32")
	}
	if w32.URL != "https://shop.example/32/Cloud_White?id=white_32" {
		t.Fatalf("unexpected URL: %s", w32.URL)
	}
	if w32.Attrs["color"] != "white" || w32.Attrs["size"] != "32" {
		t.Fatalf("unexpected attrs: %+v", w32.Attrs)
	}
}

func TestBuildItemsExplicitAndDuplicate(t *testing.T) {
	cfg := gridConfig()
	cfg.Items = []config.ItemConfig{{Key: "special", URL: "https://shop.example/special"}}

	items, err := BuildItems(cfg)
	if err != nil {
		t.Fatalf("BuildItems: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("expected 5 items, got %d", len(items))
	}

	cfg.Items = append(cfg.Items, config.ItemConfig{Key: "white32", URL: "https://dup"})
	if _, err := BuildItems(cfg); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestBuildSubscribers(t *testing.T) {
	entries := map[string]*config.SubscriberConfig{
		"a@x.com": nil,
		"b@x.com": {Match: map[string]string{"color": "white"}, Interval: "1h"},
		"chat":    {Channel: "telegram", ChatID: 9, Interval: "10m"},
	}

	subs, err := BuildSubscribers(entries, "smtp")
	if err != nil {
		t.Fatalf("BuildSubscribers: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 subscribers, got %d", len(subs))
	}
	// Sorted by address: a@x.com, b@x.com, chat.
	if subs[0].Address != "a@x.com" || subs[0].Interval != 0 || subs[0].Channel != "smtp" {
		t.Fatalf("unexpected first subscriber: %+v", subs[0])
	}
	if subs[1].Interval != time.Hour {
		t.Fatalf("interval not parsed: %+v", subs[1])
	}
	if subs[2].Channel != ChannelTelegram || subs[2].ChatID != 9 {
		t.Fatalf("unexpected telegram subscriber: %+v", subs[2])
	}
}

func TestBuildSubscribersValidation(t *testing.T) {
	if _, err := BuildSubscribers(map[string]*config.SubscriberConfig{
		"x": {Channel: "telegram"},
	}, "smtp"); err == nil {
		t.Fatal("expected error for telegram without chat_id")
	}
	if _, err := BuildSubscribers(map[string]*config.SubscriberConfig{
		"x": {Channel: "pigeon"},
	}, "smtp"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if _, err := BuildSubscribers(map[string]*config.SubscriberConfig{
		"x": {Interval: "soon"},
	}, "smtp"); err == nil {
		t.Fatal("expected error for bad interval")
	}
}

func TestIndexFiltering(t *testing.T) {
	items, err := BuildItems(gridConfig())
	if err != nil {
		t.Fatalf("BuildItems: %v", err)
	}
	subs, err := BuildSubscribers(map[string]*config.SubscriberConfig{
		"all@x.com":   nil,
		"white@x.com": {Match: map[string]string{"color": "white"}},
		"w64@x.com":   {Match: map[string]string{"color": "white", "size": "64"}},
	}, "smtp")
	if err != nil {
		t.Fatalf("BuildSubscribers: %v", err)
	}

	idx := BuildIndex(items, subs)

	if got := len(idx.For("blue32")); got != 1 {
		t.Fatalf("blue32: expected 1 subscriber, got %d", got)
	}
	if got := len(idx.For("white32")); got != 2 {
		t.Fatalf("white32: expected 2 subscribers, got %d", got)
	}
	if got := len(idx.For("white64")); got != 3 {
		t.Fatalf("white64: expected 3 subscribers, got %d", got)
	}
	if got := idx.For("nope"); got != nil {
		t.Fatalf("unknown item should have no subscribers, got %v", got)
	}
}
