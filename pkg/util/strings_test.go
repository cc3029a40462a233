package util

import (
    "strings"
    "testing"
)

func TestNormalizeListDedupesAndTrims(t *testing.T) {
    got := NormalizeList([]string{" btc ", "BTC", "", "eth"}, strings.ToUpper)
    if len(got) != 2 {
        t.Fatalf("expected 2 entries, got %v", got)
    }
    if got[0] != "BTC" || got[1] != "ETH" {
        t.Fatalf("unexpected order %v", got)
    }
}

func TestNormalizeListEmptyIsNil(t *testing.T) {
    if got := NormalizeList([]string{"  ", ""}, nil); got != nil {
        t.Fatalf("expected nil, got %v", got)
    }
    if got := NormalizeList(nil, nil); got != nil {
        t.Fatalf("expected nil for nil input, got %v", got)
    }
}
