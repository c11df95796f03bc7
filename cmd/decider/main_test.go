package main

import "testing"

func TestIsLoopbackListenAddress(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8091": true,
		"localhost:1":    true,
		"[::1]:8091":     true,
		":8091":          false,
		"0.0.0.0:8091":   false,
		"10.0.0.4:8091":  false,
	}
	for addr, want := range cases {
		if got := isLoopbackListenAddress(addr); got != want {
			t.Fatalf("%q: got %v want %v", addr, got, want)
		}
	}
}
