// Package main provides the entry point for the subprobe CLI.
//
// subprobe downloads proxy subscriptions, tests every node through a
// sing-box instance and exports the reachable ones as share links and as
// a clash-style proxy document.
//
// Usage:
//
//	subprobe run [subscription-url...]
//	subprobe run --watch --interval 2h
//	subprobe parse payload.txt
//
// See --help for all available options.
package main

func main() {
	Execute()
}
