// Package firewall converts per-IP allow/deny decisions into live OS
// firewall rules.
//
// # Overview
//
// The package manages two named rule lists, a whitelist and a blacklist,
// on top of a pluggable backend. Each list owns one chain (or rule group)
// in the OS firewall plus an in-memory membership cache; mutations go
// through the cache first so repeated adds and removes never duplicate
// or over-delete OS rules.
//
// # Architecture
//
//	List (cache + mutex) → Backend → CommandRunner → iptables / netsh
//
// # Key Types
//
//   - [Rule]: one firewall predicate/action (protocol, ports, target, source)
//   - [Backend]: check/insert/append/delete operations on a named chain
//   - [IPTables]: chain-based Linux backend
//   - [Netsh]: named-rule-group Windows backend
//   - [List]: whitelist/blacklist policy over a Backend
//
// # Backend Models
//
// The two backends render the same list contract differently. iptables
// chains fall through to the system default, so a whitelist chain ends
// with an explicit catch-all DROP and traffic enters it via forwarding
// rules in INPUT. Windows Firewall groups match directly against a
// default-deny profile, so the catch-all and the forwarding layer have
// no rendering there; a blacklist group instead carries one standing
// allow for the guarded port. Backends declare their model through
// [Backend.DefaultDeny] and [Backend.InputChain] and the List adapts.
//
// # Example
//
//	be := firewall.NewIPTables()
//	wl := firewall.NewWhitelist("portcullis-whitelist", []int{7777, 7778}, be)
//	wl.Reset()
//	wl.Add("203.0.113.7")
package firewall
