// Package discovery finds REST-managed devices on the local network with
// mDNS.
//
// Devices that expose a management API usually advertise "_https._tcp" or
// "_http._tcp". The Scanner browses both, optionally keeps only hostnames
// matching a pattern, and returns one Device per address with enough detail
// to build a connection profile.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	if err := scanner.SetHostPattern(`^relay-\d+`); err != nil {
//	    return err
//	}
//
//	devices, err := scanner.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d.Name(), d.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
