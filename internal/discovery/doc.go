// Package discovery implements zero-configuration hub discovery over
// mDNS.
//
// A running hub announces itself as a "_hearth._tcp" service on the
// local network, carrying its API port and version in TXT records.
// Clients browse for that service type to find hubs without knowing
// their addresses:
//
//	scanner := discovery.NewScanner()
//	hubs, err := scanner.Scan(ctx)
//	for _, hub := range hubs {
//		fmt.Println(hub.Name, hub.Addr())
//	}
//
// The announcement side is used by the daemon:
//
//	announcer, err := discovery.Announce("hearth", 8423, version.Version)
//	defer announcer.Shutdown()
//
// Discovery is best effort. Networks that filter multicast traffic
// will not carry the announcements, so clients always accept an
// explicit host:port as well.
package discovery
