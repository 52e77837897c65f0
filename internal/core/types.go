// Package core defines core types with zero external dependencies.
package core

import "fmt"

// Namespace scopes protocol ids so the same number in different domains
// resolves to different decoders.
type Namespace uint8

const (
	NSDLT     Namespace = iota // pcap DLT_* link types
	NSUnixPF                   // UNIX PF_* protocol families
	NSEther                    // ethertypes: 0x0800 = IPv4, etc.
	NSInet                     // IPv4 protocol numbers
	NSInet6                    // IPv6 next-header values
	NSIPX                      // Novell IPX packet types
	NSCisco                    // Cisco SNAP ids
	NSApple                    // Apple SNAP ids
	NSUStream                  // any stream protocol
	NSUDgram                   // any datagram protocol
	NSUSeqPkt                  // sequenced datagram protocols (eg. SCTP)

	NumNamespaces
)

var namespaceLabels = [NumNamespaces]string{
	NSDLT:     "dlt",
	NSUnixPF:  "unixpf",
	NSEther:   "ether",
	NSInet:    "inet",
	NSInet6:   "inet6",
	NSIPX:     "ipx",
	NSCisco:   "cisco",
	NSApple:   "apple",
	NSUStream: "ustream",
	NSUDgram:  "udgram",
	NSUSeqPkt: "useqpkt",
}

// Valid reports whether ns is one of the enumerated namespaces.
func (ns Namespace) Valid() bool {
	return ns < NumNamespaces
}

func (ns Namespace) String() string {
	if !ns.Valid() {
		return fmt.Sprintf("namespace(%d)", uint8(ns))
	}
	return namespaceLabels[ns]
}

// ProtoID is a protocol number within a Namespace, in host byte order.
type ProtoID uint32

// Well-known ids used by the built-in decoders.
const (
	DLTEthernet ProtoID = 1   // DLT_EN10MB
	DLTRaw      ProtoID = 12  // DLT_RAW (BSD value)
	DLTIPv4     ProtoID = 228 // LINKTYPE_IPV4
	LinkTypeRaw ProtoID = 101 // LINKTYPE_RAW as written in pcap files

	PFInet ProtoID = 2 // PF_INET

	EtherTypeIPv4 ProtoID = 0x0800
)
