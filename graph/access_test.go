package graph

import (
	"net/netip"
	"testing"
)

func TestPeer_IsUnrestricted(t *testing.T) {
	tests := []struct {
		name string
		peer Peer
		want bool
	}{
		{name: "all ipv4", peer: CIDRPeer(netip.MustParsePrefix("0.0.0.0/0")), want: true},
		{name: "all ipv6", peer: CIDRPeer(netip.MustParsePrefix("::/0")), want: true},
		{name: "office range", peer: CIDRPeer(netip.MustParsePrefix("203.0.113.0/24")), want: false},
		{name: "group reference", peer: GroupPeer("web"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.peer.IsUnrestricted(); got != tt.want {
				t.Errorf("IsUnrestricted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPortRange(t *testing.T) {
	r := PortRange{From: 1024, To: 2048}
	if !r.Contains(1024) || !r.Contains(2048) || !r.Contains(1500) {
		t.Error("Contains() should include range endpoints and interior")
	}
	if r.Contains(1023) || r.Contains(2049) {
		t.Error("Contains() should exclude ports outside the range")
	}
	if got := r.String(); got != "1024-2048" {
		t.Errorf("String() = %v, want 1024-2048", got)
	}
	if got := Port(443).String(); got != "443" {
		t.Errorf("Port(443).String() = %v, want 443", got)
	}
}

func TestWellKnownWebPorts(t *testing.T) {
	if PortPlaintextHTTP != 80 {
		t.Errorf("PortPlaintextHTTP = %d, want 80", PortPlaintextHTTP)
	}
	if PortEncryptedHTTPS != 443 {
		t.Errorf("PortEncryptedHTTPS = %d, want 443", PortEncryptedHTTPS)
	}
}

func TestRule_Validate(t *testing.T) {
	valid := Rule{
		Direction: DirectionInbound,
		Protocol:  ProtocolTCP,
		Ports:     Port(443),
		Peer:      CIDRPeer(netip.MustParsePrefix("10.0.0.0/16")),
	}

	tests := []struct {
		name    string
		mutate  func(r Rule) Rule
		wantErr bool
	}{
		{name: "valid cidr rule", mutate: func(r Rule) Rule { return r }},
		{name: "valid group rule", mutate: func(r Rule) Rule { r.Peer = GroupPeer("app"); return r }},
		{name: "bad direction", mutate: func(r Rule) Rule { r.Direction = "sideways"; return r }, wantErr: true},
		{name: "bad protocol", mutate: func(r Rule) Rule { r.Protocol = "carrier-pigeon"; return r }, wantErr: true},
		{name: "inverted ports", mutate: func(r Rule) Rule { r.Ports = PortRange{From: 443, To: 80}; return r }, wantErr: true},
		{name: "empty group peer", mutate: func(r Rule) Rule { r.Peer = GroupPeer(""); return r }, wantErr: true},
		{name: "no peer kind", mutate: func(r Rule) Rule { r.Peer = Peer{}; return r }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(valid).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTierAndDirectionEnums(t *testing.T) {
	if !TierPublic.IsValid() || !TierPrivate.IsValid() || Tier("dmz").IsValid() {
		t.Error("Tier.IsValid() accepts only public and private")
	}
	if !DirectionInbound.IsValid() || !DirectionOutbound.IsValid() || Direction("both").IsValid() {
		t.Error("Direction.IsValid() accepts only inbound and outbound")
	}
	if !ProtocolTCP.IsValid() || !ProtocolUDP.IsValid() || !ProtocolICMP.IsValid() || Protocol("gre").IsValid() {
		t.Error("Protocol.IsValid() accepts only tcp, udp and icmp")
	}
}

func TestRouteDomain_DefaultRoute(t *testing.T) {
	rd := RouteDomain{
		Name:    "public",
		Network: "prod",
		Tier:    TierPublic,
		Routes: []Route{
			{Destination: netip.MustParsePrefix("10.0.0.0/16")},
			{Destination: netip.MustParsePrefix("0.0.0.0/0"), Gateway: "igw"},
		},
	}
	r, ok := rd.DefaultRoute()
	if !ok {
		t.Fatal("DefaultRoute() ok = false, want true")
	}
	if r.Gateway != "igw" {
		t.Errorf("DefaultRoute() gateway = %v, want igw", r.Gateway)
	}

	private := RouteDomain{Name: "private", Network: "prod", Tier: TierPrivate}
	if _, ok := private.DefaultRoute(); ok {
		t.Error("DefaultRoute() on routeless domain ok = true, want false")
	}
}
