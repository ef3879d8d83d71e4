package providers

// Ports opened on the server.
const (
	SSHPort       = 22
	MinecraftPort = 25565
)

// AnywhereCIDR matches every IPv4 source or destination.
const AnywhereCIDR = "0.0.0.0/0"

// FirewallRule is one security group rule. Protocol "-1" with ports 0-0
// means all protocols and ports.
type FirewallRule struct {
	Protocol   string
	FromPort   int
	ToPort     int
	CIDRBlocks []string
}

// IngressRules returns the inbound rules, in declaration order. SSH and the
// game port are open to anywhere; there is no source allow-list.
func IngressRules() []FirewallRule {
	return []FirewallRule{
		{Protocol: "tcp", FromPort: SSHPort, ToPort: SSHPort, CIDRBlocks: []string{AnywhereCIDR}},
		{Protocol: "tcp", FromPort: MinecraftPort, ToPort: MinecraftPort, CIDRBlocks: []string{AnywhereCIDR}},
	}
}

// EgressRules returns the single allow-all outbound rule.
func EgressRules() []FirewallRule {
	return []FirewallRule{
		{Protocol: "-1", FromPort: 0, ToPort: 0, CIDRBlocks: []string{AnywhereCIDR}},
	}
}

// Allows reports whether rules admit protocol traffic on port from cidr.
func Allows(rules []FirewallRule, protocol string, port int, cidr string) bool {
	for _, r := range rules {
		if r.Protocol != "-1" && r.Protocol != protocol {
			continue
		}
		if r.Protocol != "-1" && (port < r.FromPort || port > r.ToPort) {
			continue
		}
		for _, c := range r.CIDRBlocks {
			if c == cidr || c == AnywhereCIDR {
				return true
			}
		}
	}
	return false
}
