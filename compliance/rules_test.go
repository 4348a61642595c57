package compliance

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lainnemunkombwe-cyber/compliant-cloud-perimeter/graph"
)

func TestNewCustomRule(t *testing.T) {
	tests := []struct {
		name       string
		ruleName   string
		expression string
		severity   Severity
		wantErr    bool
	}{
		{
			name:       "valid rule",
			ruleName:   "no-default-networks",
			expression: `kind == "network" && name == "default"`,
			severity:   SeverityMedium,
		},
		{
			name:       "missing name",
			expression: `true`,
			severity:   SeverityLow,
			wantErr:    true,
		},
		{
			name:       "bad severity",
			ruleName:   "r",
			expression: `true`,
			severity:   "catastrophic",
			wantErr:    true,
		},
		{
			name:       "syntax error",
			ruleName:   "r",
			expression: `kind ==`,
			severity:   SeverityLow,
			wantErr:    true,
		},
		{
			name:       "non-boolean expression",
			ruleName:   "r",
			expression: `name`,
			severity:   SeverityLow,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCustomRule(tt.ruleName, tt.expression, tt.severity, "msg")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheck_CustomRule(t *testing.T) {
	rule, err := NewCustomRule(
		"network-monitoring-enabled",
		`kind == "network" && !properties.monitoring_enabled`,
		SeverityMedium,
		"network declares no continuous-monitoring recorder",
	)
	require.NoError(t, err)

	g := graph.New()
	require.NoError(t, g.AddNetwork(graph.Network{Name: "unwatched", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	require.NoError(t, g.AddNetwork(graph.Network{Name: "watched", CIDR: netip.MustParsePrefix("10.1.0.0/16"), MonitoringEnabled: true}))

	report := NewChecker(WithRule(rule)).Check(g)
	violations := report.ByInvariant("network-monitoring-enabled")
	require.Len(t, violations, 1)
	assert.Equal(t, []string{"unwatched"}, violations[0].EntityIDs)
	assert.Equal(t, SeverityMedium, violations[0].Severity)
}

func TestCheck_CustomRuleOverSubnets(t *testing.T) {
	rule, err := NewCustomRule(
		"zone-naming",
		`kind == "subnet" && !properties.availability_zone.startsWith("us-")`,
		SeverityInfo,
		"subnet placed outside approved regions",
	)
	require.NoError(t, err)

	g := graph.New()
	require.NoError(t, g.AddNetwork(graph.Network{Name: "prod", CIDR: netip.MustParsePrefix("10.0.0.0/16")}))
	require.NoError(t, g.AddRouteDomain(graph.RouteDomain{Name: "rd", Network: "prod", Tier: graph.TierPrivate}))
	require.NoError(t, g.AddSubnet(graph.Subnet{
		Name: "ok", Network: "prod", CIDR: netip.MustParsePrefix("10.0.1.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "us-east-1a", RouteDomain: "rd",
	}))
	require.NoError(t, g.AddSubnet(graph.Subnet{
		Name: "offshore", Network: "prod", CIDR: netip.MustParsePrefix("10.0.2.0/24"),
		Tier: graph.TierPrivate, AvailabilityZone: "eu-west-1a", RouteDomain: "rd",
	}))

	report := NewChecker(WithRule(rule)).Check(g)
	violations := report.ByInvariant("zone-naming")
	require.Len(t, violations, 1)
	assert.Equal(t, []string{"offshore"}, violations[0].EntityIDs)
}
