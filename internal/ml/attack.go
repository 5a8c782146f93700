package ml

// Attack-type attribution: an ordered rule table evaluated only when a
// detection scores above the suspicious threshold. Each rule is a predicate
// over group-aggregate contributions and selected raw feature values; the
// first matching rule wins. Rules live in a table rather than inline
// conditionals so each is independently unit-testable.

// attackContext is the evidence a rule predicate sees.
type attackContext struct {
	// groups holds the summed per-feature contributions within each of the
	// six named index ranges.
	groups map[FeatureGroup]float64
	// raw is the unnormalized input vector.
	raw FeatureVector
}

// attackRule pairs a label with its predicate.
type attackRule struct {
	label string
	match func(attackContext) bool
}

// attackRules is evaluated in order; ordering is significant because later
// rules assume earlier, more specific signatures did not match.
var attackRules = []attackRule{
	{
		label: "DDoS",
		match: func(c attackContext) bool {
			return c.groups[GroupFlow] >= 0.30 && c.raw[idxPacketRate] > 5000
		},
	},
	{
		label: "Port Scan",
		match: func(c attackContext) bool {
			return c.groups[GroupConnection] >= 0.25 && c.raw[idxUniqueDstPorts] > 100
		},
	},
	{
		label: "Data Exfiltration",
		match: func(c attackContext) bool {
			return c.groups[GroupPayload] >= 0.25 && c.raw[idxOutboundBytes] > 1_000_000
		},
	},
	{
		label: "C2 Beaconing",
		match: func(c attackContext) bool {
			return c.groups[GroupTemporal] >= 0.20 && c.raw[idxPeriodicityScore] > 0.8
		},
	},
	{
		label: "Brute Force",
		match: func(c attackContext) bool {
			return c.groups[GroupBehavioral] >= 0.15 && c.raw[idxFailedConnRatio] > 0.5
		},
	},
	{
		label: "DNS Tunneling",
		match: func(c attackContext) bool {
			return c.raw[idxDNSQueryRate] > 50 && c.raw[idxDNSResponseRatio] < 0.6
		},
	},
	{
		label: "Botnet Activity",
		match: func(c attackContext) bool {
			return c.groups[GroupTemporal] >= 0.12 && c.raw[idxBurstiness] > 0.7
		},
	},
}

// groupContributions sums per-feature contributions within each group range.
func groupContributions(contributions map[string]float64) map[FeatureGroup]float64 {
	groups := make(map[FeatureGroup]float64, len(GroupRanges))
	for _, r := range GroupRanges {
		var sum float64
		for i := r.Start; i <= r.End; i++ {
			sum += contributions[FeatureNames[i]]
		}
		groups[r.Group] = sum
	}
	return groups
}

// attributeAttack walks the rule table and returns the first matching
// label. When nothing matches, the label falls back to a generic name
// derived from the single largest contributing group.
func attributeAttack(contributions map[string]float64, raw FeatureVector) string {
	ctx := attackContext{groups: groupContributions(contributions), raw: raw}

	for _, rule := range attackRules {
		if rule.match(ctx) {
			return rule.label
		}
	}

	var topGroup FeatureGroup
	var topSum float64
	for _, r := range GroupRanges {
		if ctx.groups[r.Group] > topSum {
			topSum = ctx.groups[r.Group]
			topGroup = r.Group
		}
	}

	switch topGroup {
	case GroupPayload:
		return "Suspicious Payload"
	case GroupBehavioral:
		return "Anomalous Behavior"
	default:
		return "Unknown Anomaly"
	}
}
