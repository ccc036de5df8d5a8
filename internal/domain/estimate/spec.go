// Package estimate provides the core domain model for port-call disbursement
// estimation: the vessel specification submitted by callers, the normalized
// feature representation used for similarity retrieval, historical
// disbursement records, and the cost aggregation algorithm that synthesizes a
// calibrated estimate from weighted neighbor matches.
package estimate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/harborintel/portcost/pkg/errors"
)

// EstimateMode selects the shape of the synthesized result.
type EstimateMode string

const (
	// ModeFDA produces a full itemized breakdown mirroring a final
	// disbursement account.
	ModeFDA EstimateMode = "fda"

	// ModeQuotation produces a lighter pre-call estimate: the largest line
	// items are kept and the remainder is rolled into a single
	// "other_charges" entry.
	ModeQuotation EstimateMode = "quotation"
)

// ParseMode validates a mode string from an API or CLI surface.
func ParseMode(s string) (EstimateMode, error) {
	switch EstimateMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFDA:
		return ModeFDA, nil
	case ModeQuotation:
		return ModeQuotation, nil
	default:
		return "", errors.InvalidSpec("unknown estimate mode").
			WithDetail(fmt.Sprintf("mode=%s", s))
	}
}

// VesselSpec is the immutable per-request input: the vessel and voyage
// attributes that drive similarity retrieval.  Construct one per request and
// discard it afterwards.
type VesselSpec struct {
	Port       string   `json:"port"`
	VesselName string   `json:"vessel_name,omitempty"`
	Voyage     string   `json:"voyage,omitempty"`
	GRT        float64  `json:"grt"`
	LOA        float64  `json:"loa"`
	Draft      *float64 `json:"draft,omitempty"`
	IsShifting bool     `json:"is_shifting"`
	VesselType string   `json:"vessel_type,omitempty"`
}

// Validate checks the structural constraints on a specification.  A failure
// carries ErrCodeInvalidSpec and must not be retried.
func (s VesselSpec) Validate() error {
	if NormalizePort(s.Port) == "" {
		return errors.InvalidSpec("port is required")
	}
	if s.GRT <= 0 {
		return errors.InvalidSpec("grt must be positive").
			WithDetail(fmt.Sprintf("grt=%v", s.GRT))
	}
	if s.LOA <= 0 {
		return errors.InvalidSpec("loa must be positive").
			WithDetail(fmt.Sprintf("loa=%v", s.LOA))
	}
	if s.Draft != nil && *s.Draft <= 0 {
		return errors.InvalidSpec("draft, when present, must be positive").
			WithDetail(fmt.Sprintf("draft=%v", *s.Draft))
	}
	return nil
}

// NormalizedPort returns the canonical form of the spec's port name.
func (s VesselSpec) NormalizedPort() string {
	return NormalizePort(s.Port)
}

// NormalizePort canonicalizes a port name for categorical comparison:
// Unicode lower-casing, trimming, and folding internal whitespace runs to a
// single space.  "  Map  Ta Phut " and "map ta phut" compare equal.
func NormalizePort(port string) string {
	fields := strings.Fields(strings.ToLower(port))
	return strings.Join(fields, " ")
}

// EmbeddingText renders the specification as a deterministic textual
// description for the embedding provider.  Field order and formatting are
// fixed: the same spec always produces the same text.
func (s VesselSpec) EmbeddingText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "port call at %s", s.NormalizedPort())
	if s.VesselType != "" {
		fmt.Fprintf(&b, "; vessel type %s", strings.ToLower(s.VesselType))
	}
	fmt.Fprintf(&b, "; grt %.0f; loa %.1f m", s.GRT, s.LOA)
	if s.Draft != nil {
		fmt.Fprintf(&b, "; draft %.1f m", *s.Draft)
	}
	if s.IsShifting {
		b.WriteString("; shifting between berths")
	}
	return b.String()
}

// Fingerprint derives a stable cache key from the normalized spec, the
// requested mode, and the model version identifiers in effect.  Two requests
// share a fingerprint only when every input that can change the numeric
// result is identical.
func (s VesselSpec) Fingerprint(mode EstimateMode, modelVersions ...string) string {
	h := sha256.New()
	fmt.Fprintf(h, "port=%s\n", s.NormalizedPort())
	fmt.Fprintf(h, "grt=%.4f\n", s.GRT)
	fmt.Fprintf(h, "loa=%.4f\n", s.LOA)
	if s.Draft != nil {
		fmt.Fprintf(h, "draft=%.4f\n", *s.Draft)
	} else {
		fmt.Fprintf(h, "draft=absent\n")
	}
	fmt.Fprintf(h, "shifting=%t\n", s.IsShifting)
	fmt.Fprintf(h, "type=%s\n", strings.ToLower(strings.TrimSpace(s.VesselType)))
	fmt.Fprintf(h, "mode=%s\n", mode)
	for _, v := range modelVersions {
		fmt.Fprintf(h, "model=%s\n", v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Summary condenses the spec for inclusion on a synthesized estimate.
func (s VesselSpec) Summary() VesselSummary {
	return VesselSummary{
		Name:       s.VesselName,
		Type:       s.VesselType,
		GRT:        s.GRT,
		LOA:        s.LOA,
		Draft:      s.Draft,
		IsShifting: s.IsShifting,
	}
}
