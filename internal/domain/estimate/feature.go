package estimate

import (
	"hash/fnv"
	"math"

	"github.com/harborintel/portcost/pkg/errors"
)

// FeatureModelVersion identifies the feature-normalization scheme.  It is
// part of every cache fingerprint: changing any scaling constant below
// requires bumping this version so that cached results and stored vectors
// from the previous scheme are never mixed with the new one.
const FeatureModelVersion = "fda-feat-v1"

// Scaling constants for fda-feat-v1.  Fixed and versioned: they are never
// derived per request, so identical specs normalize identically across
// deployments of the same version.
const (
	// grtLogCeil is log10 of the largest GRT the scale anticipates (500k).
	grtLogCeil = 5.69897

	// loaCeil caps length-overall min-max scaling, in meters.
	loaCeil = 400.0

	// draftCeil caps draft min-max scaling, in meters.
	draftCeil = 25.0

	// portHashSlots is the number of hashed one-hot slots for the port
	// categorical.  Collisions across ports are acceptable: the port field
	// separates the common case, and the aggregator re-checks port equality
	// on resolved records.
	portHashSlots = 8
)

// FeatureDim is the fixed length of every feature vector produced under
// FeatureModelVersion: five numeric components plus the hashed port slots.
const FeatureDim = 5 + portHashSlots

// FeatureVector is the fixed-dimension numeric representation of a
// VesselSpec, independent of any ML embedding.  Component layout for
// fda-feat-v1:
//
//	[0]      log-scaled GRT
//	[1]      min-max scaled LOA
//	[2]      draft presence flag (1 = present)
//	[3]      min-max scaled draft (0 when absent; [2] disambiguates)
//	[4]      shifting flag
//	[5..12]  hashed one-hot port slots
type FeatureVector []float64

// Normalize maps a specification to its feature vector.  It is a pure,
// deterministic function: identical specs produce bit-identical vectors.
// Invalid specs fail with ErrCodeInvalidSpec.
func Normalize(spec VesselSpec) (FeatureVector, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	v := make(FeatureVector, FeatureDim)
	v[0] = clamp01(math.Log10(spec.GRT) / grtLogCeil)
	v[1] = clamp01(spec.LOA / loaCeil)
	if spec.Draft != nil {
		v[2] = 1
		v[3] = clamp01(*spec.Draft / draftCeil)
	}
	if spec.IsShifting {
		v[4] = 1
	}
	v[5+portSlot(spec.NormalizedPort())] = 1
	return v, nil
}

// portSlot hashes a normalized port name into one of the categorical slots.
func portSlot(normalizedPort string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalizedPort))
	return int(h.Sum32() % portHashSlots)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

// DistanceTo returns the Euclidean distance between two feature vectors.
// Used by the in-process fallback scan when the embedding provider is
// unavailable.
func (v FeatureVector) DistanceTo(other FeatureVector) (float64, error) {
	if len(v) != len(other) {
		return 0, errors.Internal("feature vector dimension mismatch")
	}
	var sum float64
	for i := range v {
		d := v[i] - other[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Float32 converts the vector for consumers that operate on float32, such as
// the vector index client.
func (v FeatureVector) Float32() []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
