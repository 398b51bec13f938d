package engine

// RejectReason explains why a fix was dropped. Empty means the fix is valid.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectLatRange         RejectReason = "lat_range"
	RejectLngRange         RejectReason = "lng_range"
	RejectNullIsland       RejectReason = "null_island"
	RejectAccuracyNegative RejectReason = "accuracy_negative"
	RejectAccuracyCeiling  RejectReason = "accuracy_ceiling"
	RejectSpeedCeiling     RejectReason = "speed_ceiling"
)

// ValidatePoint screens one candidate fix before it reaches distance or
// timeline computation. Validation has no side effects; the caller drops
// rejected fixes and counts the rejection.
//
// A fix with no reported accuracy is accepted. Whether that default-accept
// is the right policy is an open question with the operators; it matches
// the current production behavior.
func ValidatePoint(cfg EngineConfig, p LocationPoint) RejectReason {
	cfg = cfg.Sanitize()

	if p.Latitude < -90 || p.Latitude > 90 {
		return RejectLatRange
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return RejectLngRange
	}
	if p.Latitude == 0 && p.Longitude == 0 {
		return RejectNullIsland
	}
	if p.AccuracyM != nil {
		if *p.AccuracyM < 0 {
			return RejectAccuracyNegative
		}
		if *p.AccuracyM > cfg.MaxAccuracyM {
			return RejectAccuracyCeiling
		}
	}
	if p.SpeedMps != nil && *p.SpeedMps*3.6 > cfg.TeleportSpeedKmh {
		return RejectSpeedCeiling
	}
	return RejectNone
}
