package logic

// DutyMax is the duty value for a permanently high output.
const DutyMax = 255

// DutyFromMillivolts returns round(255 * targetMV / supplyMV), rounding by
// adding half the denominator before the integer division. Targets outside
// 0..supplyMV clamp to 0 or 255.
func DutyFromMillivolts(targetMV, supplyMV int) uint8 {
	if supplyMV <= 0 || targetMV <= 0 {
		return 0
	}
	if targetMV >= supplyMV {
		return DutyMax
	}
	return uint8((DutyMax*targetMV + supplyMV/2) / supplyMV)
}

// LinearDuty clamps width into [min, max] and rescales it onto 0..255 with
// the same half-denominator rounding.
func LinearDuty(width int16, min, max int) uint8 {
	if max <= min {
		return 0
	}
	w := int(width)
	if w <= min {
		return 0
	}
	if w >= max {
		return DutyMax
	}
	span := max - min
	return uint8((DutyMax*(w-min) + span/2) / span)
}
