package indicator

import (
	"sort"

	"github.com/nitinkhare/swingdss/internal/bar"
)

// VolumeProfile is the derived landmark set for one window of bars: the
// point-of-control, the value-area bounds, and any volume "shelves".
type VolumeProfile struct {
	POC    float64 // price bin (midpoint) with maximum volume
	VAH    float64 // value-area high
	VAL    float64 // value-area low
	Shelves []float64 // bin midpoints with volume > 1.5x the mean bin volume
}

type volumeBin struct {
	low, high float64
	volume    float64
}

func (b volumeBin) mid() float64 { return (b.low + b.high) / 2 }

// ComputeVolumeProfile partitions [min(low), max(high)] over the window
// into `bins` equal-width buckets and distributes each bar's volume
// proportionally to the overlap of its [low, high] range with each bin.
//
// POC is the bin with the most volume. VAH/VAL are the bounds of the
// smallest contiguous envelope of bins — built by expanding outward from
// the POC bin toward whichever neighbor carries more volume — that covers
// at least 70% of total volume. Shelves are bins whose volume exceeds 1.5x
// the mean bin volume.
func ComputeVolumeProfile(bars []bar.Bar, bins int) VolumeProfile {
	if len(bars) == 0 || bins <= 0 {
		return VolumeProfile{}
	}

	lo, hi := bars[0].Low, bars[0].High
	for _, b := range bars[1:] {
		if b.Low < lo {
			lo = b.Low
		}
		if b.High > hi {
			hi = b.High
		}
	}
	if hi <= lo {
		return VolumeProfile{POC: lo}
	}

	width := (hi - lo) / float64(bins)
	buckets := make([]volumeBin, bins)
	for i := range buckets {
		buckets[i] = volumeBin{low: lo + float64(i)*width, high: lo + float64(i+1)*width}
	}

	for _, b := range bars {
		if b.High <= b.Low {
			continue
		}
		barRange := b.High - b.Low
		for i := range buckets {
			overlapLow := max64(b.Low, buckets[i].low)
			overlapHigh := min64(b.High, buckets[i].high)
			if overlapHigh <= overlapLow {
				continue
			}
			frac := (overlapHigh - overlapLow) / barRange
			buckets[i].volume += frac * float64(b.Volume)
		}
	}

	pocIdx := 0
	var total float64
	for i, bk := range buckets {
		total += bk.volume
		if bk.volume > buckets[pocIdx].volume {
			pocIdx = i
		}
	}

	profile := VolumeProfile{POC: buckets[pocIdx].mid()}
	if total == 0 {
		profile.VAH, profile.VAL = buckets[pocIdx].high, buckets[pocIdx].low
		return profile
	}

	lowIdx, highIdx := pocIdx, pocIdx
	covered := buckets[pocIdx].volume
	target := 0.70 * total
	for covered < target && (lowIdx > 0 || highIdx < len(buckets)-1) {
		var belowVol, aboveVol float64
		if lowIdx > 0 {
			belowVol = buckets[lowIdx-1].volume
		}
		if highIdx < len(buckets)-1 {
			aboveVol = buckets[highIdx+1].volume
		}
		if lowIdx > 0 && (highIdx == len(buckets)-1 || belowVol >= aboveVol) {
			lowIdx--
			covered += buckets[lowIdx].volume
		} else if highIdx < len(buckets)-1 {
			highIdx++
			covered += buckets[highIdx].volume
		} else {
			break
		}
	}
	profile.VAL = buckets[lowIdx].low
	profile.VAH = buckets[highIdx].high

	mean := total / float64(len(buckets))
	for _, bk := range buckets {
		if bk.volume > 1.5*mean {
			profile.Shelves = append(profile.Shelves, bk.mid())
		}
	}
	sort.Float64s(profile.Shelves)

	return profile
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
