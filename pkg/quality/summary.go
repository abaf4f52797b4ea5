package quality

import (
	"fibertrack/internal/models"
	"fibertrack/internal/stats"
	"fibertrack/pkg/resample"
)

// areaWeights returns the mesh area element of every surviving cell and
// zero elsewhere.
func areaWeights(mesh *models.Mesh, final [][]bool) [][]float64 {
	w := make([][]float64, len(final))
	for r, row := range final {
		w[r] = make([]float64, len(row))
		for c, keep := range row {
			if keep {
				w[r][c] = stats.ZeroNaN(mesh.Area[r][c])
			}
		}
	}
	return w
}

// regionWeights gives each resampled representative the area of the
// region it stands for.
func regionWeights(rs *resample.Result, rows, cols int) [][]float64 {
	w := make([][]float64, rows)
	for r := range w {
		w[r] = make([]float64, cols)
	}
	for _, reg := range rs.Regions {
		if reg.Representative != nil {
			w[reg.Representative.Row][reg.Representative.Col] = reg.Area
		}
	}
	return w
}

// perTractSummary builds the mean-property record of every surviving cell.
// Cells outside final are left zero.
func perTractSummary(metrics [][]cellMetrics, weights [][]float64, final [][]bool) [][]TractSummary {
	total := 0.0
	for r, row := range final {
		for c, keep := range row {
			if keep {
				total += weights[r][c]
			}
		}
	}

	out := make([][]TractSummary, len(final))
	for r, row := range final {
		out[r] = make([]TractSummary, len(row))
		for c, keep := range row {
			if !keep {
				continue
			}
			m := metrics[r][c]
			s := TractSummary{
				Curvature:  stats.ZeroNaN(m.curvature),
				Angle:      stats.ZeroNaN(m.angle),
				Length:     stats.ZeroNaN(m.length),
				PointCount: m.points,
			}
			if total > 0 {
				s.AreaShare = weights[r][c] / total
			}
			out[r][c] = s
		}
	}
	return out
}

// muscleSummary is the area-weighted mean of the surviving tracts.
func muscleSummary(metrics [][]cellMetrics, weights [][]float64, final [][]bool) MuscleSummary {
	var curv, angle, length, w []float64
	for r, row := range final {
		for c, keep := range row {
			if !keep {
				continue
			}
			m := metrics[r][c]
			curv = append(curv, m.curvature)
			angle = append(angle, m.angle)
			length = append(length, m.length)
			w = append(w, weights[r][c])
		}
	}
	return MuscleSummary{
		Curvature: stats.WeightedMean(curv, w),
		Angle:     stats.WeightedMean(angle, w),
		Length:    stats.WeightedMean(length, w),
	}
}

// regionalMuscleSummary weights each contributing region's medians by the
// region's area.
func regionalMuscleSummary(rs *resample.Result) MuscleSummary {
	var curv, angle, length, w []float64
	for _, reg := range rs.Regions {
		if reg.Representative == nil {
			continue
		}
		curv = append(curv, reg.Median.Curvature)
		angle = append(angle, reg.Median.Angle)
		length = append(length, reg.Median.Length)
		w = append(w, reg.Area)
	}
	return MuscleSummary{
		Curvature: stats.WeightedMean(curv, w),
		Angle:     stats.WeightedMean(angle, w),
		Length:    stats.WeightedMean(length, w),
	}
}
