package analysis

import (
	"gonum.org/v1/gonum/stat"

	"sales-dashboard/internal/models"
)

type SeriesPoint struct {
	Period string
	Value  float64
}

// FitTrend fits value = intercept + slope*index by ordinary least squares,
// with index 0..n-1 following the order of points.
func FitTrend(points []SeriesPoint) (models.TrendFit, error) {
	if len(points) <= 1 {
		return models.TrendFit{}, insufficient("trend", "need at least two points")
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(i)
		ys[i] = p.Value
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	fit := models.TrendFit{
		Slope:     slope,
		Intercept: intercept,
		Points:    make([]models.TrendPoint, len(points)),
	}
	for i, p := range points {
		fit.Points[i] = models.TrendPoint{
			Index:  i,
			Period: p.Period,
			Actual: p.Value,
			Fitted: intercept + slope*float64(i),
		}
	}
	return fit, nil
}
