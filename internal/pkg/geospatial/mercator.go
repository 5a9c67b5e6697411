package geospatial

import "math"

// MaxMercatorLat is the latitude at which the Web Mercator square world ends.
const MaxMercatorLat = 85.05112877980659

// DefaultTileSize is the world size in pixels at zoom 0 for vector styles.
const DefaultTileSize = 512.0

// MercatorX projects a longitude onto the normalised world [0, 1], west to east.
func MercatorX(lng float64) float64 {
	return (lng + 180) / 360
}

// MercatorY projects a latitude onto the normalised world [0, 1], north to south.
// Latitudes beyond MaxMercatorLat are clamped.
func MercatorY(lat float64) float64 {
	lat = math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, lat))
	sin := math.Sin(toRad(lat))
	return 0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)
}

// LngFromX is the inverse of MercatorX.
func LngFromX(x float64) float64 {
	return x*360 - 180
}

// LatFromY is the inverse of MercatorY.
func LatFromY(y float64) float64 {
	n := math.Pi * (1 - 2*y)
	return math.Atan(math.Sinh(n)) * 180 / math.Pi
}

// WorldSize returns the width of the whole world in pixels at the given zoom.
func WorldSize(tileSize, zoom float64) float64 {
	return tileSize * math.Exp2(zoom)
}

// ZoomForSpan returns the zoom at which a normalised span covers the given pixel length.
// It returns NaN when either argument is not positive.
func ZoomForSpan(span, pixels, tileSize float64) float64 {
	if span <= 0 || pixels <= 0 || tileSize <= 0 {
		return math.NaN()
	}
	return math.Log2(pixels / (span * tileSize))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
