package core

import "math"

// EarthRadiusKm is the mean Earth radius used for all placement and
// link geometry (kilometres).
const EarthRadiusKm = 6371.0

// SpeedOfLightKmPerSec is used for propagation-delay estimates on paths.
const SpeedOfLightKmPerSec = 299792.458

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) isFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// ToECEF converts a geodetic latitude/longitude (degrees) and altitude
// above the mean sphere (km) into a Cartesian position.
//
// The Earth is modelled as a sphere of EarthRadiusKm. Inputs are not
// range checked: out-of-range angles simply wrap through the trig
// functions.
func ToECEF(latitudeDeg, longitudeDeg, altitudeKm float64) Vec3 {
	r := EarthRadiusKm + altitudeKm
	lat := degToRad(latitudeDeg)
	lon := degToRad(longitudeDeg)

	return Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// hasLineOfSight checks whether the straight segment between p1 and p2
// intersects the Earth sphere. If it does, the Earth blocks the line-of-sight
// and the function returns false.
//
// Endpoints sitting exactly on the surface (ground stations) are allowed;
// only segments dipping below the surface are rejected.
func hasLineOfSight(p1, p2 Vec3) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		return p1.Dot(p1) >= EarthRadiusKm*EarthRadiusKm
	}

	// t* minimises |p1 + t v|^2 over t ∈ ℝ.
	t := -p1.Dot(v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Vec3{
		X: p1.X + v.X*t,
		Y: p1.Y + v.Y*t,
		Z: p1.Z + v.Z*t,
	}

	// Small tolerance so surface endpoints do not count as occluded
	// because of rounding in ToECEF.
	const surfaceToleranceKm = 1e-6
	limit := EarthRadiusKm - surfaceToleranceKm
	return closest.Dot(closest) >= limit*limit
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}

	r := observer.Norm()
	if r == 0 {
		return 90
	}
	zenith := Vec3{
		X: observer.X / r,
		Y: observer.Y / r,
		Z: observer.Z / r,
	}

	cosGamma := v.Dot(zenith) / vNorm
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	gammaDeg := math.Acos(cosGamma) * 180.0 / math.Pi

	return 90.0 - gammaDeg
}
