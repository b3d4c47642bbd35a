// Package domain models wildfire size prediction inputs: weather stations,
// their daily climatology, the nearest-station weather lookup, and the
// feature vector handed to a pre-trained size model.
//
// # Data Source
//
// Station coordinates and climatology come from long-run daily averages of
// NOAA GHCN-Daily stations. The dataset is loaded wholesale at startup, either
// from flat files or from Postgres, and never mutated afterwards.
//
// # Climatology Conventions
//
//	Mean temperature:   degrees Fahrenheit
//	Diurnal range:      degrees Fahrenheit (daily max minus daily min)
//	Precipitation:      millimetres
//	Snowfall:           millimetres
//
// Every station carries one entry for each day-of-year 1 through 365. Day 366
// (December 31st of a leap year) is not part of the climatology and is
// rejected like any other out-of-range day.
//
// # Nearest Station
//
// Distance is plain Euclidean distance in degree space:
//
//	sqrt((station.lat - lat)^2 + (station.lon - lon)^2)
//
// This is not a geodesic distance; one degree of longitude shrinks with
// latitude. The coverage threshold (1 degree by default) was chosen against
// this metric, so it is kept as-is. The catalog is scanned linearly and the
// first minimum in catalog order wins.
//
// # Feature Order
//
// The model was trained on
//
//	[lat, lon, day_of_year, cause_code, mean_temp, diurnal_range, precipitation, snowfall]
//
// and [FeatureVector] is a fixed-size array in exactly that order.
//
// # Size Classes
//
// Classifier models emit three buckets (see [SizeClass]). Regressor models
// emit acres, which are bucketed with the same 0.22 and 2 acre thresholds.
package domain
