package db

import (
	"fmt"

	"campusmarket/models"

	sq "github.com/Masterminds/squirrel"
)

const earthRadiusKm = 6371.0

// distanceSQL is the haversine great-circle distance in km between the given columns and a point.
// Placeholders: lat, lat, lng.
func distanceSQL(latCol, lngCol string) string {
	return fmt.Sprintf(
		"(2 * %[3]g * asin(sqrt(power(sin(radians(%[1]s - ?) / 2), 2) + "+
			"cos(radians(?)) * cos(radians(%[1]s)) * power(sin(radians(%[2]s - ?) / 2), 2))))",
		latCol, lngCol, earthRadiusKm)
}

func withinRadius(latCol, lngCol string, p models.GeoPoint, radiusKm float64) sq.Sqlizer {
	return sq.And{
		sq.NotEq{latCol: nil},
		sq.NotEq{lngCol: nil},
		sq.Expr(distanceSQL(latCol, lngCol)+" <= ?", p.Lat, p.Lat, p.Lng, radiusKm),
	}
}
