// Package vienna holds static knowledge about the Viennese market.
package vienna

// districtNames maps the four-digit postal code to the district name.
var districtNames = map[string]string{
	"1010": "Innere Stadt",
	"1020": "Leopoldstadt",
	"1030": "Landstraße",
	"1040": "Wieden",
	"1050": "Margareten",
	"1060": "Mariahilf",
	"1070": "Neubau",
	"1080": "Josefstadt",
	"1090": "Alsergrund",
	"1100": "Favoriten",
	"1110": "Simmering",
	"1120": "Meidling",
	"1130": "Hietzing",
	"1140": "Penzing",
	"1150": "Rudolfsheim-Fünfhaus",
	"1160": "Ottakring",
	"1170": "Hernals",
	"1180": "Währing",
	"1190": "Döbling",
	"1200": "Brigittenau",
	"1210": "Floridsdorf",
	"1220": "Donaustadt",
	"1230": "Liesing",
}

// DistrictName resolves a postal code like "1040" to "Wieden". Unknown
// codes come back unchanged so callers can always print something.
func DistrictName(code string) string {
	if name, ok := districtNames[code]; ok {
		return name
	}
	return code
}

// KnownDistrict reports whether the code is one of the 23 districts.
func KnownDistrict(code string) bool {
	_, ok := districtNames[code]
	return ok
}
