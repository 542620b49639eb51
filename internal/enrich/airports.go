package enrich

import (
	"math"

	"adsb1090/internal/geo"
)

// Airport is one row of the embedded airport table.
type Airport struct {
	Icao        string
	Name        string
	Lat         float64
	Lon         float64
	ElevationFt int
}

// Embedded airport table. A trimmed worldwide set of towered fields;
// deployments wanting full coverage swap in the OurAirports dump at build
// time with the same row shape.
var airports = []Airport{
	{"KATL", "Atlanta Hartsfield-Jackson", 33.6367, -84.4281, 1026},
	{"KORD", "Chicago O'Hare", 41.9786, -87.9048, 672},
	{"KDFW", "Dallas-Fort Worth", 32.8968, -97.0380, 607},
	{"KDEN", "Denver International", 39.8617, -104.6731, 5431},
	{"KLAX", "Los Angeles International", 33.9425, -118.4081, 125},
	{"KJFK", "New York JFK", 40.6398, -73.7789, 13},
	{"KLGA", "New York LaGuardia", 40.7772, -73.8726, 21},
	{"KEWR", "Newark Liberty", 40.6925, -74.1687, 18},
	{"KSFO", "San Francisco International", 37.6190, -122.3749, 13},
	{"KSEA", "Seattle-Tacoma", 47.4490, -122.3093, 433},
	{"KLAS", "Las Vegas Harry Reid", 36.0840, -115.1537, 2181},
	{"KPHX", "Phoenix Sky Harbor", 33.4343, -112.0116, 1135},
	{"KIAH", "Houston George Bush", 29.9844, -95.3414, 97},
	{"KMIA", "Miami International", 25.7932, -80.2906, 8},
	{"KMCO", "Orlando International", 28.4294, -81.3089, 96},
	{"KBOS", "Boston Logan", 42.3643, -71.0052, 20},
	{"KMSP", "Minneapolis-St Paul", 44.8820, -93.2218, 841},
	{"KDTW", "Detroit Metro", 42.2124, -83.3534, 645},
	{"KPHL", "Philadelphia International", 39.8719, -75.2411, 36},
	{"KCLT", "Charlotte Douglas", 35.2140, -80.9431, 748},
	{"KAVL", "Asheville Regional", 35.4362, -82.5418, 2165},
	{"KTYS", "Knoxville McGhee Tyson", 35.8110, -83.9940, 981},
	{"KBWI", "Baltimore-Washington", 39.1754, -76.6683, 146},
	{"KDCA", "Washington Reagan", 38.8521, -77.0377, 15},
	{"KIAD", "Washington Dulles", 38.9445, -77.4558, 313},
	{"KSLC", "Salt Lake City", 40.7884, -111.9778, 4227},
	{"KSAN", "San Diego International", 32.7336, -117.1897, 17},
	{"KTPA", "Tampa International", 27.9755, -82.5332, 26},
	{"KPDX", "Portland International", 45.5887, -122.5975, 31},
	{"KSTL", "St Louis Lambert", 38.7487, -90.3700, 618},
	{"KMDW", "Chicago Midway", 41.7860, -87.7524, 620},
	{"KBNA", "Nashville International", 36.1245, -86.6782, 599},
	{"KAUS", "Austin-Bergstrom", 30.1945, -97.6699, 542},
	{"KRDU", "Raleigh-Durham", 35.8776, -78.7875, 435},
	{"KCLE", "Cleveland Hopkins", 41.4117, -81.8498, 791},
	{"KPIT", "Pittsburgh International", 40.4915, -80.2329, 1203},
	{"KCVG", "Cincinnati-Northern Kentucky", 39.0488, -84.6678, 896},
	{"KMEM", "Memphis International", 35.0424, -89.9767, 341},
	{"KSDF", "Louisville Muhammad Ali", 38.1744, -85.7360, 501},
	{"KOAK", "Oakland International", 37.7213, -122.2207, 9},
	{"KSJC", "San Jose Mineta", 37.3626, -121.9291, 62},
	{"KSMF", "Sacramento International", 38.6954, -121.5908, 27},
	{"KSNA", "Santa Ana John Wayne", 33.6757, -117.8682, 56},
	{"KMSY", "New Orleans Armstrong", 29.9934, -90.2581, 4},
	{"KMCI", "Kansas City International", 39.2976, -94.7139, 1026},
	{"KIND", "Indianapolis International", 39.7173, -86.2944, 797},
	{"KCMH", "Columbus John Glenn", 39.9980, -82.8919, 815},
	{"KJAX", "Jacksonville International", 30.4941, -81.6879, 30},
	{"KABQ", "Albuquerque Sunport", 35.0402, -106.6092, 5355},
	{"KTUS", "Tucson International", 32.1161, -110.9410, 2643},
	{"KELP", "El Paso International", 31.8072, -106.3776, 3962},
	{"KOKC", "Oklahoma City Will Rogers", 35.3931, -97.6007, 1295},
	{"KBHM", "Birmingham-Shuttlesworth", 33.5629, -86.7535, 650},
	{"KGSP", "Greenville-Spartanburg", 34.8957, -82.2189, 964},
	{"KSAV", "Savannah-Hilton Head", 32.1276, -81.2021, 50},
	{"KCHS", "Charleston International", 32.8986, -80.0405, 46},
	{"KRIC", "Richmond International", 37.5052, -77.3197, 167},
	{"KORF", "Norfolk International", 36.8946, -76.2012, 26},
	{"KBUF", "Buffalo Niagara", 42.9405, -78.7322, 728},
	{"KALB", "Albany International", 42.7483, -73.8017, 285},
	{"KBDL", "Hartford Bradley", 41.9389, -72.6832, 173},
	{"KPVD", "Providence T.F. Green", 41.7240, -71.4283, 55},
	{"KMKE", "Milwaukee Mitchell", 42.9472, -87.8966, 723},
	{"KOMA", "Omaha Eppley", 41.3032, -95.8941, 984},
	{"KDSM", "Des Moines International", 41.5340, -93.6631, 958},
	{"KBOI", "Boise Air Terminal", 43.5644, -116.2228, 2871},
	{"KGEG", "Spokane International", 47.6199, -117.5338, 2376},
	{"KANC", "Anchorage Ted Stevens", 61.1744, -149.9964, 152},
	{"PHNL", "Honolulu Daniel K. Inouye", 21.3187, -157.9225, 13},
	{"CYYZ", "Toronto Pearson", 43.6772, -79.6306, 569},
	{"CYVR", "Vancouver International", 49.1939, -123.1844, 14},
	{"CYUL", "Montreal Trudeau", 45.4706, -73.7408, 118},
	{"CYYC", "Calgary International", 51.1139, -114.0203, 3557},
	{"MMMX", "Mexico City Benito Juarez", 19.4363, -99.0721, 7316},
	{"EGLL", "London Heathrow", 51.4775, -0.4614, 83},
	{"EGKK", "London Gatwick", 51.1481, -0.1903, 202},
	{"EGSS", "London Stansted", 51.8850, 0.2350, 348},
	{"EGCC", "Manchester", 53.3537, -2.2750, 257},
	{"EHAM", "Amsterdam Schiphol", 52.3086, 4.7639, -11},
	{"LFPG", "Paris Charles de Gaulle", 49.0097, 2.5479, 392},
	{"LFPO", "Paris Orly", 48.7233, 2.3794, 291},
	{"EDDF", "Frankfurt am Main", 50.0333, 8.5706, 364},
	{"EDDM", "Munich Franz Josef Strauss", 48.3538, 11.7861, 1487},
	{"EDDB", "Berlin Brandenburg", 52.3514, 13.4939, 157},
	{"EBBR", "Brussels", 50.9014, 4.4844, 184},
	{"LSZH", "Zurich", 47.4647, 8.5492, 1416},
	{"LSGG", "Geneva", 46.2381, 6.1089, 1411},
	{"LOWW", "Vienna Schwechat", 48.1103, 16.5697, 600},
	{"LEMD", "Madrid Barajas", 40.4936, -3.5668, 1998},
	{"LEBL", "Barcelona El Prat", 41.2971, 2.0785, 12},
	{"LPPT", "Lisbon Humberto Delgado", 38.7813, -9.1359, 374},
	{"LIRF", "Rome Fiumicino", 41.8003, 12.2389, 13},
	{"LIMC", "Milan Malpensa", 45.6306, 8.7281, 768},
	{"LGAV", "Athens Eleftherios Venizelos", 37.9364, 23.9445, 308},
	{"EKCH", "Copenhagen Kastrup", 55.6179, 12.6560, 17},
	{"ESSA", "Stockholm Arlanda", 59.6519, 17.9186, 137},
	{"ENGM", "Oslo Gardermoen", 60.1939, 11.1004, 681},
	{"EFHK", "Helsinki Vantaa", 60.3172, 24.9633, 179},
	{"EIDW", "Dublin", 53.4213, -6.2701, 242},
	{"EPWA", "Warsaw Chopin", 52.1657, 20.9671, 362},
	{"LKPR", "Prague Vaclav Havel", 50.1008, 14.2600, 1247},
	{"LHBP", "Budapest Ferenc Liszt", 47.4369, 19.2556, 495},
	{"LTFM", "Istanbul", 41.2753, 28.7519, 325},
	{"OMDB", "Dubai International", 25.2528, 55.3644, 62},
	{"OTHH", "Doha Hamad", 25.2731, 51.6081, 13},
	{"OERK", "Riyadh King Khalid", 24.9576, 46.6988, 2049},
	{"LLBG", "Tel Aviv Ben Gurion", 32.0114, 34.8867, 135},
	{"VABB", "Mumbai Chhatrapati Shivaji", 19.0887, 72.8679, 39},
	{"VIDP", "Delhi Indira Gandhi", 28.5665, 77.1031, 777},
	{"VTBS", "Bangkok Suvarnabhumi", 13.6811, 100.7473, 5},
	{"WSSS", "Singapore Changi", 1.3502, 103.9944, 22},
	{"WMKK", "Kuala Lumpur International", 2.7456, 101.7099, 69},
	{"RJTT", "Tokyo Haneda", 35.5523, 139.7798, 35},
	{"RJAA", "Tokyo Narita", 35.7647, 140.3864, 141},
	{"RJBB", "Osaka Kansai", 34.4347, 135.2441, 26},
	{"RKSI", "Seoul Incheon", 37.4692, 126.4505, 23},
	{"ZBAA", "Beijing Capital", 40.0801, 116.5846, 116},
	{"ZSPD", "Shanghai Pudong", 31.1434, 121.8052, 13},
	{"ZGGG", "Guangzhou Baiyun", 23.3924, 113.2988, 50},
	{"VHHH", "Hong Kong International", 22.3089, 113.9146, 28},
	{"YSSY", "Sydney Kingsford Smith", -33.9461, 151.1772, 21},
	{"YMML", "Melbourne Tullamarine", -37.6733, 144.8433, 434},
	{"YBBN", "Brisbane", -27.3842, 153.1175, 13},
	{"NZAA", "Auckland", -37.0081, 174.7917, 23},
	{"SBGR", "Sao Paulo Guarulhos", -23.4356, -46.4731, 2461},
	{"SBGL", "Rio de Janeiro Galeao", -22.8100, -43.2506, 28},
	{"SAEZ", "Buenos Aires Ezeiza", -34.8222, -58.5358, 67},
	{"SCEL", "Santiago Arturo Merino Benitez", -33.3930, -70.7858, 1555},
	{"SKBO", "Bogota El Dorado", 4.7016, -74.1469, 8361},
	{"SPJC", "Lima Jorge Chavez", -12.0219, -77.1143, 113},
	{"FAOR", "Johannesburg O.R. Tambo", -26.1392, 28.2460, 5558},
	{"HECA", "Cairo International", 30.1219, 31.4056, 382},
	{"DNMM", "Lagos Murtala Muhammed", 6.5774, 3.3212, 135},
	{"HKJK", "Nairobi Jomo Kenyatta", -1.3192, 36.9278, 5330},
	{"GMMN", "Casablanca Mohammed V", 33.3675, -7.5900, 656},
}

// bucketDeg is the grid cell size of the airport index in degrees.
const bucketDeg = 10

// airportIndex buckets table rows into a lat/lon grid for O(1) average
// nearest-airport lookups.
var airportIndex map[[2]int][]int

func init() {
	airportIndex = make(map[[2]int][]int)
	for i, apt := range airports {
		key := bucketKey(apt.Lat, apt.Lon)
		airportIndex[key] = append(airportIndex[key], i)
	}
}

func bucketKey(lat, lon float64) [2]int {
	return [2]int{int(math.Floor(lat / bucketDeg)), int(math.Floor(lon / bucketDeg))}
}

// NearestAirport returns the closest table airport to a position and the
// great-circle distance to it in nautical miles. The 3x3 bucket
// neighbourhood is searched first; a full scan covers the sparse-cell
// case.
func NearestAirport(lat, lon float64) (Airport, float64, bool) {
	best := -1
	bestDist := math.MaxFloat64

	center := bucketKey(lat, lon)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			key := [2]int{center[0] + dy, center[1] + dx}
			for _, i := range airportIndex[key] {
				d := geo.HaversineNM(lat, lon, airports[i].Lat, airports[i].Lon)
				if d < bestDist {
					best = i
					bestDist = d
				}
			}
		}
	}

	if best < 0 {
		for i := range airports {
			d := geo.HaversineNM(lat, lon, airports[i].Lat, airports[i].Lon)
			if d < bestDist {
				best = i
				bestDist = d
			}
		}
	}

	if best < 0 {
		return Airport{}, 0, false
	}
	return airports[best], bestDist, true
}
