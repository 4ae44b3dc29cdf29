// Package domain models the conversational weather assistant: intents,
// extracted entities, time-reference tokens, forecast periods and alerts
// from the National Weather Service (NWS), and per-session turn snapshots.
//
// # Data Source
//
// Forecasts and alerts come from the NWS public API at https://api.weather.gov.
// A forecast is a two-step lookup: the points endpoint
// (/points/{lat},{lon}) returns metadata whose properties.forecast field is
// the URL of a period-based forecast document for the covering grid cell.
//
// # NWS Forecast Periods
//
// The forecast document holds roughly fourteen 12-hour periods, ordered in
// time. Period names are human labels, not structured values:
//
//	"Today", "This Afternoon", "Tonight", "Overnight",
//	"Monday", "Monday Night", "Washington's Birthday", ...
//
// The first period depends on the issue time: a morning issue starts with
// "Today", an afternoon issue with "This Afternoon", an evening issue with
// "Tonight". Daytime periods run 06:00–18:00 local time, night periods
// 18:00–06:00. Temperatures are integers in temperatureUnit ("F" or "C");
// daytime periods carry the high, night periods the low.
//
// Selection of a period for a user's time reference works on lowercased
// names only (see weather.SelectPeriod), because NWS does not expose a
// structured "which day" field.
//
// # Time-Reference Tokens
//
// Relative time phrases are normalized to a closed set of tokens
// (today, today_morning, today_afternoon, today_evening, tonight, tomorrow,
// tomorrow_morning, tomorrow_night, weekend, monday..sunday). The empty token
// means "unspecified".
//
// # Alerts
//
// Active alerts come from /alerts/active?point={lat},{lon} as a GeoJSON
// FeatureCollection. Only properties.event ("Flood Warning") and
// properties.headline ("Flood Warning issued April 26 at 3:10PM CDT ...") are
// surfaced to the user.
//
// # Locations
//
// Canonical locations are "City, ST" (USPS state code) or a 5-digit ZIP.
// Geocoding yields WGS-84 coordinates; a miss is a normal outcome, not an
// error.
package domain
