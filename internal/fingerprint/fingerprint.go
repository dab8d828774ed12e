// Package fingerprint classifies hardware addresses and broadcast network
// names against reference drone-manufacturer tables. The lookup is pure and
// stateless: the same inputs always produce the same result.
package fingerprint

import (
	"strings"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

// ouiPrefixes maps the first three octets of a hardware address to the
// manufacturer that registered the block.
var ouiPrefixes = map[string]string{
	"60:60:1F": "DJI",
	"34:D2:62": "DJI",
	"48:1C:B9": "DJI",
	"E4:7A:2C": "DJI",
	"04:A8:5A": "DJI",
	"90:03:B7": "Parrot",
	"00:12:1C": "Parrot",
	"00:26:7E": "Parrot",
	"A0:14:3D": "Parrot",
	"38:1D:14": "Skydio",
	"EC:3D:FD": "Autel Robotics",
	"E0:B6:F5": "Yuneec",
	"D8:9A:34": "Hubsan",
	"6C:DF:FB": "PowerVision",
	"8C:58:77": "EHang",
}

// ssidPrefixes maps broadcast-name prefixes (compared upper-cased) to a
// manufacturer. Drone access points almost always embed the product line
// in the default SSID.
var ssidPrefixes = map[string]string{
	"DJI-":       "DJI",
	"DJI_":       "DJI",
	"MAVIC":      "DJI",
	"PHANTOM":    "DJI",
	"SPARK-":     "DJI",
	"TELLO-":     "DJI",
	"INSPIRE":    "DJI",
	"ANAFI":      "Parrot",
	"BEBOP":      "Parrot",
	"PARROT":     "Parrot",
	"SKYDIO":     "Skydio",
	"AUTEL":      "Autel Robotics",
	"YUNEEC":     "Yuneec",
	"BREEZE":     "Yuneec",
	"HUBSAN":     "Hubsan",
	"POWEREGG":   "PowerVision",
	"EHANG":      "EHang",
	"GHOSTDRONE": "EHang",
}

// Match is a successful manufacturer classification.
type Match struct {
	Manufacturer string
	Confidence   types.Confidence
}

// ByMAC looks up the address's vendor prefix. Returns ("", false) when the
// prefix is not in the reference table.
func ByMAC(mac string) (string, bool) {
	mac = types.NormalizeMAC(mac)
	if len(mac) < 8 {
		return "", false
	}
	mfr, ok := ouiPrefixes[mac[:8]]
	return mfr, ok
}

// BySSID matches a broadcast name against the name-pattern table. Returns
// ("", false) when no pattern applies.
func BySSID(ssid string) (string, bool) {
	upper := strings.ToUpper(strings.TrimSpace(ssid))
	if upper == "" {
		return "", false
	}
	for prefix, mfr := range ssidPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return mfr, true
		}
	}
	return "", false
}

// Identify classifies an address and/or broadcast name. Both matching
// yields high confidence; either one alone yields medium. When both match,
// the address-derived manufacturer wins since OUI registrations are
// authoritative. A nil result means no match and the record should be
// dropped upstream.
func Identify(mac, ssid string) *Match {
	byMAC, macOK := ByMAC(mac)
	bySSID, ssidOK := BySSID(ssid)

	switch {
	case macOK && ssidOK:
		return &Match{Manufacturer: byMAC, Confidence: types.ConfidenceHigh}
	case macOK:
		return &Match{Manufacturer: byMAC, Confidence: types.ConfidenceMedium}
	case ssidOK:
		return &Match{Manufacturer: bySSID, Confidence: types.ConfidenceMedium}
	default:
		return nil
	}
}
