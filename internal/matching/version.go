package matching

import (
	"strings"

	"github.com/Nezreka/SoulSync-sub002/internal/models"
)

// versionKeywords maps detection keywords to the version type they imply.
// Checked in order; the first match wins, so more specific markers
// (instrumental, acoustic) are listed before the generic "radio edit".
var versionKeywords = []struct {
	keyword string
	version models.VersionType
}{
	{"instrumental", models.VersionInstrumental},
	{"acoustic", models.VersionAcoustic},
	{"a cappella", models.VersionAcoustic},
	{"unplugged", models.VersionAcoustic},
	{"live", models.VersionLive},
	{"remix", models.VersionRemix},
	{"rmx", models.VersionRemix},
	{"extended", models.VersionExtended},
	{"radio edit", models.VersionRadioEdit},
	{"radio version", models.VersionRadioEdit},
	{"radio mix", models.VersionRadioEdit},
}

// DetectVersion scans rawTitle for a known version marker and returns the
// first one found. Absent any marker, the track is assumed to be the
// original version.
func DetectVersion(rawTitle string) models.VersionType {
	lower := strings.ToLower(rawTitle)
	for _, vk := range versionKeywords {
		if strings.Contains(lower, vk.keyword) {
			return vk.version
		}
	}
	return models.VersionOriginal
}

// versionPenaltyTable holds the published disagreement penalties for the
// three version types with exhaustive rows. Any combination involving a
// type outside this table (live/acoustic/instrumental/radio_edit/unknown as
// the *expected* side) falls back to 0 when both sides agree and 0.30 when
// they disagree — there is no published asymmetric penalty for those rows.
var versionPenaltyTable = map[models.VersionType]map[models.VersionType]float64{
	models.VersionOriginal: {
		models.VersionOriginal:     0.00,
		models.VersionExtended:     0.05,
		models.VersionRemix:        0.35,
		models.VersionLive:         0.25,
		models.VersionAcoustic:     0.20,
		models.VersionInstrumental: 0.30,
	},
	models.VersionExtended: {
		models.VersionOriginal:     0.05,
		models.VersionExtended:     0.00,
		models.VersionRemix:        0.35,
		models.VersionLive:         0.30,
		models.VersionAcoustic:     0.25,
		models.VersionInstrumental: 0.30,
	},
	models.VersionRemix: {
		models.VersionOriginal:     0.35,
		models.VersionExtended:     0.35,
		models.VersionRemix:        0.00,
		models.VersionLive:         0.35,
		models.VersionAcoustic:     0.30,
		models.VersionInstrumental: 0.30,
	},
}

const fallbackDisagreementPenalty = 0.30

// VersionPenalty returns the confidence penalty to apply to a candidate
// whose detected version disagrees with the expected side's.
func VersionPenalty(expected, candidate models.VersionType) float64 {
	if expected == candidate {
		return 0
	}
	if row, ok := versionPenaltyTable[expected]; ok {
		if p, ok := row[candidate]; ok {
			return p
		}
	}
	return fallbackDisagreementPenalty
}
