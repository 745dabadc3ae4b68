package psn

import "strings"

// Platform identifies a PlayStation hardware generation
type Platform string

const (
	PlatformPS5    Platform = "PS5"
	PlatformPS4    Platform = "PS4"
	PlatformPS3    Platform = "PS3"
	PlatformPSVita Platform = "PSVITA"
)

// platformPreference is the order used to choose a primary platform for a
// title that is available on several
var platformPreference = []Platform{PlatformPS5, PlatformPS4, PlatformPS3, PlatformPSVita}

// ParsePlatform normalizes a platform label. Returns "" for unknown labels.
func ParsePlatform(label string) Platform {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PS5":
		return PlatformPS5
	case "PS4":
		return PlatformPS4
	case "PS3":
		return PlatformPS3
	case "PSVITA", "PS_VITA", "PS VITA":
		return PlatformPSVita
	}
	return ""
}

// ParsePlatformSet splits a comma-separated platform field ("PS4,PSVITA")
// into the platforms it names, dropping anything unrecognized.
func ParsePlatformSet(field string) []Platform {
	var out []Platform
	for _, part := range strings.Split(field, ",") {
		if p := ParsePlatform(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PrimaryPlatform picks one platform by preference order PS5 > PS4 > PS3 >
// PSVITA, falling back to the first available. Returns "" for an empty set.
func PrimaryPlatform(platforms []Platform) Platform {
	for _, pref := range platformPreference {
		for _, p := range platforms {
			if p == pref {
				return pref
			}
		}
	}
	if len(platforms) > 0 {
		return platforms[0]
	}
	return ""
}

// TrophyCounts is the per-grade aggregate most API versions return
type TrophyCounts struct {
	Bronze   int `json:"bronze"`
	Silver   int `json:"silver"`
	Gold     int `json:"gold"`
	Platinum int `json:"platinum"`
}

// Total sums the four grades
func (c *TrophyCounts) Total() int {
	if c == nil {
		return 0
	}
	return c.Bronze + c.Silver + c.Gold + c.Platinum
}

// TitleSummary is one entry in the account's trophy title list.
//
// EarnedTrophies and DefinedTrophies are left untyped: depending on the API
// version they arrive as a per-grade object, a flat map, or a bare count.
// The adapter resolves them to integers.
type TitleSummary struct {
	TitleName         string `json:"trophyTitleName"`
	NPCommunicationID string `json:"npCommunicationId"`
	PlatformField     string `json:"trophyTitlePlatform"`
	Progress          int    `json:"progress"`
	EarnedTrophies    any    `json:"earnedTrophies"`
	DefinedTrophies   any    `json:"definedTrophies"`
	HiddenFlag        bool   `json:"hiddenFlag"`
	LastUpdated       string `json:"lastUpdatedDateTime"`
}

// Platforms returns the set of platforms the title is available on
func (t *TitleSummary) Platforms() []Platform {
	return ParsePlatformSet(t.PlatformField)
}

// TrophyGroup is one sub-collection of trophies within a title
// (commonly the base game plus one group per DLC pack)
type TrophyGroup struct {
	ID              string `json:"trophyGroupId"`
	Name            string `json:"trophyGroupName"`
	IconURL         string `json:"trophyGroupIconUrl"`
	DefinedTrophies any    `json:"definedTrophies"`
}

// GroupSummary is the response of the trophy-groups endpoint. Either the
// overall DefinedTrophies aggregate or the per-group list may be absent.
type GroupSummary struct {
	TrophyTitleName string        `json:"trophyTitleName"`
	DefinedTrophies any           `json:"definedTrophies"`
	TrophyGroups    []TrophyGroup `json:"trophyGroups"`
}

// ComparedUser carries per-user progress nested under a trophy item in
// some API versions
type ComparedUser struct {
	Earned     *bool  `json:"earned"`
	EarnedDate string `json:"earnedDateTime"`
}

// TrophyRarity wraps the rarity rate in yet another response variant
type TrophyRarity struct {
	Rate string `json:"rate"`
}

// Trophy is one trophy item from a group listing. Every field is optional;
// the adapter treats absence as "no data", never as an error.
type Trophy struct {
	ID           *int          `json:"trophyId"`
	Hidden       bool          `json:"trophyHidden"`
	Type         string        `json:"trophyType"`
	Name         string        `json:"trophyName"`
	Detail       string        `json:"trophyDetail"`
	IconURL      string        `json:"trophyIconUrl"`
	GroupID      string        `json:"trophyGroupId"`
	Earned       *bool         `json:"earned"`
	EarnedRate   string        `json:"trophyEarnedRate"`
	RareRate     string        `json:"trophyRareRate"`
	Rarity       *TrophyRarity `json:"trophyRarity"`
	ComparedUser *ComparedUser `json:"comparedUser"`
}

// AccountSummary is the overall per-platform earned/defined snapshot used
// by the doctor command
type AccountSummary struct {
	TrophyLevel int                     `json:"trophyLevel"`
	Progress    int                     `json:"progress"`
	EarnedTotal map[string]TrophyCounts `json:"earnedTrophies"`
}
