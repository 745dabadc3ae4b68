package psn

import (
	"testing"
)

func TestSumTrophyCounts(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: 0,
		},
		{
			name:     "grade struct",
			input:    &TrophyCounts{Bronze: 10, Silver: 5, Gold: 2, Platinum: 1},
			expected: 18,
		},
		{
			name:     "grade struct by value",
			input:    TrophyCounts{Bronze: 3},
			expected: 3,
		},
		{
			name:     "nil grade struct pointer",
			input:    (*TrophyCounts)(nil),
			expected: 0,
		},
		{
			name:     "bare count",
			input:    42,
			expected: 42,
		},
		{
			name:     "bare JSON number",
			input:    float64(17),
			expected: 17,
		},
		{
			name:     "map with grade keys",
			input:    map[string]any{"bronze": float64(8), "silver": float64(4), "gold": float64(1), "platinum": float64(1)},
			expected: 14,
		},
		{
			name:     "map with grade keys ignores extras",
			input:    map[string]any{"bronze": float64(8), "totalPoints": float64(900)},
			expected: 8,
		},
		{
			name:     "map without grade keys sums integers",
			input:    map[string]any{"a": float64(2), "b": float64(3), "label": "x"},
			expected: 5,
		},
		{
			name:     "map ignores non-integral numbers",
			input:    map[string]any{"a": float64(2), "rate": 1.5},
			expected: 2,
		},
		{
			name:     "list of counts",
			input:    []any{float64(1), float64(2), "skip", float64(3)},
			expected: 6,
		},
		{
			name: "attribute bag struct",
			input: struct {
				Earned  int
				Defined int
				Label   string
			}{Earned: 4, Defined: 9, Label: "ignored"},
			expected: 13,
		},
		{
			name:     "unusable shape",
			input:    "not a count",
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SumTrophyCounts(tt.input)
			if result != tt.expected {
				t.Errorf("SumTrophyCounts(%v) = %d, expected %d", tt.input, result, tt.expected)
			}
		})
	}
}

func TestGroupNames(t *testing.T) {
	summary := &GroupSummary{
		TrophyGroups: []TrophyGroup{
			{ID: "default", Name: ""},
			{ID: "001", Name: "The Frozen Wilds"},
			{ID: "002", Name: ""},
			{ID: "", Name: "orphan"},
		},
	}

	names := GroupNames(summary, "Horizon Zero Dawn")

	if got := names["default"]; got != "Horizon Zero Dawn" {
		t.Errorf("base-game group: expected title fallback, got %q", got)
	}
	if got := names["001"]; got != "The Frozen Wilds" {
		t.Errorf("named group: expected remote name, got %q", got)
	}
	if got := names["002"]; got != "002" {
		t.Errorf("unnamed DLC group: expected id fallback, got %q", got)
	}
	if _, ok := names[""]; ok {
		t.Error("group without id should be dropped")
	}
}

func TestGroupNamesBaseGameVariants(t *testing.T) {
	for _, gid := range []string{"default", "all", "0", "000"} {
		t.Run(gid, func(t *testing.T) {
			summary := &GroupSummary{TrophyGroups: []TrophyGroup{{ID: gid}}}
			names := GroupNames(summary, "Bloodborne")
			if names[gid] != "Bloodborne" {
				t.Errorf("expected title fallback for %q, got %q", gid, names[gid])
			}
		})
	}
}

func TestGroupNamesEmptyTitle(t *testing.T) {
	summary := &GroupSummary{TrophyGroups: []TrophyGroup{{ID: "default"}}}
	names := GroupNames(summary, "")
	if names["default"] != "Base Game" {
		t.Errorf("expected 'Base Game' fallback, got %q", names["default"])
	}
}

func TestGroupNamesNilSummary(t *testing.T) {
	names := GroupNames(nil, "Title")
	if len(names) != 0 {
		t.Errorf("expected empty map for nil summary, got %v", names)
	}
}

func TestGroupDisplayName(t *testing.T) {
	names := map[string]string{"001": "DLC One"}

	tests := []struct {
		groupID  string
		expected string
	}{
		{"001", "DLC One"},
		{"default", "Elden Ring"},
		{"all", "Elden Ring"},
		{"003", "003"},
	}

	for _, tt := range tests {
		t.Run(tt.groupID, func(t *testing.T) {
			result := GroupDisplayName(names, tt.groupID, "Elden Ring")
			if result != tt.expected {
				t.Errorf("GroupDisplayName(%q) = %q, expected %q", tt.groupID, result, tt.expected)
			}
		})
	}
}

func TestEarnedFlag(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name     string
		trophy   Trophy
		expected bool
	}{
		{"top-level true", Trophy{Earned: &yes}, true},
		{"top-level false", Trophy{Earned: &no}, false},
		{"compared-user fallback", Trophy{ComparedUser: &ComparedUser{Earned: &yes}}, true},
		{"top-level wins over compared user", Trophy{Earned: &no, ComparedUser: &ComparedUser{Earned: &yes}}, false},
		{"absent everywhere", Trophy{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EarnedFlag(&tt.trophy); got != tt.expected {
				t.Errorf("EarnedFlag = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestRarityRate(t *testing.T) {
	tests := []struct {
		name     string
		trophy   Trophy
		expected string
	}{
		{"earned rate field", Trophy{EarnedRate: "12.3"}, "12.3"},
		{"rare rate field", Trophy{RareRate: "4.5"}, "4.5"},
		{"nested rarity", Trophy{Rarity: &TrophyRarity{Rate: "0.9"}}, "0.9"},
		{"earned rate wins", Trophy{EarnedRate: "12.3", RareRate: "4.5"}, "12.3"},
		{"absent", Trophy{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RarityRate(&tt.trophy); got != tt.expected {
				t.Errorf("RarityRate = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestPrimaryPlatform(t *testing.T) {
	tests := []struct {
		name      string
		platforms []Platform
		expected  Platform
	}{
		{"PS5 preferred", []Platform{PlatformPS4, PlatformPS5}, PlatformPS5},
		{"PS4 over PS3", []Platform{PlatformPS3, PlatformPS4}, PlatformPS4},
		{"vita last preference", []Platform{PlatformPSVita, PlatformPS3}, PlatformPS3},
		{"single platform", []Platform{PlatformPSVita}, PlatformPSVita},
		{"empty set", nil, Platform("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrimaryPlatform(tt.platforms); got != tt.expected {
				t.Errorf("PrimaryPlatform(%v) = %q, expected %q", tt.platforms, got, tt.expected)
			}
		})
	}
}

func TestParsePlatformSet(t *testing.T) {
	got := ParsePlatformSet("PS4,PSVITA,unknown")
	if len(got) != 2 || got[0] != PlatformPS4 || got[1] != PlatformPSVita {
		t.Errorf("ParsePlatformSet = %v, expected [PS4 PSVITA]", got)
	}
}

func TestNormBool(t *testing.T) {
	truthy := []string{"true", "True", "1", "yes", "Y", "t"}
	for _, s := range truthy {
		if !NormBool(s) {
			t.Errorf("NormBool(%q) = false, expected true", s)
		}
	}
	falsy := []string{"", "false", "0", "no", "nope"}
	for _, s := range falsy {
		if NormBool(s) {
			t.Errorf("NormBool(%q) = true, expected false", s)
		}
	}
}
