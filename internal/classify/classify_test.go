package classify_test

import (
	"testing"

	"paddock/internal/classify"
)

func TestClassifyStandardTier(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"2025-07-04_Fuji_01_Laps.csv", "2025-07-04_Fuji_01"},
		{"2025-07-04_Fuji_01_Notes.txt", "2025-07-04_Fuji_01"},
		{"2025-07-04_Fuji_01.csv", "2025-07-04_Fuji_01.csv"},
		{"2024-12-31_RoadAtlanta_Quali_Telemetry.csv", "2024-12-31_RoadAtlanta_Quali"},
	}
	for _, tc := range cases {
		got, ok := classify.Classify(tc.name)
		if !ok {
			t.Fatalf("%s: expected classification", tc.name)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestClassifyAlternativeTier(t *testing.T) {
	got, ok := classify.Classify("gt3rs_monza 2025-06-01 14-22-03_stint_2_telemetry.csv")
	if !ok {
		t.Fatal("expected classification")
	}
	if got != "2025-06-01_monza_stint2" {
		t.Fatalf("unexpected key: %q", got)
	}
}

func TestClassifyStandardTierWinsOverAlternative(t *testing.T) {
	// A date-led name always resolves in the standard tier even if the tail
	// resembles stint naming.
	got, ok := classify.Classify("2025-06-01_monza_stint_2.csv")
	if !ok {
		t.Fatal("expected classification")
	}
	if got != "2025-06-01_monza_stint" {
		t.Fatalf("unexpected key: %q", got)
	}
}

func TestClassifyUntaggedFallback(t *testing.T) {
	for _, name := range []string{"README.md", "notes.txt", "photo.png", "untagged_scribbles.txt"} {
		got, ok := classify.Classify(name)
		if !ok {
			t.Fatalf("%s: expected classification", name)
		}
		if got != classify.UntaggedKey {
			t.Fatalf("%s: expected untagged key, got %q", name, got)
		}
	}
}

func TestClassifyGenericFallback(t *testing.T) {
	got, ok := classify.Classify("telemetry_monza_race_export.csv")
	if !ok {
		t.Fatal("expected classification")
	}
	if got != "telemetry_monza_race" {
		t.Fatalf("unexpected key: %q", got)
	}
}

func TestClassifyUnclassifiable(t *testing.T) {
	if _, ok := classify.Classify("a_b.csv"); ok {
		t.Fatal("expected two-token name to be unclassifiable")
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	first, ok1 := classify.Classify("2025-07-04_Fuji_01_Laps.csv")
	second, ok2 := classify.Classify("2025-07-04_Fuji_01_Laps.csv")
	if !ok1 || !ok2 || first != second {
		t.Fatalf("classification not deterministic: %q vs %q", first, second)
	}
}

func TestDisplayName(t *testing.T) {
	if got := classify.DisplayName("2025-07-04_fuji_01"); got != "2025-07-04 Fuji 01" {
		t.Fatalf("unexpected display name: %q", got)
	}
	if got := classify.DisplayName(classify.UntaggedKey); got != "untagged session" {
		t.Fatalf("unexpected untagged display name: %q", got)
	}
}
