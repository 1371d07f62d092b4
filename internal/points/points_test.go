package points

import (
	"testing"

	"github.com/buildhub/community-system/internal/model"
)

func TestTierForThresholds(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		balance int64
		want    model.Tier
	}{
		{0, model.TierBase},
		{99, model.TierBase},
		{100, model.TierContributor},
		{120, model.TierContributor},
		{499, model.TierContributor},
		{500, model.TierCore},
		{999, model.TierCore},
		{1000, model.TierArchitect},
		{5000, model.TierArchitect},
	}

	for _, tt := range tests {
		if got := TierFor(tt.balance, th); got != tt.want {
			t.Errorf("TierFor(%d) = %s, want %s", tt.balance, got, tt.want)
		}
	}
}

func TestTierForMonotonic(t *testing.T) {
	th := DefaultThresholds()

	prev := TierRank(TierFor(0, th))
	for balance := int64(1); balance <= 1500; balance++ {
		cur := TierRank(TierFor(balance, th))
		if cur < prev {
			t.Fatalf("tier rank decreased at balance %d: %d -> %d", balance, prev, cur)
		}
		prev = cur
	}
}

func TestTierForCustomThresholds(t *testing.T) {
	th := Thresholds{Contributor: 10, Core: 20, Architect: 30}

	if got := TierFor(15, th); got != model.TierContributor {
		t.Errorf("TierFor(15) with custom thresholds = %s, want contributor", got)
	}
	if got := TierFor(30, th); got != model.TierArchitect {
		t.Errorf("TierFor(30) with custom thresholds = %s, want architect", got)
	}
}

func TestDefaultValues(t *testing.T) {
	v := DefaultValues()

	if v[model.ContributionMergedChange] != 50 {
		t.Errorf("merged_change = %d, want 50", v[model.ContributionMergedChange])
	}
	if v[model.ContributionResolvedIssue] != 30 {
		t.Errorf("resolved_issue = %d, want 30", v[model.ContributionResolvedIssue])
	}
	if v[model.ContributionAcceptedFeedback] != 20 {
		t.Errorf("accepted_feedback = %d, want 20", v[model.ContributionAcceptedFeedback])
	}
}

func TestCatalogSatisfied(t *testing.T) {
	catalog := DefaultCatalog()

	tests := []struct {
		name       string
		stats      model.UserStats
		weekStreak bool
		want       []string
	}{
		{
			name:  "no activity",
			stats: model.UserStats{},
			want:  nil,
		},
		{
			name:  "first submission",
			stats: model.UserStats{SubmittedContributions: 1},
			want:  []string{"first_contribution"},
		},
		{
			name: "first verified contribution",
			stats: model.UserStats{
				SubmittedContributions: 1,
				VerifiedContributions:  1,
				DistinctProjects:       1,
			},
			want: []string{"first_contribution", "first_verified"},
		},
		{
			name: "active helper",
			stats: model.UserStats{
				SubmittedContributions: 10,
				VerifiedContributions:  4,
				DistinctProjects:       3,
				OwnedProjects:          1,
			},
			want: []string{
				"first_contribution", "five_contributions", "ten_contributions",
				"first_project", "first_verified", "helper",
			},
		},
		{
			name:       "week streak only",
			stats:      model.UserStats{},
			weekStreak: true,
			want:       []string{"week_streak"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := catalog.Satisfied(tt.stats, tt.weekStreak)
			if len(got) != len(tt.want) {
				t.Fatalf("Satisfied() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Satisfied() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCatalogUniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, a := range DefaultCatalog() {
		if seen[a.ID] {
			t.Fatalf("duplicate achievement id %q", a.ID)
		}
		seen[a.ID] = true
	}
}
