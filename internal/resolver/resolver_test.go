package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/notescrub/internal/classifier"
	"github.com/dativo-io/notescrub/internal/marker"
)

func TestResolve(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"hospital", "[**Hospital1**]", "t_hospital"},
		{"lastname", "[**Last Name (NamePattern1) **]", "t_lastname"},
		{"full date", "[**2151-7-16**]", "t_fulldate"},
		{"month day", "[**7-16**]", "t_monthday"},
		{"year", "[**2151**]", "t_year"},
		{"phone before month/day", "[**Telephone/Fax (1) 1234**]", "t_phone"},
		{"digit fallback", "[**845**] units", "t_3digit units"},
		{"redacted hour kept for normalizer", "[**84**] AM", "[**84**] AM"},
		{"two digits without meridiem", "[**84**] mg", "t_2digit mg"},
		{"empty marker removed", "a [** **] b", "a  b"},
		{"unknown marker kept", "see [**Something odd**] here", "see [**Something odd**] here"},
		{"no markers", "Pt stable overnight.", "Pt stable overnight."},
		{"empty input", "", ""},
		{
			"mixed document",
			"Admitted [**2151-7-16**] to [**Hospital1 18**] by Dr. [**Last Name (STitle) 123**], MRN [**Medical Record Number 4**].",
			"Admitted t_fulldate to t_hospital by Dr. t_lastname, MRN t_mrn.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.text))
		})
	}
}

func TestCategories(t *testing.T) {
	r := New(nil)
	assert.Equal(t, []string{"name", "place", "identifier", "date", "digits"}, r.Categories())
}

func TestExplain(t *testing.T) {
	r := New(nil)

	out, decisions := r.Explain("[**Hospital1**] on [**2151**], [** **] and [**Something odd**]")
	assert.Equal(t, "t_hospital on t_year,  and [**Something odd**]", out)

	require.Len(t, decisions, 3)
	assert.Equal(t, Decision{Category: "name", Marker: "[** **]", Output: ""}, decisions[0])
	assert.True(t, decisions[0].Removed())
	assert.Equal(t, Decision{Category: "place", Marker: "[**Hospital1**]", Output: "t_hospital"}, decisions[1])
	assert.Equal(t, Decision{Category: "date", Marker: "[**2151**]", Output: "t_year"}, decisions[2])
}

func TestResolvedMarkersAreInvisibleToLaterPasses(t *testing.T) {
	// "Hospital" wins in the place pass; the date pass would otherwise
	// read the dash as a month/day fragment.
	r := New(nil)
	_, decisions := r.Explain("[**Hospital 2-3**]")
	require.Len(t, decisions, 1)
	assert.Equal(t, "place", decisions[0].Category)
}

func TestPassOrderFollowsRuleset(t *testing.T) {
	// Without the identifier pass, the slash in Telephone/Fax reads as a month/day.
	rs, err := classifier.NewRuleset(
		classifier.WithDisabledCategories([]string{classifier.CategoryIdentifier, classifier.CategoryDigits}),
	)
	require.NoError(t, err)

	r := New(rs)
	assert.Equal(t, []string{"name", "place", "date"}, r.Categories())
	assert.Equal(t, "t_monthday", r.Resolve("[**Telephone/Fax (1) 1234**]"))
}

func TestUnresolvedMarkersKeepDelimiters(t *testing.T) {
	r := New(nil)
	text := "[**Hospital1**] [**unknown thing**] [**Last Name**] [**odd**]"
	out := r.Resolve(text)
	remaining := marker.Find(out)
	require.Len(t, remaining, 2)
	for _, m := range remaining {
		for _, c := range classifier.Defaults.Classifiers() {
			_, ok := c.Classify(m.Normalized)
			assert.False(t, ok, "remaining marker %q is recognized by %q", m.Raw, c.Category)
		}
	}
}
