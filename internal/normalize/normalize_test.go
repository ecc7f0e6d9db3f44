package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"y.o.", "a 45 y.o. patient", "a 45 t_year_old. patient"},
		{"y/o", "72 y/o male", "72 t_year_old male"},
		{"yo", "72yo male", "72yo male"},
		{"yo standalone", "72 yo male", "72 t_year_old male"},
		{"years old", "She is 60 years old.", "She is 60 t_year_old."},
		{"year-old hyphen", "a 3 year old boy", "a 3 t_year_old boy"},
		{"yearold", "an 80 yearold", "an 80 t_year_old"},
		{"upper case", "45 Y.O. M", "45 t_year_old. M"},
		{"yrs", "smoked for 20 yrs", "smoked for 20 years"},
		{"yr's", "10 yr's ago", "10 years ago"},
		{"yr", "1 yr", "1 years"},
		{"Pt", "Pt c/o pain", "patient c/o pain"},
		{"pt.", "pt. denies SOB", "patient denies SOB"},
		{"PT", "seen by PT today", "seen by patient today"},
		{"IN PT", "IN PT rehab", "patient rehab"},
		{"OUT PT", "OUT PT clinic", "patient clinic"},
		{"OT PT", "OT PT eval", "patient eval"},
		{"pt inside word", "ptosis and Pts noted", "ptosis and Pts noted"},
		{"clock", "given at 10:30 AM", "given at t_forenoon"},
		{"redacted hour", "dose at [**84**] AM", "dose at t_hour"},
		{"redacted hour p.m.", "[**12**] p.m. check", "t_hour. check"},
		{"nothing to do", "Afebrile, vitals stable.", "Afebrile, vitals stable."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.text))
		})
	}
}

func TestApplyWithCounts(t *testing.T) {
	out, counts := ApplyWithCounts("Pt is 45 y/o, seen at 6:05 pm and 99:99 am, pt. ok")
	assert.Equal(t, "patient is 45 t_year_old, seen at t_dusk and 99:99 am, patient ok", out)
	assert.Equal(t, 1, counts["age"])
	assert.Equal(t, 2, counts["patient"])
	assert.Equal(t, 1, counts["clock"], "unparseable times are not counted")
	assert.Zero(t, counts["redacted_hour"])
}

func TestStageOrder(t *testing.T) {
	var names []string
	for _, s := range Stages {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"age", "years", "patient", "clock", "redacted_hour"}, names)
}
