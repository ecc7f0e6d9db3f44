package testutil

// SampleNote is a short discharge summary covering each resolver category
// and normalizer stage.
const SampleNote = `Admission Date:  [**2151-7-16**]     Discharge Date:  [**2151-8-4**]
Attending: [**First Name3 (LF) 1234**]
Pt is a 72 y/o M transferred from [**Hospital1 18**] on [**7-20**].
Seen by Dr. [**Doctor Last Name 4567**] at 10:45 pm, MRN [**Medical Record Number 998**].
Follow up in [**84**] AM clinic. [** **]`

// SampleNoteNormalized is SampleNote after the default pipeline.
const SampleNoteNormalized = `Admission Date:  t_fulldate     Discharge Date:  t_fulldate
Attending: t_firstname
patient is a 72 t_year_old M transferred from t_hospital on t_monthday.
Seen by Dr. t_doctor_lastname at t_night, MRN t_mrn.
Follow up in t_hour clinic. `
