package classifier

// Canonical tokens emitted by the default categories.
const (
	TokenName           = "t_name"
	TokenLastName       = "t_lastname"
	TokenDoctorLastName = "t_doctor_lastname"
	TokenFirstName      = "t_firstname"
	TokenDoctorFirst    = "t_doctor_firstname"
	TokenInitials       = "t_initials"

	TokenHospital  = "t_hospital"
	TokenWorkplace = "t_workplace"
	TokenLocation  = "t_location"
	TokenCountry   = "t_country"
	TokenState     = "t_state"
	TokenAddress   = "t_address"

	TokenFullDate  = "t_fulldate"
	TokenMonthDay  = "t_monthday"
	TokenYear      = "t_year"
	TokenMonth     = "t_month"
	TokenHoliday   = "t_holiday"
	TokenDateRange = "t_daterange"

	TokenPagerID       = "t_pager_id"
	TokenRadClipID     = "t_radclip_id"
	TokenSSN           = "t_ssn"
	TokenMRN           = "t_mrn"
	TokenOldAge        = "t_oldage"
	TokenSerialNo      = "t_sn"
	TokenUnitNo        = "t_unit_no"
	TokenMDNo          = "t_md_no"
	TokenPhone         = "t_phone"
	TokenProviderNo    = "t_provider_no"
	TokenJobNo         = "t_job_no"
	TokenDictatorInfo  = "t_dictator_info"
	TokenContactInfo   = "t_contact_info"
	TokenAttendingInfo = "t_attending_info"

	TokenDigits3 = "t_3digit"
	TokenDigits2 = "t_2digit"
	TokenDigits1 = "t_1digit"
)

// Category names of the default passes, in resolver order.
const (
	CategoryName       = "name"
	CategoryPlace      = "place"
	CategoryIdentifier = "identifier"
	CategoryDate       = "date"
	CategoryDigits     = "digits"
)
