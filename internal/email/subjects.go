package email

const (
	subjectLeadReassignedFmt   = "Lead %s is aan u toegewezen"
	subjectEscalationNoticeFmt = "Lead %s is naar u geëscaleerd"
)
