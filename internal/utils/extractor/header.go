package extractor

const (
	UserID        = "x-user-id"
	RoleID        = "x-role-id"
	UserName      = "x-user-name"
	UserEmail     = "x-user-email"
	RequestID     = "x-request-id"
	XForwardedFor = "x-forwarded-for"
)
