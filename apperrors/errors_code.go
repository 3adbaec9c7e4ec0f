package apperrors

type Code string

const (
	CodeUpstream      Code = "UPSTREAM_ERROR"
	CodeCache         Code = "CACHE_ERROR"
	CodeDispatch      Code = "DISPATCH_ERROR"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
)
