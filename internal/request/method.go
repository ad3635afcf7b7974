package request

// controlMethods are the RTSP verbs whose requests are forwarded untouched.
var controlMethods = map[string]struct{}{
	"DESCRIBE":      {},
	"SETUP":         {},
	"PLAY":          {},
	"PAUSE":         {},
	"TEARDOWN":      {},
	"OPTIONS":       {},
	"GET_PARAMETER": {},
	"SET_PARAMETER": {},
}

// IsControlMethod reports whether method is a streaming-control verb. The
// match is exact and case-sensitive.
func IsControlMethod(method string) bool {
	_, ok := controlMethods[method]
	return ok
}
