package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MCartMirrorFailures      MetricKey = "cart_mirror_failures_total"
	MBookingsCreated         MetricKey = "bookings_created_total"
	MBookingsExpired         MetricKey = "bookings_expired_total"
)
