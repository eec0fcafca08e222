package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 认证错误 100xx
	ErrTokenInvalid = 10004
	ErrNoPermission = 10005

	// 券码模块错误 300xx
	ErrVoucherNotFound    = 30001
	ErrVoucherRedeemed    = 30002
	ErrVoucherExpired     = 30003
	ErrVoucherConflict    = 30004
	ErrOfferInvalid       = 30005
	ErrVoucherIssueFailed = 30006

	// 合作商户模块错误 310xx
	ErrPartnerNotFound = 31001
	ErrUploadFailed    = 31002

	// 到店打卡模块错误 320xx
	ErrTrackingCodeInvalid = 32001

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
)
