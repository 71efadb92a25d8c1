package gateway

// Backend paths, relative to the configured base URL.
const (
	PathLogin          = "login/login"
	PathRegister       = "login/registern"
	PathSendVcode      = "login/sendvcode"
	PathForgetPassword = "login/forgetPsd"
	PathResetPassword  = "login/resetPsd"
	PathChangePassword = "login/changePsd"
	PathLogout         = "login/logout"

	PathGetMember     = "member/getMember"
	PathUpdateProfile = "Address/insertAddress"

	PathGetApartmentList    = "zippora/getApartmentList"
	PathGetUnitList         = "zippora/getUnitList"
	PathBindApartment       = "zippora/bindApartment"
	PathCancelBindApartment = "zippora/cancelBindApartment"
	PathGetZipporaList      = "zippora/getZipporaList"

	PathGetStoreList = "store/getStoreList"
	PathQRCodeScan   = "QrCode/scan"
)
